package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/hacbridge/internal/domain"
	"github.com/DukeRupert/hacbridge/internal/metrics"
	"github.com/DukeRupert/hacbridge/internal/storage"
)

// maxImpexSize bounds an import payload.
const maxImpexSize = 8 << 20

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// importScript runs ImportService synchronously and reports the outcome as JSON.
const importScript = `import de.hybris.platform.servicelayer.impex.ImportConfig
import de.hybris.platform.servicelayer.impex.impl.StreamBasedImpExResource

def payload = %s
def config = new ImportConfig()
config.script = new StreamBasedImpExResource(new ByteArrayInputStream(payload.getBytes("UTF-8")), "UTF-8")
config.validationMode = ImportConfig.ValidationMode.%s
config.enableCodeExecution = %t
config.synchronous = true

def result = importService.importData(config)
def out = [successful: result.successful, finished: result.finished, unresolved: ""]
if (result.hasUnresolvedLines()) {
    out.unresolved = result.unresolvedLines.preview
}
groovy.json.JsonOutput.toJson(out)
`

// ImportReport is the outcome of an ImpEx import.
type ImportReport struct {
	Successful bool   `json:"successful"`
	Finished   bool   `json:"finished"`
	Unresolved string `json:"unresolved,omitempty"`
}

// ImportImpex imports ImpEx content through the console's ImportService.
type ImportImpex struct {
	console Console
}

func NewImportImpex(console Console) *ImportImpex {
	return &ImportImpex{console: console}
}

func (t *ImportImpex) Name() string { return "import_impex" }

func (t *ImportImpex) Description() string {
	return "Import ImpEx content synchronously and report unresolved lines."
}

func (t *ImportImpex) Schema() map[string]any {
	return objectSchema([]string{"impex"}, map[string]any{
		"impex":           stringProp("ImpEx script content"),
		"validation_mode": enumProp("Header validation (default strict)", "strict", "relaxed"),
		"enable_code":     boolProp("Allow beanshell/groovy code lines inside the ImpEx"),
	})
}

type importImpexArgs struct {
	Impex          string `json:"impex"`
	ValidationMode string `json:"validation_mode"`
	EnableCode     bool   `json:"enable_code"`
}

func (t *ImportImpex) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "tools.import_impex"

	var args importImpexArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}
	ve := domain.Require(nil, "impex", strings.TrimSpace(args.Impex))
	if len(args.Impex) > maxImpexSize {
		ve = domain.AddField(ve, "impex", fmt.Sprintf("must not exceed %d bytes", maxImpexSize))
	}
	mode := "STRICT"
	switch args.ValidationMode {
	case "", "strict":
	case "relaxed":
		mode = "RELAXED"
	default:
		ve = domain.AddField(ve, "validation_mode", "must be strict or relaxed")
	}
	if err := domain.Validation(op, ve); err != nil {
		return nil, err
	}

	script := fmt.Sprintf(importScript, groovyString(args.Impex), mode, args.EnableCode)
	res, err := runScript(ctx, t.console, op, script, true)
	if err != nil {
		return nil, err
	}

	var report ImportReport
	if err := decodeScriptJSON(op, res, &report); err != nil {
		return nil, err
	}
	return report, nil
}

// ExportImpex selects items with FlexibleSearch and stores them as an
// INSERT_UPDATE ImpEx artifact.
type ExportImpex struct {
	console Console
	store   storage.Storage
	now     func() time.Time
}

func NewExportImpex(console Console, store storage.Storage) *ExportImpex {
	return &ExportImpex{console: console, store: store, now: time.Now}
}

func (t *ExportImpex) Name() string { return "export_impex" }

func (t *ExportImpex) Description() string {
	return "Export items of one type as INSERT_UPDATE ImpEx and return a download link. The first attribute is the unique key."
}

func (t *ExportImpex) Schema() map[string]any {
	return objectSchema([]string{"item_type", "attributes"}, map[string]any{
		"item_type":  stringProp("Composed type code, e.g. Product"),
		"attributes": stringListProp("Attribute qualifiers; the first one is marked unique"),
		"where":      stringProp("Optional FlexibleSearch WHERE clause without the keyword"),
		"max_count":  intProp("Maximum number of items (default 200)", 1, maxMaxCount),
	})
}

// ExportReport describes a stored export.
type ExportReport struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Items int    `json:"items"`
	Bytes int    `json:"bytes"`
}

type exportImpexArgs struct {
	ItemType   string   `json:"item_type"`
	Attributes []string `json:"attributes"`
	Where      string   `json:"where"`
	MaxCount   int      `json:"max_count"`
}

func (t *ExportImpex) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "tools.export_impex"

	var args exportImpexArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}

	var ve *domain.ValidationError
	if !identifier.MatchString(args.ItemType) {
		ve = domain.AddField(ve, "item_type", "must be a type code")
	}
	if len(args.Attributes) == 0 {
		ve = domain.AddField(ve, "attributes", "is required")
	}
	for _, a := range args.Attributes {
		if !identifier.MatchString(a) {
			ve = domain.AddField(ve, "attributes", fmt.Sprintf("%q is not a qualifier", a))
			break
		}
	}
	maxCount, ve := clampMaxCount(ve, args.MaxCount)
	if err := domain.Validation(op, ve); err != nil {
		return nil, err
	}
	if t.store == nil {
		return nil, domain.Errorf(domain.EUNAVAILABLE, op, "artifact storage is not configured")
	}

	result, err := runSearch(ctx, t.console, op, searchQuery{
		Query:    exportQuery(args.ItemType, args.Attributes, args.Where),
		MaxCount: maxCount,
		Locale:   "en",
	})
	if err != nil {
		return nil, err
	}

	body := renderImpex(args.ItemType, args.Attributes, result.Rows)
	key := storage.ExportKey(args.ItemType, t.now())
	err = t.store.Put(ctx, key, bytes.NewReader(body), storage.PutOptions{ContentType: storage.ContentTypeImpEx})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to store export")
	}
	metrics.ExportWritten(len(body))

	link, err := t.store.URL(ctx, key, time.Hour)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to create download link")
	}

	return ExportReport{Key: key, URL: link, Items: len(result.Rows), Bytes: len(body)}, nil
}

func exportQuery(itemType string, attributes []string, where string) string {
	cols := make([]string, len(attributes))
	for i, a := range attributes {
		cols[i] = "{" + a + "}"
	}
	q := fmt.Sprintf("SELECT %s FROM {%s}", strings.Join(cols, ","), itemType)
	if w := strings.TrimSpace(where); w != "" {
		q += " WHERE " + w
	}
	return q + " ORDER BY {" + attributes[0] + "}"
}

// renderImpex writes an INSERT_UPDATE block. The first attribute is the key.
func renderImpex(itemType string, attributes []string, rows [][]any) []byte {
	var b bytes.Buffer

	b.WriteString("INSERT_UPDATE ")
	b.WriteString(itemType)
	for i, a := range attributes {
		b.WriteByte(';')
		b.WriteString(a)
		if i == 0 {
			b.WriteString("[unique=true]")
		}
	}
	b.WriteByte('\n')

	for _, row := range rows {
		for _, v := range row {
			b.WriteByte(';')
			b.WriteString(impexValue(v))
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// impexValue formats one cell. Values containing separators, quotes or line
// breaks are quoted with embedded quotes doubled.
func impexValue(v any) string {
	var s string
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		s = x
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s = fmt.Sprint(x)
	}
	if strings.ContainsAny(s, ";\"\n\r") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}
