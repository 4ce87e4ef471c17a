package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/DukeRupert/hacbridge/internal/backend"
	"github.com/DukeRupert/hacbridge/internal/domain"
)

const scriptingEndpoint = "/console/scripting/execute"

// ScriptResult is the console's reply to a script execution.
type ScriptResult struct {
	Result string `json:"result"`
	Output string `json:"output"`
}

type scriptResponse struct {
	OutputText      string `json:"outputText"`
	ExecutionResult string `json:"executionResult"`
	StacktraceText  string `json:"stacktraceText"`
}

// runScript executes a Groovy script. A stack trace in the reply becomes an
// EUPSTREAM error carrying its first line.
func runScript(ctx context.Context, console Console, op, script string, commit bool) (*ScriptResult, error) {
	resp, err := console.Call(ctx, scriptingEndpoint, backend.RequestSpec{
		Method: http.MethodPost,
		Form: url.Values{
			"script":     {script},
			"scriptType": {"groovy"},
			"commit":     {strconv.FormatBool(commit)},
		},
	})
	if err != nil {
		return nil, backendError(op, err)
	}

	var out scriptResponse
	if err := resp.Decode(&out); err != nil {
		return nil, domain.Wrap(err, domain.EUPSTREAM, op, "unreadable script response")
	}
	if trace := strings.TrimSpace(out.StacktraceText); trace != "" {
		first, _, _ := strings.Cut(trace, "\n")
		return nil, domain.Errorf(domain.EUPSTREAM, op, "script failed: %s", strings.TrimSpace(first))
	}

	return &ScriptResult{Result: out.ExecutionResult, Output: out.OutputText}, nil
}

// groovyString returns a Groovy expression that evaluates to s. Caller text
// travels base64-encoded and is never spliced into script source.
func groovyString(s string) string {
	return `new String("` + base64.StdEncoding.EncodeToString([]byte(s)) + `".decodeBase64(), "UTF-8")`
}

// decodeScriptJSON parses a script result produced by JsonOutput.toJson.
func decodeScriptJSON(op string, res *ScriptResult, v any) error {
	if err := json.Unmarshal([]byte(res.Result), v); err != nil {
		return domain.Wrap(err, domain.EUPSTREAM, op, "script returned an unexpected result")
	}
	return nil
}

// ExecuteGroovy runs an arbitrary Groovy script in the console.
type ExecuteGroovy struct {
	console Console
}

func NewExecuteGroovy(console Console) *ExecuteGroovy {
	return &ExecuteGroovy{console: console}
}

func (t *ExecuteGroovy) Name() string { return "execute_groovy" }

func (t *ExecuteGroovy) Description() string {
	return "Execute a Groovy script in the administration console. Changes are rolled back unless commit is true."
}

func (t *ExecuteGroovy) Schema() map[string]any {
	return objectSchema([]string{"script"}, map[string]any{
		"script": stringProp("Groovy source"),
		"commit": boolProp("Commit the transaction (default false)"),
	})
}

type executeGroovyArgs struct {
	Script string `json:"script"`
	Commit bool   `json:"commit"`
}

func (t *ExecuteGroovy) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "tools.execute_groovy"

	var args executeGroovyArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}
	if err := domain.Validation(op, domain.Require(nil, "script", strings.TrimSpace(args.Script))); err != nil {
		return nil, err
	}

	return runScript(ctx, t.console, op, args.Script, args.Commit)
}
