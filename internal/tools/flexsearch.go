package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DukeRupert/hacbridge/internal/backend"
	"github.com/DukeRupert/hacbridge/internal/domain"
)

const (
	flexSearchEndpoint = "/console/flexsearch/execute"

	defaultMaxCount = 200
	maxMaxCount     = 10000
)

// SearchResult is a FlexibleSearch result table.
type SearchResult struct {
	Headers     []string `json:"headers"`
	Rows        [][]any  `json:"rows"`
	Count       int      `json:"count"`
	ExecutionMs int64    `json:"execution_ms"`
}

// flexSearchResponse is the console's JSON reply.
type flexSearchResponse struct {
	Headers       []string `json:"headers"`
	ResultList    [][]any  `json:"resultList"`
	ResultCount   int      `json:"resultCount"`
	ExecutionTime int64    `json:"executionTime"`
	Exception     *struct {
		Message string `json:"message"`
	} `json:"exception"`
}

// searchQuery is one FlexibleSearch execution.
type searchQuery struct {
	Query    string
	SQL      bool
	MaxCount int
	Locale   string
	User     string
}

// runSearch executes q through the console. Query errors reported by the
// console become EINVALID errors.
func runSearch(ctx context.Context, console Console, op string, q searchQuery) (*SearchResult, error) {
	form := url.Values{
		"maxCount":   {strconv.Itoa(q.MaxCount)},
		"locale":     {q.Locale},
		"dataSource": {"master"},
		"commit":     {"false"},
	}
	if q.SQL {
		form.Set("sqlQuery", q.Query)
	} else {
		form.Set("flexibleSearchQuery", q.Query)
	}
	if q.User != "" {
		form.Set("user", q.User)
	}

	resp, err := console.Call(ctx, flexSearchEndpoint, backend.RequestSpec{
		Method: http.MethodPost,
		Form:   form,
	})
	if err != nil {
		return nil, backendError(op, err)
	}

	var out flexSearchResponse
	if err := resp.Decode(&out); err != nil {
		return nil, domain.Wrap(err, domain.EUPSTREAM, op, "unreadable search response")
	}
	if out.Exception != nil {
		return nil, domain.Invalid(op, "query failed: "+out.Exception.Message)
	}

	rows := out.ResultList
	if rows == nil {
		rows = [][]any{}
	}
	return &SearchResult{
		Headers:     out.Headers,
		Rows:        rows,
		Count:       out.ResultCount,
		ExecutionMs: out.ExecutionTime,
	}, nil
}

// clampMaxCount applies the default and upper bound to a caller row limit.
func clampMaxCount(ve *domain.ValidationError, n int) (int, *domain.ValidationError) {
	switch {
	case n == 0:
		return defaultMaxCount, ve
	case n < 0 || n > maxMaxCount:
		return 0, domain.AddField(ve, "max_count", fmt.Sprintf("must be between 1 and %d", maxMaxCount))
	default:
		return n, ve
	}
}

// FlexibleSearch runs an ad hoc FlexibleSearch (or raw SQL) query.
type FlexibleSearch struct {
	console Console
}

func NewFlexibleSearch(console Console) *FlexibleSearch {
	return &FlexibleSearch{console: console}
}

func (t *FlexibleSearch) Name() string { return "flexible_search" }

func (t *FlexibleSearch) Description() string {
	return "Run a read-only FlexibleSearch query (or raw SQL) and return the result table."
}

func (t *FlexibleSearch) Schema() map[string]any {
	return objectSchema([]string{"query"}, map[string]any{
		"query":     stringProp("FlexibleSearch query, e.g. SELECT {pk},{code} FROM {Product}"),
		"sql":       boolProp("Treat query as raw SQL instead of FlexibleSearch"),
		"max_count": intProp("Maximum number of rows (default 200)", 1, maxMaxCount),
		"locale":    stringProp("Session locale for localized attributes (default en)"),
		"user":      stringProp("Run the query as this user"),
	})
}

type flexibleSearchArgs struct {
	Query    string `json:"query"`
	SQL      bool   `json:"sql"`
	MaxCount int    `json:"max_count"`
	Locale   string `json:"locale"`
	User     string `json:"user"`
}

func (t *FlexibleSearch) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "tools.flexible_search"

	var args flexibleSearchArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}
	ve := domain.Require(nil, "query", args.Query)
	maxCount, ve := clampMaxCount(ve, args.MaxCount)
	if err := domain.Validation(op, ve); err != nil {
		return nil, err
	}
	if args.Locale == "" {
		args.Locale = "en"
	}

	return runSearch(ctx, t.console, op, searchQuery{
		Query:    args.Query,
		SQL:      args.SQL,
		MaxCount: maxCount,
		Locale:   args.Locale,
		User:     args.User,
	})
}
