package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/DukeRupert/hacbridge/internal/domain"
)

var toolName = regexp.MustCompile(`^[a-z][a-z0-9_]{2,63}$`)

// SavedQuery is a named FlexibleSearch query published as its own tool.
type SavedQuery struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Query       string `yaml:"query"`
	SQL         bool   `yaml:"sql"`
	MaxCount    int    `yaml:"max_count"`
}

type savedQueryFile struct {
	Queries []SavedQuery `yaml:"queries"`
}

// LoadSavedQueries reads saved queries from a YAML file of the form
//
//	queries:
//	  - name: recent_orders
//	    description: Orders created today
//	    query: SELECT {code} FROM {Order} WHERE {creationtime} > CURRENT_DATE
func LoadSavedQueries(path string) ([]SavedQuery, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open saved queries: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var file savedQueryFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse saved queries %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Queries))
	for i, q := range file.Queries {
		switch {
		case !toolName.MatchString(q.Name):
			return nil, fmt.Errorf("saved query %d: invalid name %q", i, q.Name)
		case seen[q.Name]:
			return nil, fmt.Errorf("saved query %q defined twice", q.Name)
		case q.Query == "":
			return nil, fmt.Errorf("saved query %q: query is required", q.Name)
		case q.MaxCount < 0 || q.MaxCount > maxMaxCount:
			return nil, fmt.Errorf("saved query %q: max_count must be between 1 and %d", q.Name, maxMaxCount)
		}
		seen[q.Name] = true
	}
	return file.Queries, nil
}

// SavedSearch runs one SavedQuery. Callers may only lower the row limit.
type SavedSearch struct {
	console Console
	query   SavedQuery
}

func NewSavedSearch(console Console, q SavedQuery) *SavedSearch {
	if q.MaxCount == 0 {
		q.MaxCount = defaultMaxCount
	}
	return &SavedSearch{console: console, query: q}
}

func (t *SavedSearch) Name() string { return t.query.Name }

func (t *SavedSearch) Description() string {
	if t.query.Description != "" {
		return t.query.Description
	}
	return "Saved query: " + t.query.Query
}

func (t *SavedSearch) Schema() map[string]any {
	return objectSchema(nil, map[string]any{
		"max_count": intProp("Maximum number of rows", 1, t.query.MaxCount),
	})
}

type savedSearchArgs struct {
	MaxCount int `json:"max_count"`
}

func (t *SavedSearch) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	op := "tools." + t.query.Name

	var args savedSearchArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}
	maxCount := t.query.MaxCount
	switch {
	case args.MaxCount < 0 || args.MaxCount > t.query.MaxCount:
		return nil, domain.Validation(op, domain.AddField(nil, "max_count", fmt.Sprintf("must be between 1 and %d", t.query.MaxCount)))
	case args.MaxCount > 0:
		maxCount = args.MaxCount
	}

	return runSearch(ctx, t.console, op, searchQuery{
		Query:    t.query.Query,
		SQL:      t.query.SQL,
		MaxCount: maxCount,
		Locale:   "en",
	})
}
