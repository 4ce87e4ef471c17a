package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/DukeRupert/hacbridge/internal/domain"
)

const (
	defaultFields      = "DEFAULT"
	defaultCatalogVers = "Online"
	maxPageSize        = 100
)

// readPath joins escaped segments into a read API path.
func readPath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(escaped, "/")
}

// readData fetches path and returns the decoded body.
func readData(ctx context.Context, api ReadAPI, op, path string, query url.Values) (any, error) {
	resp, err := api.Get(ctx, path, query)
	if err != nil {
		return nil, backendError(op, err)
	}
	if !resp.JSON() {
		return nil, domain.Errorf(domain.EUPSTREAM, op, "read API returned %q instead of JSON", resp.ContentType)
	}
	return resp.Data, nil
}

func fieldsQuery(fields string) url.Values {
	if fields == "" {
		fields = defaultFields
	}
	return url.Values{"fields": {fields}}
}

// readTool carries what every read API tool shares.
type readTool struct {
	api  ReadAPI
	site string
}

func (r readTool) siteFor(override string) string {
	if override != "" {
		return override
	}
	return r.site
}

var (
	siteProp   = stringProp("Base site (defaults to the configured site)")
	fieldsProp = stringProp("Response field set: BASIC, DEFAULT, FULL or an explicit list")
)

// =============================================================================
// get_product
// =============================================================================

// GetProduct looks up one product by code.
type GetProduct struct{ readTool }

func NewGetProduct(api ReadAPI, site string) *GetProduct {
	return &GetProduct{readTool{api: api, site: site}}
}

func (t *GetProduct) Name() string { return "get_product" }

func (t *GetProduct) Description() string {
	return "Fetch a product by code from the read API."
}

func (t *GetProduct) Schema() map[string]any {
	return objectSchema([]string{"code"}, map[string]any{
		"code":   stringProp("Product code"),
		"site":   siteProp,
		"fields": fieldsProp,
	})
}

type getProductArgs struct {
	Code   string `json:"code"`
	Site   string `json:"site"`
	Fields string `json:"fields"`
}

func (t *GetProduct) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "tools.get_product"

	var args getProductArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}
	if err := domain.Validation(op, domain.Require(nil, "code", args.Code)); err != nil {
		return nil, err
	}

	path := readPath(t.siteFor(args.Site), "products", args.Code)
	return readData(ctx, t.api, op, path, fieldsQuery(args.Fields))
}

// =============================================================================
// search_products
// =============================================================================

// SearchProducts runs a free text product search.
type SearchProducts struct{ readTool }

func NewSearchProducts(api ReadAPI, site string) *SearchProducts {
	return &SearchProducts{readTool{api: api, site: site}}
}

func (t *SearchProducts) Name() string { return "search_products" }

func (t *SearchProducts) Description() string {
	return "Search products by free text, with optional paging and sort."
}

func (t *SearchProducts) Schema() map[string]any {
	return objectSchema([]string{"query"}, map[string]any{
		"query":     stringProp("Search text, optionally with facet filters (text:sort:facet:value)"),
		"page":      intProp("Zero-based page", 0, 10000),
		"page_size": intProp("Results per page (default 20)", 1, maxPageSize),
		"sort":      stringProp("Sort code, e.g. relevance or price-asc"),
		"site":      siteProp,
		"fields":    fieldsProp,
	})
}

type searchProductsArgs struct {
	Query    string `json:"query"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	Sort     string `json:"sort"`
	Site     string `json:"site"`
	Fields   string `json:"fields"`
}

func (t *SearchProducts) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "tools.search_products"

	var args searchProductsArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}
	ve := domain.Require(nil, "query", args.Query)
	if args.Page < 0 {
		ve = domain.AddField(ve, "page", "must not be negative")
	}
	if args.PageSize < 0 || args.PageSize > maxPageSize {
		ve = domain.AddField(ve, "page_size", "must be between 1 and "+strconv.Itoa(maxPageSize))
	}
	if err := domain.Validation(op, ve); err != nil {
		return nil, err
	}
	if args.PageSize == 0 {
		args.PageSize = 20
	}

	query := fieldsQuery(args.Fields)
	query.Set("query", args.Query)
	query.Set("currentPage", strconv.Itoa(args.Page))
	query.Set("pageSize", strconv.Itoa(args.PageSize))
	if args.Sort != "" {
		query.Set("sort", args.Sort)
	}

	return readData(ctx, t.api, op, readPath(t.siteFor(args.Site), "products", "search"), query)
}

// =============================================================================
// get_category
// =============================================================================

// GetCategory looks up a category within a catalog version.
type GetCategory struct{ readTool }

func NewGetCategory(api ReadAPI, site string) *GetCategory {
	return &GetCategory{readTool{api: api, site: site}}
}

func (t *GetCategory) Name() string { return "get_category" }

func (t *GetCategory) Description() string {
	return "Fetch a category and its subcategories from a catalog version."
}

func (t *GetCategory) Schema() map[string]any {
	return objectSchema([]string{"catalog", "code"}, map[string]any{
		"catalog": stringProp("Catalog id, e.g. electronicsProductCatalog"),
		"version": stringProp("Catalog version (default Online)"),
		"code":    stringProp("Category code"),
		"site":    siteProp,
		"fields":  fieldsProp,
	})
}

type getCategoryArgs struct {
	Catalog string `json:"catalog"`
	Version string `json:"version"`
	Code    string `json:"code"`
	Site    string `json:"site"`
	Fields  string `json:"fields"`
}

func (t *GetCategory) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "tools.get_category"

	var args getCategoryArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}
	ve := domain.Require(nil, "catalog", args.Catalog)
	ve = domain.Require(ve, "code", args.Code)
	if err := domain.Validation(op, ve); err != nil {
		return nil, err
	}
	if args.Version == "" {
		args.Version = defaultCatalogVers
	}

	path := readPath(t.siteFor(args.Site), "catalogs", args.Catalog, args.Version, "categories", args.Code)
	return readData(ctx, t.api, op, path, fieldsQuery(args.Fields))
}

// =============================================================================
// get_order
// =============================================================================

// GetOrder looks up an order by code.
type GetOrder struct{ readTool }

func NewGetOrder(api ReadAPI, site string) *GetOrder {
	return &GetOrder{readTool{api: api, site: site}}
}

func (t *GetOrder) Name() string { return "get_order" }

func (t *GetOrder) Description() string {
	return "Fetch an order by code. The read API user needs order management rights."
}

func (t *GetOrder) Schema() map[string]any {
	return objectSchema([]string{"code"}, map[string]any{
		"code":   stringProp("Order code"),
		"site":   siteProp,
		"fields": fieldsProp,
	})
}

type getOrderArgs struct {
	Code   string `json:"code"`
	Site   string `json:"site"`
	Fields string `json:"fields"`
}

func (t *GetOrder) Execute(ctx context.Context, raw json.RawMessage) (any, error) {
	const op = "tools.get_order"

	var args getOrderArgs
	if err := decodeArgs(op, raw, &args); err != nil {
		return nil, err
	}
	if err := domain.Validation(op, domain.Require(nil, "code", args.Code)); err != nil {
		return nil, err
	}

	return readData(ctx, t.api, op, readPath(t.siteFor(args.Site), "orders", args.Code), fieldsQuery(args.Fields))
}
