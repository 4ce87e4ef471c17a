package tools

import "github.com/DukeRupert/hacbridge/internal/storage"

// Builtin returns the standard catalog. site is the default base site for
// read API tools.
func Builtin(console Console, api ReadAPI, store storage.Storage, site string) []Tool {
	return []Tool{
		NewFlexibleSearch(console),
		NewExecuteGroovy(console),
		NewImportImpex(console),
		NewExportImpex(console, store),
		NewTriggerCronJob(console),
		NewGetProduct(api, site),
		NewSearchProducts(api, site),
		NewGetCategory(api, site),
		NewGetOrder(api, site),
	}
}
