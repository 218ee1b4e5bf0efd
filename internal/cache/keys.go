package cache

import (
	"strings"

	"github.com/noah-isme/plan-configurator/internal/common"
)

const (
	catalogPrefix = "catalog:products:"
	addressPrefix = "address:"
)

// CatalogPrefix is the prefix shared by every cached catalog entry.
func CatalogPrefix() string { return catalogPrefix }

// KeyCatalogList returns the cache key for a product listing, optionally filtered by category.
func KeyCatalogList(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = "all"
	}
	return catalogPrefix + "list:" + category
}

// KeyProduct returns the cache key for a single product.
func KeyProduct(id string) string {
	return catalogPrefix + "item:" + id
}

// KeyAddress returns the cache key for an upstream address lookup. The query is hashed so
// free-form user input never lands in a key verbatim.
func KeyAddress(kind, query string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	return addressPrefix + kind + ":" + common.Sha256Hex(normalized)
}
