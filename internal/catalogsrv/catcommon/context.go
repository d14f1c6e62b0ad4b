package catcommon

import (
	"context"
)

// ctxKeyType represents the type for all context keys
type ctxKeyType string

const (
	ctxCatalogIdKey ctxKeyType = "CatalogId"
)

// WithCatalogId sets the catalog ID in the provided context.
func WithCatalogId(ctx context.Context, catalogId CatalogId) context.Context {
	return context.WithValue(ctx, ctxCatalogIdKey, catalogId)
}

// GetCatalogId retrieves the catalog ID from the provided context.
// Returns the empty string if no catalog ID is set.
func GetCatalogId(ctx context.Context) CatalogId {
	if catalogId, ok := ctx.Value(ctxCatalogIdKey).(CatalogId); ok {
		return catalogId
	}
	return ""
}
