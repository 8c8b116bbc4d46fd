package catalog

import "hemophilia-registry-api/internal/schema"

type CatalogAPI interface {
	All() []schema.Table
	Lookup(name string) (schema.Table, bool)
	Checksum() string
}
