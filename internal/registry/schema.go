package registry

import "github.com/hashicorp/go-memdb"

const (
	tableSchemas = "schemas"
	indexID      = "id"
	indexSource  = "source"
)

// registration is a row of the schemas table: one schema path and the source
// that contributed it.
type registration struct {
	Path       string
	SourceName string
	Source     *Source
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tableSchemas: {
			Name: tableSchemas,
			Indexes: map[string]*memdb.IndexSchema{
				indexID: {
					Name:    indexID,
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "Path"},
				},
				indexSource: {
					Name:    indexSource,
					Unique:  false,
					Indexer: &memdb.StringFieldIndex{Field: "SourceName"},
				},
			},
		},
	},
}
