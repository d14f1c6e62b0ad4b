// Package catcommon provides shared types and context utilities for the catalog
// publishing service: catalog identifiers, tag vocabulary, and version constants.
package catcommon

// ServerVersion is the current version of the catalog server.
const ServerVersion = "0.3.0"

// ApiVersion is the version of the public catalog API.
const ApiVersion = "v1"

// CatalogId identifies a configured publication target.
type CatalogId string

const (
	// CatalogSAEON is the primary indexed catalog.
	CatalogSAEON CatalogId = "SAEON"
	// CatalogMIMS is the marine-collection subset catalog.
	CatalogMIMS CatalogId = "MIMS"
	// CatalogDataCite is the external DOI registry mirror.
	CatalogDataCite CatalogId = "DataCite"
)

// TagType discriminates the object a tag instance is attached to.
type TagType string

const (
	TagTypeRecord     TagType = "record"
	TagTypeCollection TagType = "collection"
)

// Tag vocabulary driving publish eligibility. Collection tags are inherited
// by the collection's records for evaluation purposes.
const (
	TagCollectionPublished      = "Collection.Published"
	TagCollectionInfrastructure = "Collection.Infrastructure"
	TagCollectionNotSearchable  = "Collection.NotSearchable"
	TagRecordRetracted          = "Record.Retracted"
	TagRecordMigrated           = "Record.Migrated"
	TagRecordNotSearchable      = "Record.NotSearchable"
)

// InfrastructureMIMS is the infrastructure tag value selecting records for the
// MIMS catalog.
const InfrastructureMIMS = "MIMS"
