// Package fixture expands template references into concrete JSON values.
//
// A descriptor is a JSON object of the form
//
//	{"@DATA:TEMPLATE@": "Attachment:Dataset", "@OVERRIDES@": {"datasetId": "..."}}
//
// which resolves to a deep copy of the catalog document "Attachment:Dataset"
// with the overrides deep merged on top. Catalog documents may themselves be
// descriptors, and any string of the exact form $M{name} is replaced by the
// catalog document name. The same resolution is used for request bodies and
// for expected partial-match bodies.
//
// Store placeholders are resolved before fixtures are expanded, so they may
// appear in override values but not inside catalog documents: a ${key} in a
// template is inserted literally. Pass run-specific values as overrides.
package fixture
