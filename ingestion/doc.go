// Package ingestion loads pre-annotated documents into the document store.
//
// The Pipeline type reads document JSON files, parses them concurrently on a
// worker pool and writes them to storage in batches. A file holds either one
// document object or an array of document objects.
//
// Files that cannot be parsed are logged and counted but do not fail the
// ingestion. Storage errors stop it.
package ingestion
