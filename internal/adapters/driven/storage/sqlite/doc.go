// Package sqlite implements the document store, chat store and vector index
// on a single SQLite database.
//
// All stores share one connection pool and one schema, migrated on open from
// embedded SQL files. WAL journalling keeps the indexing pipeline's writes
// from blocking concurrent query-time reads. Embeddings are stored as
// little-endian float32 blobs.
package sqlite
