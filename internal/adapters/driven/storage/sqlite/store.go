package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/veritas-labs/veritas-rag/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to the
// document, chat and vector index interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.veritas-rag/data/engine.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".veritas-rag", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "engine.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ChatStore returns a ChatStore interface backed by this store.
func (s *Store) ChatStore() driven.ChatStore {
	return &chatStore{store: s}
}

// VectorIndex returns a VectorIndex interface backed by this store.
func (s *Store) VectorIndex() driven.VectorIndex {
	return &vectorIndex{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, owner_id, name, content_hash, status, num_chunks,
	embedding_model, error_detail, created_at, updated_at, processed_at`

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO documents
			(id, owner_id, name, content_hash, status, num_chunks, embedding_model, error_detail, created_at, updated_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			name = excluded.name,
			content_hash = excluded.content_hash,
			status = excluded.status,
			num_chunks = excluded.num_chunks,
			embedding_model = excluded.embedding_model,
			error_detail = excluded.error_detail,
			updated_at = excluded.updated_at,
			processed_at = excluded.processed_at
	`, doc.ID, doc.OwnerID, doc.Name, doc.ContentHash, string(doc.Status), doc.NumChunks,
		doc.EmbeddingModel, doc.ErrorDetail, doc.CreatedAt, doc.UpdatedAt, nullTime(doc.ProcessedAt))

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id)

	return scanDocument(row)
}

// GetDocumentByHash retrieves an owner's document by content hash.
func (s *documentStore) GetDocumentByHash(ctx context.Context, ownerID, hash string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+` FROM documents
		WHERE owner_id = ? AND content_hash = ?
		ORDER BY created_at DESC LIMIT 1`, ownerID, hash)

	return scanDocument(row)
}

// ListDocuments returns all documents for an owner, newest first.
func (s *documentStore) ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+documentColumns+` FROM documents
		WHERE owner_id = ?
		ORDER BY created_at DESC, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// MarkProcessing atomically claims the document for an indexing run. The
// status column is the guard: any status but processing is claimable, so two
// concurrent runs cannot both win while explicit reindex of a completed
// document stays possible.
func (s *documentStore) MarkProcessing(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error_detail = '', updated_at = ?
		WHERE id = ? AND status != ?
	`, string(domain.StatusProcessing), time.Now().UTC(), id,
		string(domain.StatusProcessing))
	if err != nil {
		return fmt.Errorf("marking processing: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking processing transition: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Lost the claim: distinguish missing from already claimed.
	var status string
	err = s.store.db.QueryRowContext(ctx, "SELECT status FROM documents WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking document status: %w", err)
	}
	return domain.ErrAlreadyProcessing
}

// MarkCompleted records a successful indexing run.
func (s *documentStore) MarkCompleted(ctx context.Context, id string, numChunks int, embeddingModel string) error {
	now := time.Now().UTC()
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, num_chunks = ?, embedding_model = ?, error_detail = '', updated_at = ?, processed_at = ?
		WHERE id = ?
	`, string(domain.StatusCompleted), numChunks, embeddingModel, now, now, id)
	if err != nil {
		return fmt.Errorf("marking completed: %w", err)
	}
	return requireAffected(res)
}

// MarkFailed records a failed indexing run with a human-readable cause.
func (s *documentStore) MarkFailed(ctx context.Context, id, errorDetail string) error {
	now := time.Now().UTC()
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error_detail = ?, updated_at = ?, processed_at = ?
		WHERE id = ?
	`, string(domain.StatusFailed), errorDetail, now, now, id)
	if err != nil {
		return fmt.Errorf("marking failed: %w", err)
	}
	return requireAffected(res)
}

// SaveChunks replaces the document's chunk set. Dropping the previous rows
// first keeps reindexing runs from accumulating stale chunks; their vectors
// go with them via the foreign key cascade.
func (s *documentStore) SaveChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunks WHERE document_id = ?", chunks[0].DocumentID); err != nil {
		return fmt.Errorf("clearing previous chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, content, position, token_count, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			content = excluded.content,
			position = excluded.position,
			token_count = excluded.token_count,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embeddingBlob := float32SliceToBytes(chunk.Embedding)

		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
			chunk.Position, chunk.TokenCount, embeddingBlob); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetChunks retrieves all chunks for a document ordered by position.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, token_count, embedding
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// DeleteDocument removes a document; chunks and vectors cascade.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	return requireAffected(res)
}

// ==================== Chat Store ====================

// chatStore implements driven.ChatStore.
type chatStore struct {
	store *Store
}

var _ driven.ChatStore = (*chatStore)(nil)

// SaveExchange stores a completed exchange with its source list.
func (s *chatStore) SaveExchange(ctx context.Context, exchange *domain.ChatExchange) error {
	sourcesJSON, err := json.Marshal(exchange.Sources)
	if err != nil {
		return fmt.Errorf("marshalling sources: %w", err)
	}

	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now().UTC()
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO chat_exchanges (id, owner_id, document_id, question, answer, sources, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, exchange.ID, exchange.OwnerID, exchange.DocumentID, exchange.Question,
		exchange.Answer, string(sourcesJSON), exchange.CreatedAt)

	if err != nil {
		return fmt.Errorf("saving exchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit exchanges, most recent first.
func (s *chatStore) RecentExchanges(ctx context.Context, ownerID, documentID string, limit int) ([]domain.ChatExchange, error) {
	query := `
		SELECT id, owner_id, document_id, question, answer, sources, created_at
		FROM chat_exchanges
		WHERE owner_id = ?`
	args := []any{ownerID}

	if documentID != "" {
		query += " AND document_id = ?"
		args = append(args, documentID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer rows.Close()

	var exchanges []domain.ChatExchange //nolint:prealloc // size unknown from query
	for rows.Next() {
		var ex domain.ChatExchange
		var sourcesJSON string
		if err := rows.Scan(&ex.ID, &ex.OwnerID, &ex.DocumentID, &ex.Question,
			&ex.Answer, &sourcesJSON, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}

		if err := json.Unmarshal([]byte(sourcesJSON), &ex.Sources); err != nil {
			return nil, fmt.Errorf("unmarshaling sources: %w", err)
		}
		exchanges = append(exchanges, ex)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating exchanges: %w", err)
	}

	return exchanges, nil
}

// ==================== Vector Index ====================

// vectorIndex implements driven.VectorIndex over a dedicated vector table.
// Similarity is computed in Go over the scoped candidate set; corpus sizes
// here are small enough that a linear scan beats an ANN structure.
type vectorIndex struct {
	store *Store
}

var _ driven.VectorIndex = (*vectorIndex)(nil)

// Add inserts a chunk and its embedding into the index.
func (v *vectorIndex) Add(ctx context.Context, chunk domain.Chunk) error {
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, chunk.ID)
	}

	_, err := v.store.db.ExecContext(ctx, `
		INSERT INTO chunk_vectors (chunk_id, document_id, position, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			document_id = excluded.document_id,
			position = excluded.position,
			embedding = excluded.embedding
	`, chunk.ID, chunk.DocumentID, chunk.Position, float32SliceToBytes(chunk.Embedding))

	if err != nil {
		return fmt.Errorf("adding vector: %w", err)
	}
	return nil
}

// Search returns up to k chunks within scope ranked by descending cosine
// similarity, ties broken by ascending position. An empty scope yields an
// empty result.
func (v *vectorIndex) Search(ctx context.Context, query []float32, scope domain.SearchScope, k int, minScore float64) ([]domain.RetrievalResult, error) {
	if scope.DocumentID == "" && scope.OwnerID == "" {
		return []domain.RetrievalResult{}, nil
	}
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	var (
		rows *sql.Rows
		err  error
	)
	if scope.DocumentID != "" {
		rows, err = v.store.db.QueryContext(ctx, `
			SELECT c.id, c.document_id, c.content, c.position, c.token_count, cv.embedding
			FROM chunk_vectors cv
			JOIN chunks c ON c.id = cv.chunk_id
			WHERE cv.document_id = ?
		`, scope.DocumentID)
	} else {
		// Owner scope covers completed documents only; a document being
		// reindexed must not surface half-written vectors.
		rows, err = v.store.db.QueryContext(ctx, `
			SELECT c.id, c.document_id, c.content, c.position, c.token_count, cv.embedding
			FROM chunk_vectors cv
			JOIN chunks c ON c.id = cv.chunk_id
			JOIN documents d ON d.id = cv.document_id
			WHERE d.owner_id = ? AND d.status = ?
		`, scope.OwnerID, string(domain.StatusCompleted))
	}
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	results := []domain.RetrievalResult{}
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}

		score, err := cosineSimilarity(query, chunk.Embedding)
		if err != nil {
			return nil, fmt.Errorf("scoring chunk %s: %w", chunk.ID, err)
		}
		if score < minScore {
			continue
		}
		results = append(results, domain.RetrievalResult{Chunk: *chunk, Score: score})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating vectors: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Position != results[j].Chunk.Position {
			return results[i].Chunk.Position < results[j].Chunk.Position
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// DeleteDocument removes all vectors belonging to a document.
func (v *vectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := v.store.db.ExecContext(ctx, "DELETE FROM chunk_vectors WHERE document_id = ?", documentID)
	if err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	return nil
}

// Close is a no-op; the underlying Store owns the connection.
func (v *vectorIndex) Close() error {
	return nil
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// nullTime converts a *time.Time to a driver-friendly value.
func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// requireAffected maps a zero-row update to ErrNotFound.
func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var processedAt sql.NullTime

	if err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.ContentHash, &status,
		&doc.NumChunks, &doc.EmbeddingModel, &doc.ErrorDetail,
		&doc.CreatedAt, &doc.UpdatedAt, &processedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}

	return &doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var status string
	var processedAt sql.NullTime

	if err := rows.Scan(&doc.ID, &doc.OwnerID, &doc.Name, &doc.ContentHash, &status,
		&doc.NumChunks, &doc.EmbeddingModel, &doc.ErrorDetail,
		&doc.CreatedAt, &doc.UpdatedAt, &processedAt); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if processedAt.Valid {
		doc.ProcessedAt = &processedAt.Time
	}

	return &doc, nil
}

// scanChunk scans a chunk from *sql.Rows.
func scanChunk(rows *sql.Rows) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte

	if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content,
		&chunk.Position, &chunk.TokenCount, &embeddingBlob); err != nil {
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)

	return &chunk, nil
}
