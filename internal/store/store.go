package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/insightflow/insightflow/config"
)

// DefaultEmbeddingDimensions is the expected length of vectors stored
// in the documents.embedding pgvector column.
const DefaultEmbeddingDimensions = 1536

// ErrCompanyNotFound is returned when an operation targets a company
// that has never been researched.
var ErrCompanyNotFound = errors.New("company not found")

// Store wraps the Postgres connection. One vector collection per
// company is realised as a company_id partition of the documents table.
type Store struct {
	DB *sql.DB
}

// Company is a researched company and its refresh settings.
type Company struct {
	ID               string     `json:"id"`
	DisplayName      string     `json:"display_name"`
	RefreshCron      string     `json:"refresh_cron,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastResearchedAt *time.Time `json:"last_researched_at,omitempty"`
}

// Document is a stored, embedded unit of company knowledge keyed by
// (company_id, dedup_key).
type Document struct {
	CompanyID  string
	DedupKey   string
	SourceType string
	Title      string
	URL        string
	Content    string
	Embedding  []float32
	FetchedAt  time.Time
}

// SearchResult is a similarity hit for a company-scoped query.
type SearchResult struct {
	Document
	Distance float64
}

// New connects using the configured Postgres settings.
func New(ctx context.Context, cfg config.PostgresConfig) (*Store, error) {
	return NewWithDSN(ctx, cfg.DSN())
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// EnsureCompany creates the company row if it does not exist yet.
func (s *Store) EnsureCompany(ctx context.Context, id, displayName string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO companies (id, display_name, created_at)
VALUES ($1,$2,NOW())
ON CONFLICT (id) DO NOTHING
`, id, displayName)
	return err
}

// CompanyExists reports whether a company has been researched before.
func (s *Store) CompanyExists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM companies WHERE id=$1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListCompanies returns all researched companies ordered by recency.
func (s *Store) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, display_name, COALESCE(refresh_cron,''), created_at, last_researched_at
FROM companies
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		var last sql.NullTime
		if err := rows.Scan(&c.ID, &c.DisplayName, &c.RefreshCron, &c.CreatedAt, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			t := last.Time
			c.LastResearchedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCompany removes the company and, via cascade, its documents.
func (s *Store) DeleteCompany(ctx context.Context, id string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM companies WHERE id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCompanyNotFound
	}
	return nil
}

// TouchResearched records a completed research run for the company.
func (s *Store) TouchResearched(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE companies SET last_researched_at=NOW() WHERE id=$1`, id)
	return err
}

// SetRefreshCron updates the periodic refresh schedule for a company.
func (s *Store) SetRefreshCron(ctx context.Context, id, cron string) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE companies SET refresh_cron=$2 WHERE id=$1`, id, cron)
	return err
}

// UpsertDocument writes a document keyed by (company_id, dedup_key).
// Re-indexing identical content is a no-op; the returned bool reports
// whether a row was actually written.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (bool, error) {
	if doc.CompanyID == "" || doc.DedupKey == "" {
		return false, fmt.Errorf("document requires company_id and dedup_key")
	}
	if len(doc.Embedding) == 0 {
		return false, fmt.Errorf("embedding vector required")
	}
	vectorLiteral, err := encodeVectorLiteral(doc.Embedding)
	if err != nil {
		return false, err
	}
	res, err := s.DB.ExecContext(ctx, `
INSERT INTO documents (company_id, dedup_key, source_type, title, url, content, embedding, fetched_at)
VALUES ($1,$2,$3,$4,$5,$6,$7::vector,$8)
ON CONFLICT (company_id, dedup_key) DO UPDATE SET
  source_type = EXCLUDED.source_type,
  title = EXCLUDED.title,
  url = EXCLUDED.url,
  content = EXCLUDED.content,
  embedding = EXCLUDED.embedding,
  fetched_at = EXCLUDED.fetched_at
WHERE documents.content IS DISTINCT FROM EXCLUDED.content
`, doc.CompanyID, doc.DedupKey, doc.SourceType, doc.Title, doc.URL, doc.Content, vectorLiteral, doc.FetchedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SearchDocuments returns the topK nearest documents for the supplied
// vector, strictly scoped to one company's partition.
func (s *Store) SearchDocuments(ctx context.Context, companyID string, vector []float32, topK int) ([]SearchResult, error) {
	if companyID == "" {
		return nil, fmt.Errorf("company id must not be empty")
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("vector must not be empty")
	}
	if topK <= 0 {
		topK = 5
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT dedup_key, source_type, title, url, content, fetched_at, embedding <=> $2::vector AS distance
FROM documents
WHERE company_id = $1
ORDER BY embedding <=> $2::vector
LIMIT $3
`, companyID, vecLiteral, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		res := SearchResult{Document: Document{CompanyID: companyID}}
		if err := rows.Scan(&res.DedupKey, &res.SourceType, &res.Title, &res.URL, &res.Content, &res.FetchedAt, &res.Distance); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// SourceBreakdown recomputes the per-source document counts for a
// company. Never persisted; always derived from documents.
func (s *Store) SourceBreakdown(ctx context.Context, companyID string) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT source_type, COUNT(*)
FROM documents
WHERE company_id = $1
GROUP BY source_type
`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	breakdown := make(map[string]int)
	for rows.Next() {
		var sourceType string
		var count int
		if err := rows.Scan(&sourceType, &count); err != nil {
			return nil, err
		}
		breakdown[sourceType] = count
	}
	return breakdown, rows.Err()
}

// CountDocuments returns the total number of documents for a company.
func (s *Store) CountDocuments(ctx context.Context, companyID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE company_id=$1`, companyID).Scan(&n)
	return n, err
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
