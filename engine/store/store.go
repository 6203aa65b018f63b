// Package store persists DeviceRecords in SQLite. It is the sole owner
// of the devices table; the vector index holds chunks separately and
// shares only the submission id key.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/halcyon-health/devicekb/engine/domain"
)

// DeviceStore wraps the SQLite database holding device records.
type DeviceStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS devices (
	submission_number    TEXT PRIMARY KEY,
	decision_date        TEXT,
	device_name          TEXT,
	company              TEXT,
	panel                TEXT,
	product_code         TEXT,
	pdf_path             TEXT,
	pdf_pages            INTEGER,
	extracted_text       TEXT,
	created_at           TEXT,
	imaging_modality     TEXT,
	body_region          TEXT,
	clinical_application TEXT,
	ai_tags_version      TEXT,
	indexed_chunks       INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_panel ON devices(panel);
CREATE INDEX IF NOT EXISTS idx_product_code ON devices(product_code);
CREATE INDEX IF NOT EXISTS idx_company ON devices(company);
`

// Open opens (creating if needed) the device database at path.
func Open(path string) (*DeviceStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store: %w: empty database path", domain.ErrConfig)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &DeviceStore{db: db}, nil
}

// Close closes the underlying database.
func (s *DeviceStore) Close() error { return s.db.Close() }

// Upsert writes the full record in a single transaction, keyed on
// submission id. Enrichment columns written by the external classifier
// are preserved on conflict. indexed_chunks resets to zero either way:
// new or changed text means the vector index no longer matches.
func (s *DeviceStore) Upsert(ctx context.Context, rec domain.DeviceRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (
			submission_number, decision_date, device_name, company,
			panel, product_code, pdf_path, pdf_pages, extracted_text, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(submission_number) DO UPDATE SET
			decision_date  = excluded.decision_date,
			device_name    = excluded.device_name,
			company        = excluded.company,
			panel          = excluded.panel,
			product_code   = excluded.product_code,
			pdf_path       = excluded.pdf_path,
			pdf_pages      = excluded.pdf_pages,
			extracted_text = excluded.extracted_text,
			created_at     = excluded.created_at,
			indexed_chunks = 0`,
		rec.SubmissionID, rec.DecisionDate, rec.DeviceName, rec.Company,
		rec.Panel, rec.ProductCode, rec.PDFPath, rec.PDFPages,
		rec.ExtractedText, rec.IngestedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("store: upsert %s: %w", rec.SubmissionID, err)
	}
	return tx.Commit()
}

// Get returns the record for a submission id, or ok=false if absent.
func (s *DeviceStore) Get(ctx context.Context, submissionID string) (domain.DeviceRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT submission_number, decision_date, device_name, company, panel,
		       product_code, pdf_path, pdf_pages, extracted_text, created_at,
		       imaging_modality, body_region, clinical_application, ai_tags_version
		FROM devices WHERE submission_number = ?`, submissionID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeviceRecord{}, false, nil
	}
	if err != nil {
		return domain.DeviceRecord{}, false, fmt.Errorf("store: get %s: %w", submissionID, err)
	}
	return rec, true, nil
}

// ListUsable returns all records with usable extracted text, ascending
// by submission id so downstream indexing runs are reproducible.
func (s *DeviceStore) ListUsable(ctx context.Context) ([]domain.DeviceRecord, error) {
	return s.list(ctx, `extracted_text IS NOT NULL AND length(extracted_text) >= ?`,
		domain.MinExtractedText)
}

// ListUnindexed returns usable records whose chunks are not (or no
// longer) in the vector index: never indexed, re-upserted since, or
// left behind by a run that died between the relational commit and the
// vector upsert. Each sync indexes exactly this set, so interrupted
// runs converge.
func (s *DeviceStore) ListUnindexed(ctx context.Context) ([]domain.DeviceRecord, error) {
	return s.list(ctx, `extracted_text IS NOT NULL AND length(extracted_text) >= ?
		AND indexed_chunks = 0`, domain.MinExtractedText)
}

func (s *DeviceStore) list(ctx context.Context, where string, args ...any) ([]domain.DeviceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT submission_number, decision_date, device_name, company, panel,
		       product_code, pdf_path, pdf_pages, extracted_text, created_at,
		       imaging_modality, body_region, clinical_application, ai_tags_version
		FROM devices
		WHERE `+where+`
		ORDER BY submission_number ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []domain.DeviceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkIndexed records that a submission's chunks made it into the
// vector index. Only called after a fully successful embed + upsert
// pass; a partial pass leaves the row selectable by ListUnindexed.
func (s *DeviceStore) MarkIndexed(ctx context.Context, submissionID string, chunks int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE devices SET indexed_chunks = ? WHERE submission_number = ?`,
		chunks, submissionID)
	if err != nil {
		return fmt.Errorf("store: mark indexed %s: %w", submissionID, err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *DeviceStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (domain.DeviceRecord, error) {
	var rec domain.DeviceRecord
	var pages sql.NullInt64
	var text, created, modality, region, clinical, tags sql.NullString

	err := row.Scan(
		&rec.SubmissionID, &rec.DecisionDate, &rec.DeviceName, &rec.Company,
		&rec.Panel, &rec.ProductCode, &rec.PDFPath, &pages, &text, &created,
		&modality, &region, &clinical, &tags,
	)
	if err != nil {
		return domain.DeviceRecord{}, err
	}
	rec.PDFPages = int(pages.Int64)
	rec.ExtractedText = text.String
	if created.Valid {
		if t, err := time.Parse(time.RFC3339, created.String); err == nil {
			rec.IngestedAt = t
		}
	}
	rec.ImagingModality = modality.String
	rec.BodyRegion = region.String
	rec.ClinicalApplication = clinical.String
	rec.TagsVersion = tags.String
	return rec, nil
}
