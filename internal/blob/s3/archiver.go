package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hunchmarket/hunchd/internal/domain"
)

// ledgerLine is one row of a settlement ledger file: the resolution header
// followed by every forecast the settlement touched.
type ledgerLine struct {
	Kind       string             `json:"kind"` // "resolution" or "forecast"
	Resolution *domain.Resolution `json:"resolution,omitempty"`
	Forecast   *domain.Forecast   `json:"forecast,omitempty"`
}

// ArchiveImpl implements domain.Archiver by serializing records to JSONL
// and uploading them to object storage.
//
// Notification rows are deleted from the primary store only after the
// archive upload succeeds; a failure between the two leaves the rows in
// place for the next run.
type ArchiveImpl struct {
	writer domain.BlobWriter
	notes  domain.NotificationStore
	audit  domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, notes domain.NotificationStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		notes:  notes,
		audit:  audit,
	}
}

// ArchiveLedger uploads a market's settlement ledger as JSONL at
// ledgers/{marketID}.jsonl: the resolution record first, then one line per
// forecast with its terminal status and reward. It returns the object path.
func (a *ArchiveImpl) ArchiveLedger(ctx context.Context, marketID string, res domain.Resolution, forecasts []domain.Forecast) (string, error) {
	lines := make([]ledgerLine, 0, len(forecasts)+1)
	lines = append(lines, ledgerLine{Kind: "resolution", Resolution: &res})
	for i := range forecasts {
		lines = append(lines, ledgerLine{Kind: "forecast", Forecast: &forecasts[i]})
	}

	buf, err := marshalJSONL(lines)
	if err != nil {
		return "", fmt.Errorf("s3blob: ledger marshal for %s: %w", marketID, err)
	}

	path := fmt.Sprintf("ledgers/%s.jsonl", marketID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: ledger upload for %s: %w", marketID, err)
	}

	if err := a.audit.Log(ctx, "archive.ledger", map[string]any{
		"path":      path,
		"market_id": marketID,
		"forecasts": len(forecasts),
	}); err != nil {
		return path, fmt.Errorf("s3blob: ledger audit log for %s: %w", marketID, err)
	}

	return path, nil
}

// ArchiveNotifications moves notification rows created before the cutoff to
// cold storage at archive/notifications/YYYY-MM.jsonl and deletes them from
// the primary store. It returns the number of rows archived.
func (a *ArchiveImpl) ArchiveNotifications(ctx context.Context, before time.Time) (int64, error) {
	notes, err := a.notes.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive notifications query: %w", err)
	}
	if len(notes) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(notes)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive notifications marshal: %w", err)
	}

	path := fmt.Sprintf("archive/notifications/%s.jsonl", before.Format("2006-01"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive notifications upload: %w", err)
	}

	deleted, err := a.notes.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive notifications delete: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.notifications", map[string]any{
		"path":    path,
		"count":   len(notes),
		"deleted": deleted,
		"before":  before.Format(time.RFC3339),
	}); err != nil {
		return deleted, fmt.Errorf("s3blob: archive notifications audit log: %w", err)
	}

	return deleted, nil
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
