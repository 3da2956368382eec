package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Audit actions recorded by the admin endpoints.
const (
	AuditImport       = "import"
	AuditImportQueued = "import_queued"
	AuditDeleteAll    = "delete_all"
)

// AuditEntry is one administrative change to the ledger.
type AuditEntry struct {
	Actor   string         `json:"actor"`
	Action  string         `json:"action"`
	BatchID string         `json:"batchId,omitempty"`
	Detail  map[string]any `json:"detail,omitempty"`
	At      time.Time      `json:"at"`
}

// RecordAudit persists the entry. A zero At uses the database clock.
func (s *Store) RecordAudit(ctx context.Context, entry AuditEntry) error {
	if entry.Actor == "" || entry.Action == "" {
		return errors.New("store: audit entry requires actor and action")
	}
	detail, err := json.Marshal(entry.Detail)
	if err != nil {
		return fmt.Errorf("store: encode audit detail: %w", err)
	}
	if entry.Detail == nil {
		detail = []byte("{}")
	}
	var at *time.Time
	if !entry.At.IsZero() {
		at = &entry.At
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO admin_audit (actor, action, batch_id, detail, occurred_at) VALUES ($1, $2, $3, $4, COALESCE($5, now()))`,
		entry.Actor, entry.Action, entry.BatchID, detail, at)
	if err != nil {
		return fmt.Errorf("store: record audit: %w", err)
	}
	return nil
}

// ListAudit returns the newest entries first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT actor, action, batch_id, detail, occurred_at FROM admin_audit ORDER BY occurred_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list audit: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AuditEntry, error) {
		var (
			entry  AuditEntry
			detail []byte
		)
		if err := row.Scan(&entry.Actor, &entry.Action, &entry.BatchID, &detail, &entry.At); err != nil {
			return AuditEntry{}, err
		}
		if len(detail) > 0 && string(detail) != "{}" {
			if err := json.Unmarshal(detail, &entry.Detail); err != nil {
				return AuditEntry{}, err
			}
		}
		return entry, nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: scan audit: %w", err)
	}
	return entries, nil
}
