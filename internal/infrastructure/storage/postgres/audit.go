package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"restock/internal/core/id"
	"restock/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditSink writes audit entries in the caller's transaction, so an
// aborted mutation leaves no trace. Large before/after payloads are
// zstd-compressed.
type AuditSink struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ audit.Sink = (*AuditSink)(nil)

// NewAuditSink creates the sink.
func NewAuditSink(txm *TxManager) (*AuditSink, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditSink{
		txm:               txm,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

type auditChanges struct {
	Before any `json:"before,omitempty"`
	After  any `json:"after,omitempty"`
}

// Write implements audit.Sink.
func (s *AuditSink) Write(ctx context.Context, entry audit.Entry) error {
	changes, err := json.Marshal(auditChanges{Before: entry.Before, After: entry.After})
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}

	var compressed []byte
	algo := CompressionNone
	if len(changes) > s.compressThreshold {
		compressed = s.encoder.EncodeAll(changes, nil)
		changes = nil
		algo = CompressionZstd
	}

	_, err = s.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO audit_log (
			id, organization_id, actor_id, action, entity, entity_id,
			changes, changes_compressed, compression_algo, request_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		id.New(), entry.OrganizationID, entry.ActorID, entry.Action,
		entry.Entity, entry.EntityID,
		changes, compressed, algo, entry.RequestID, time.Now().UTC(),
	)
	return err
}

// HistoryEntry is one stored audit record, decompressed for reading.
type HistoryEntry struct {
	ID        id.ID           `db:"id"`
	ActorID   id.ID           `db:"actor_id"`
	Action    string          `db:"action"`
	Entity    string          `db:"entity"`
	EntityID  id.ID           `db:"entity_id"`
	Changes   json.RawMessage `db:"changes"`
	RequestID string          `db:"request_id"`
	CreatedAt time.Time       `db:"created_at"`
}

// EntityHistory returns the audit trail of one entity, newest first.
func (s *AuditSink) EntityHistory(ctx context.Context, orgID id.ID, entity string, entityID id.ID, limit int) ([]HistoryEntry, error) {
	rows, err := s.txm.GetQuerier(ctx).Query(ctx, `
		SELECT id, actor_id, action, entity, entity_id,
		       changes, changes_compressed, compression_algo, request_id, created_at
		FROM audit_log
		WHERE organization_id = $1 AND entity = $2 AND entity_id = $3
		ORDER BY created_at DESC
		LIMIT $4
	`, orgID, entity, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var compressed []byte
		var algo CompressionAlgo
		if err := rows.Scan(
			&e.ID, &e.ActorID, &e.Action, &e.Entity, &e.EntityID,
			&e.Changes, &compressed, &algo, &e.RequestID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if algo == CompressionZstd && len(compressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(compressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress audit changes: %w", err)
			}
			e.Changes = decompressed
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
