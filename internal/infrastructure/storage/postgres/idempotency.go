package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"restock/internal/core/apperror"
	appctx "restock/internal/core/context"
	"restock/internal/domain/idem"
)

// Compile-time check that Guard implements the domain contract.
var _ idem.Guard = (*Guard)(nil)

// Guard is the durable idempotency guard. The claim row and the stored
// result live in the caller's transaction: a failed execution rolls the
// claim back with everything else, so a retry starts from scratch.
type Guard struct {
	txm *TxManager
	ttl time.Duration
}

// NewGuard creates the guard. ttl bounds how long completed records are
// kept for replay; CleanupExpired prunes them.
func NewGuard(txm *TxManager, ttl time.Duration) *Guard {
	return &Guard{txm: txm, ttl: ttl}
}

// Do claims the (key, route, user) tuple inside the current transaction.
// First call: runs fn, stores its serialized result on the claim row.
// Replay: returns the stored payload without running fn. A concurrent
// first call holding the claim blocks this insert until it commits or
// aborts, which serializes duplicate submissions naturally.
func (g *Guard) Do(ctx context.Context, key, route string, fn func(ctx context.Context) (any, error)) (idem.Result, error) {
	userID := appctx.GetUserID(ctx)
	q := g.txm.GetQuerier(ctx)
	now := time.Now().UTC()

	tag, err := q.Exec(ctx, `
		INSERT INTO idempotency_records (idempotency_key, route, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key, route, user_id) DO NOTHING
	`, key, route, userID, now, now.Add(g.ttl))
	if err != nil {
		return idem.Result{}, fmt.Errorf("claim idempotency key: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var payload []byte
		err := q.QueryRow(ctx, `
			SELECT result FROM idempotency_records
			WHERE idempotency_key = $1 AND route = $2 AND user_id = $3
		`, key, route, userID).Scan(&payload)
		if err != nil {
			return idem.Result{}, fmt.Errorf("load idempotency record: %w", err)
		}
		if payload == nil {
			// A committed claim always carries its result; a null means
			// the writer died between claim and result inside one
			// transaction, which cannot happen.
			return idem.Result{}, apperror.NewIdempotencyConflict(key)
		}
		return idem.Result{Payload: json.RawMessage(payload), Replayed: true}, nil
	}

	v, err := fn(ctx)
	if err != nil {
		return idem.Result{}, err
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return idem.Result{}, apperror.NewInternal(err)
	}

	if _, err := q.Exec(ctx, `
		UPDATE idempotency_records SET result = $1
		WHERE idempotency_key = $2 AND route = $3 AND user_id = $4
	`, payload, key, route, userID); err != nil {
		return idem.Result{}, fmt.Errorf("store idempotency result: %w", err)
	}

	return idem.Result{Payload: payload, Replayed: false}, nil
}

// CleanupExpired removes idempotency records past their TTL. Run it
// periodically; replays after the TTL re-execute the operation.
func (g *Guard) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := g.txm.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM idempotency_records WHERE expires_at < $1
	`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
