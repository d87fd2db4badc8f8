// Package cache provides caching infrastructure with PostgreSQL LISTEN/NOTIFY support.
package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"restock/internal/core/id"
	"restock/internal/domain/alerts"
	"restock/pkg/logger"
)

const ruleChannel = "alert_rules_changed"

// RuleCache serves per-organization low-stock rule expressions from an
// in-memory map, invalidated via PostgreSQL LISTEN/NOTIFY instead of
// TTL polling. Organizations without a row fall back to the default
// expression.
type RuleCache struct {
	pool *pgxpool.Pool

	mu    sync.RWMutex
	rules map[id.ID]string // orgID -> expression

	// Fallback served when an organization has no custom rule. Empty
	// means the evaluator's built-in default.
	fallback string

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

var _ alerts.RuleSource = (*RuleCache)(nil)

// NewRuleCache creates a rule cache backed by sys_alert_rules.
func NewRuleCache(pool *pgxpool.Pool, fallback string) *RuleCache {
	return &RuleCache{
		pool:     pool,
		rules:    make(map[id.ID]string),
		fallback: fallback,
	}
}

// RuleFor returns the expression configured for the organization, or the
// fallback when none exists.
func (c *RuleCache) RuleFor(ctx context.Context, orgID id.ID) (string, error) {
	c.mu.RLock()
	rule, ok := c.rules[orgID]
	c.mu.RUnlock()
	if !ok {
		return c.fallback, nil
	}
	return rule, nil
}

// Start loads the rules and begins listening for NOTIFY events.
func (c *RuleCache) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.lifecycleMu.Lock()
	if c.started {
		c.lifecycleMu.Unlock()
		return nil
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.started = true
	c.lifecycleMu.Unlock()

	if err := c.loadRules(c.ctx); err != nil {
		c.Stop()
		return fmt.Errorf("load alert rules: %w", err)
	}

	c.wg.Add(1)
	go c.listenLoop()
	logger.Info(c.ctx, "alert rule cache started")
	return nil
}

// Stop gracefully stops the cache listener.
func (c *RuleCache) Stop() {
	c.lifecycleMu.Lock()
	if !c.started {
		c.lifecycleMu.Unlock()
		return
	}
	cancel := c.cancel
	c.started = false
	c.cancel = nil
	c.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	logger.Info(context.Background(), "alert rule cache stopped")
}

// listenLoop listens for PostgreSQL NOTIFY events.
func (c *RuleCache) listenLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// Acquire dedicated connection for LISTEN
		conn, err := c.pool.Acquire(c.ctx)
		if err != nil {
			logger.Error(c.ctx, "failed to acquire connection for LISTEN", "error", err)
			time.Sleep(time.Second)
			continue
		}

		_, err = conn.Exec(c.ctx, "LISTEN "+ruleChannel)
		if err != nil {
			logger.Error(c.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			time.Sleep(time.Second)
			continue
		}

		c.waitForNotifications(conn)
		conn.Release()
	}
}

// waitForNotifications blocks waiting for NOTIFY events.
func (c *RuleCache) waitForNotifications(conn *pgxpool.Conn) {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		// Wait for notification with timeout for graceful shutdown
		ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
		notification, err := conn.Conn().WaitForNotification(ctx)
		cancel()

		if err != nil {
			if c.ctx.Err() != nil {
				return // Shutting down
			}
			// Timeout is expected, continue listening
			continue
		}

		c.handleNotification(notification.Payload)
	}
}

// handleNotification reloads one organization's rule, or everything when
// the payload is not a valid organization id.
func (c *RuleCache) handleNotification(payload string) {
	raw := strings.TrimSpace(payload)
	orgID, err := id.Parse(raw)
	if err != nil {
		if err := c.loadRules(c.ctx); err != nil {
			logger.Error(c.ctx, "failed to reload alert rules", "error", err)
		}
		return
	}

	if err := c.loadRuleForOrg(c.ctx, orgID); err != nil {
		logger.Error(c.ctx, "failed to reload alert rule",
			"organization_id", orgID, "error", err)
	}
}

// loadRules loads every active rule from the database.
func (c *RuleCache) loadRules(ctx context.Context) error {
	rows, err := c.pool.Query(ctx, `
		SELECT organization_id, expression
		FROM sys_alert_rules
		WHERE active
	`)
	if err != nil {
		return fmt.Errorf("query alert rules: %w", err)
	}
	defer rows.Close()

	rules := make(map[id.ID]string)
	for rows.Next() {
		var orgID id.ID
		var expr string
		if err := rows.Scan(&orgID, &expr); err != nil {
			return fmt.Errorf("scan alert rule: %w", err)
		}
		rules[orgID] = expr
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate alert rules: %w", err)
	}

	c.mu.Lock()
	c.rules = rules
	c.mu.Unlock()

	logger.Debug(ctx, "alert rules loaded", "count", len(rules))
	return nil
}

// loadRuleForOrg refreshes one organization after a NOTIFY.
func (c *RuleCache) loadRuleForOrg(ctx context.Context, orgID id.ID) error {
	var expr string
	err := c.pool.QueryRow(ctx, `
		SELECT expression
		FROM sys_alert_rules
		WHERE organization_id = $1 AND active
	`, orgID).Scan(&expr)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// Row gone: rule was deactivated or deleted.
		delete(c.rules, orgID)
		return nil
	}
	c.rules[orgID] = expr
	return nil
}
