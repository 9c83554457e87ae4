// Package invite implements the invite-code quota gate. Creating a new
// project consumes one use of a code; reading projects already created
// under a code is always allowed, even after the quota is exhausted.
package invite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrCodeInvalid is returned when no active invite code matches.
	ErrCodeInvalid = errors.New("invite code invalid or inactive")

	// ErrQuotaExhausted is returned when a consuming operation finds no
	// remaining uses on the code.
	ErrQuotaExhausted = errors.New("invite code quota exhausted")
)

// Record is one invite-code row.
type Record struct {
	Code      string `db:"code"`
	MaxUses   int    `db:"max_uses"`
	UsedCount int    `db:"used_count"`
	Active    bool   `db:"active"`
}

// CanConsume reports whether the record still has budget for creating
// a new project.
func (r Record) CanConsume() bool {
	return r.Active && r.UsedCount < r.MaxUses
}

// CanRead reports whether the record permits read access to projects
// already created under it. Exhausted quota never blocks reads.
func (r Record) CanRead() bool {
	return r.Active
}

// Gate owns the invite-code decision logic and its persisted state.
// When gating is disabled every check passes with an empty code.
type Gate struct {
	db             *sqlx.DB
	logger         *slog.Logger
	required       bool
	defaultCode    string
	defaultMaxUses int
}

// Config holds gate settings.
type Config struct {
	Required       bool
	DefaultCode    string
	DefaultMaxUses int
}

// NewGate creates a Gate backed by the given database.
func NewGate(db *sqlx.DB, cfg Config, logger *slog.Logger) *Gate {
	return &Gate{
		db:             db,
		logger:         logger,
		required:       cfg.Required,
		defaultCode:    strings.TrimSpace(cfg.DefaultCode),
		defaultMaxUses: cfg.DefaultMaxUses,
	}
}

// Required reports whether invite gating is enabled.
func (g *Gate) Required() bool {
	return g.required
}

// Consume validates the code and decrements its remaining budget. It
// returns the normalized code on success. The row is locked for the
// duration of the transaction so concurrent uploads cannot overspend
// the quota.
func (g *Gate) Consume(ctx context.Context, code string) (string, error) {
	if !g.required {
		return "", nil
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrCodeInvalid
	}

	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin invite transaction: %w", err)
	}
	defer tx.Rollback()

	record, err := g.lockRecord(ctx, tx, code)
	if err != nil {
		return "", err
	}

	if !record.CanConsume() {
		if !record.Active {
			return "", ErrCodeInvalid
		}
		g.logger.Warn("invite code exhausted",
			slog.String("code", record.Code),
			slog.Int("max_uses", record.MaxUses),
		)
		return "", ErrQuotaExhausted
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE invite_codes SET used_count = used_count + 1, updated_at = NOW() WHERE code = $1`,
		record.Code,
	)
	if err != nil {
		return "", fmt.Errorf("consume invite code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit invite transaction: %w", err)
	}

	return record.Code, nil
}

// Authorize validates the code for read access only. Exhausted codes
// still pass so status polling, viewing, editing, and export keep
// working for projects that already exist.
func (g *Gate) Authorize(ctx context.Context, code string) (string, error) {
	if !g.required {
		return "", nil
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrCodeInvalid
	}

	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin invite transaction: %w", err)
	}
	defer tx.Rollback()

	record, err := g.lockRecord(ctx, tx, code)
	if err != nil {
		return "", err
	}

	if !record.CanRead() {
		return "", ErrCodeInvalid
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit invite transaction: %w", err)
	}

	return record.Code, nil
}

// lockRecord loads the invite row under FOR UPDATE, provisioning the
// configured default code on first use.
func (g *Gate) lockRecord(ctx context.Context, tx *sqlx.Tx, code string) (*Record, error) {
	var record Record
	err := tx.GetContext(ctx, &record,
		`SELECT code, max_uses, used_count, active FROM invite_codes WHERE code = $1 FOR UPDATE`,
		code,
	)
	if err == nil {
		return &record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load invite code: %w", err)
	}

	if g.defaultCode == "" || code != g.defaultCode {
		return nil, ErrCodeInvalid
	}

	// configured default code is provisioned lazily
	_, err = tx.ExecContext(ctx,
		`INSERT INTO invite_codes (code, max_uses, used_count, active, created_at, updated_at)
		 VALUES ($1, $2, 0, TRUE, $3, $3)`,
		code, g.defaultMaxUses, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("provision default invite code: %w", err)
	}

	g.logger.Info("provisioned default invite code",
		slog.String("code", code),
		slog.Int("max_uses", g.defaultMaxUses),
	)

	return &Record{Code: code, MaxUses: g.defaultMaxUses, Active: true}, nil
}
