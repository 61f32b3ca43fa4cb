// Package store provides the Data Access Layer (Repository) for rule
// definitions kept in PostgreSQL, the source of truth the syncer reads.
// It handles all direct interactions with the database using the pgx driver.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/switchboard/internal/ruleengine"
)

// Compile-time check to verify that PostgresStore implements RuleRepository.
var _ RuleRepository = (*PostgresStore)(nil)

// ErrDuplicate is returned when a save would violate a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate entry")

// RuleRepository defines the persistence operations on rule definitions.
type RuleRepository interface {
	// Revision returns the change counter of the rule tables. It grows with
	// every committed change.
	Revision(ctx context.Context) (int64, error)

	// LoadDefinition reads every criterion, group and rule as one
	// consistent snapshot, together with the revision it reflects.
	LoadDefinition(ctx context.Context) (int64, ruleengine.Definition, error)

	// SaveDefinition replaces the stored definition with def atomically and
	// returns the new revision.
	SaveDefinition(ctx context.Context, def ruleengine.Definition) (int64, error)
}

// PostgresStore is the implementation of RuleRepository backed by PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new repository instance with the given connection pool.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresStore{db: db}
}

// Revision returns the current change counter.
func (s *PostgresStore) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := s.db.QueryRow(ctx, `SELECT revision FROM rules_revision WHERE id`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("failed to read rules revision: %w", err)
	}
	return rev, nil
}

// LoadDefinition reads the whole definition inside a read-only
// REPEATABLE READ transaction, so the revision and the rows agree even
// while writers commit.
func (s *PostgresStore) LoadDefinition(ctx context.Context) (int64, ruleengine.Definition, error) {
	var def ruleengine.Definition

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return 0, def, fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	// Read-only: rollback is the normal way out.
	defer func() { _ = tx.Rollback(ctx) }()

	var rev int64
	if err := tx.QueryRow(ctx, `SELECT revision FROM rules_revision WHERE id`).Scan(&rev); err != nil {
		return 0, def, fmt.Errorf("failed to read rules revision: %w", err)
	}

	if def.Criteria, err = loadCriteria(ctx, tx); err != nil {
		return 0, def, err
	}
	if def.Groups, err = loadGroups(ctx, tx); err != nil {
		return 0, def, err
	}
	return rev, def, nil
}

func loadCriteria(ctx context.Context, tx pgx.Tx) ([]ruleengine.CriterionDefinition, error) {
	rows, err := tx.Query(ctx, `SELECT name, kind, description FROM criteria ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list criteria: %w", err)
	}
	// Ensure rows are closed to prevent connection leaks in the pool.
	defer rows.Close()

	var out []ruleengine.CriterionDefinition
	for rows.Next() {
		var c ruleengine.CriterionDefinition
		if err := rows.Scan(&c.Name, &c.Kind, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan criterion row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("criteria iteration error: %w", err)
	}
	return out, nil
}

func loadGroups(ctx context.Context, tx pgx.Tx) ([]ruleengine.GroupDefinition, error) {
	rows, err := tx.Query(ctx, `
		SELECT g.id, g.name, g.defaults,
		       r.description, r.priority, r.features, r.condition
		FROM switch_groups g
		LEFT JOIN switch_rules r ON r.group_id = g.id
		ORDER BY g.position, g.id, r.position, r.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []ruleengine.GroupDefinition{}
	lastID := int64(-1)
	for rows.Next() {
		var (
			id          int64
			name        string
			defaults    map[string]any
			description *string
			priority    *int
			features    map[string]any
			condition   *string
		)
		if err := rows.Scan(&id, &name, &defaults, &description, &priority, &features, &condition); err != nil {
			return nil, fmt.Errorf("failed to scan group row: %w", err)
		}

		if id != lastID {
			groups = append(groups, ruleengine.GroupDefinition{Name: name, Defaults: defaults})
			lastID = id
		}
		// LEFT JOIN yields one all-NULL rule row for groups without rules.
		if condition == nil {
			continue
		}
		g := &groups[len(groups)-1]
		g.Rules = append(g.Rules, ruleengine.RuleDefinition{
			Description: deref(description),
			Priority:    deref(priority),
			Features:    features,
			Condition:   *condition,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("groups iteration error: %w", err)
	}
	return groups, nil
}

// SaveDefinition replaces every criterion, group and rule with def in one
// transaction. It does not validate conditions; callers build def first.
func (s *PostgresStore) SaveDefinition(ctx context.Context, def ruleengine.Definition) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// switch_rules cascade from switch_groups.
	if _, err := tx.Exec(ctx, `DELETE FROM switch_groups`); err != nil {
		return 0, fmt.Errorf("failed to clear groups: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM criteria`); err != nil {
		return 0, fmt.Errorf("failed to clear criteria: %w", err)
	}

	for _, c := range def.Criteria {
		if _, err := tx.Exec(ctx,
			`INSERT INTO criteria (name, kind, description) VALUES ($1, $2, $3)`,
			c.Name, string(c.Kind), c.Description,
		); err != nil {
			return 0, wrapWriteErr(err, "criterion", c.Name)
		}
	}

	for gi, g := range def.Groups {
		var groupID int64
		if err := tx.QueryRow(ctx,
			`INSERT INTO switch_groups (name, defaults, position) VALUES ($1, $2, $3) RETURNING id`,
			g.Name, g.Defaults, gi,
		).Scan(&groupID); err != nil {
			return 0, wrapWriteErr(err, "group", g.Name)
		}

		// Batch the rules of one group into a single round trip.
		batch := &pgx.Batch{}
		for ri, r := range g.Rules {
			batch.Queue(
				`INSERT INTO switch_rules (group_id, description, priority, features, condition, position)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				groupID, r.Description, r.Priority, r.Features, r.Condition, ri,
			)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return 0, wrapWriteErr(err, "rules of group", g.Name)
			}
		}
	}

	var rev int64
	if err := tx.QueryRow(ctx, `SELECT revision FROM rules_revision WHERE id`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("failed to read rules revision: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit definition: %w", err)
	}
	return rev, nil
}

// wrapWriteErr maps PostgreSQL constraint violations to readable errors.
func wrapWriteErr(err error, what, name string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %q: %w", what, name, ErrDuplicate)
		case "23514": // check_violation
			return fmt.Errorf("%s %q violates constraint %s: %w", what, name, pgErr.ConstraintName, err)
		}
	}
	return fmt.Errorf("failed to insert %s %q: %w", what, name, err)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
