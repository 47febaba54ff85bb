package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/miradorstack/mirador-rcm/internal/models"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Schema creates the criticality table. The unique failure_mode_id column enforces one record
// per failure mode.
const Schema = `CREATE TABLE IF NOT EXISTS criticality (
	id UUID PRIMARY KEY,
	failure_mode_id TEXT NOT NULL UNIQUE,
	severity SMALLINT NOT NULL CHECK (severity BETWEEN 1 AND 10),
	occurrence SMALLINT NOT NULL CHECK (occurrence BETWEEN 1 AND 10),
	detection SMALLINT NOT NULL CHECK (detection BETWEEN 1 AND 10),
	rpn INTEGER NOT NULL,
	criticality_index TEXT NOT NULL,
	consequence_type TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL
)`

// PostgresOptions configures the connection pool.
type PostgresOptions struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenPostgres opens and pings a Postgres pool.
func OpenPostgres(ctx context.Context, opts PostgresOptions) (*sql.DB, error) {
	if opts.DSN == "" {
		return nil, errors.New("database dsn is required")
	}
	db, err := sql.Open("postgres", opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// PostgresCriticalityRepo stores criticality records in Postgres.
type PostgresCriticalityRepo struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresCriticalityRepo wraps an open pool.
func NewPostgresCriticalityRepo(db *sql.DB, logger *slog.Logger) *PostgresCriticalityRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresCriticalityRepo{db: db, logger: logger, now: time.Now}
}

// EnsureSchema creates the table when it does not exist.
func (r *PostgresCriticalityRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create criticality schema: %w", err)
	}
	return nil
}

const selectCriticality = `SELECT id, failure_mode_id, severity, occurrence, detection, rpn,
	criticality_index, consequence_type, updated_at
FROM criticality WHERE failure_mode_id = $1`

// Get implements CriticalityRepo.
func (r *PostgresCriticalityRepo) Get(ctx context.Context, failureModeID string) (models.Criticality, error) {
	var c models.Criticality
	var index string
	err := r.db.QueryRowContext(ctx, selectCriticality, failureModeID).Scan(
		&c.ID, &c.FailureModeID, &c.Severity, &c.Occurrence, &c.Detection, &c.RPN,
		&index, &c.ConsequenceType, &c.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Criticality{}, ErrNotFound
	}
	if err != nil {
		return models.Criticality{}, fmt.Errorf("query criticality: %w", err)
	}
	c.Index = models.CriticalityIndex(index)
	return c, nil
}

const insertCriticality = `INSERT INTO criticality (id, failure_mode_id, severity, occurrence,
	detection, rpn, criticality_index, consequence_type, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Create implements CriticalityRepo. The unique constraint turns a concurrent duplicate
// insert into an InvariantViolation as well.
func (r *PostgresCriticalityRepo) Create(ctx context.Context, c models.Criticality) (models.Criticality, error) {
	if err := requireFailureMode(c); err != nil {
		return models.Criticality{}, err
	}
	c.ID = uuid.NewString()
	c.UpdatedAt = r.now().UTC()
	_, err := r.db.ExecContext(ctx, insertCriticality,
		c.ID, c.FailureModeID, c.Severity, c.Occurrence, c.Detection, c.RPN,
		string(c.Index), c.ConsequenceType, c.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.Criticality{}, duplicate(c.FailureModeID)
		}
		return models.Criticality{}, fmt.Errorf("insert criticality: %w", err)
	}
	r.logger.Debug("criticality created", slog.String("failure_mode_id", c.FailureModeID), slog.String("id", c.ID))
	return c, nil
}

const updateCriticality = `UPDATE criticality SET severity = $2, occurrence = $3, detection = $4,
	rpn = $5, criticality_index = $6, consequence_type = $7, updated_at = $8
WHERE failure_mode_id = $1
RETURNING id`

// Update implements CriticalityRepo.
func (r *PostgresCriticalityRepo) Update(ctx context.Context, c models.Criticality) (models.Criticality, error) {
	if err := requireFailureMode(c); err != nil {
		return models.Criticality{}, err
	}
	c.UpdatedAt = r.now().UTC()
	err := r.db.QueryRowContext(ctx, updateCriticality,
		c.FailureModeID, c.Severity, c.Occurrence, c.Detection, c.RPN,
		string(c.Index), c.ConsequenceType, c.UpdatedAt,
	).Scan(&c.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Criticality{}, ErrNotFound
	}
	if err != nil {
		return models.Criticality{}, fmt.Errorf("update criticality: %w", err)
	}
	return c, nil
}
