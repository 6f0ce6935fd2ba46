package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/devrev/tenantsync/internal/model"
)

const tenantsSchema = `
CREATE TABLE IF NOT EXISTS tenants (
	name        TEXT PRIMARY KEY,
	state       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	version     BIGINT NOT NULL DEFAULT 1
)`

// PostgresSettingsStore persists tenant settings in PostgreSQL.
type PostgresSettingsStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresSettingsStore opens a connection pool and verifies connectivity.
func NewPostgresSettingsStore(ctx context.Context, connString string, maxConns, minConns int32, logger *zap.Logger) (*PostgresSettingsStore, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	poolCfg.MaxConns = maxConns
	poolCfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("connected to postgres")

	return &PostgresSettingsStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// EnsureSchema creates the tenants table if it does not exist.
func (s *PostgresSettingsStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, tenantsSchema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// ListNames returns the names of every tenant, sorted.
func (s *PostgresSettingsStore) ListNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan tenant name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenant names: %w", err)
	}
	return names, nil
}

// Load returns the settings for name, or ErrNotFound.
func (s *PostgresSettingsStore) Load(ctx context.Context, name string) (*model.TenantSettings, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT name, state, description, created_at, updated_at, version
		 FROM tenants WHERE name = $1`, name)

	var settings model.TenantSettings
	err := row.Scan(&settings.Name, &settings.State, &settings.Description,
		&settings.CreatedAt, &settings.UpdatedAt, &settings.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tenant %s: %w", name, err)
	}
	return &settings, nil
}

// LoadAll returns settings for every tenant, sorted by name.
func (s *PostgresSettingsStore) LoadAll(ctx context.Context) ([]*model.TenantSettings, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, state, description, created_at, updated_at, version
		 FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to load tenants: %w", err)
	}
	defer rows.Close()

	var all []*model.TenantSettings
	for rows.Next() {
		var settings model.TenantSettings
		if err := rows.Scan(&settings.Name, &settings.State, &settings.Description,
			&settings.CreatedAt, &settings.UpdatedAt, &settings.Version); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		all = append(all, &settings)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}
	return all, nil
}

// Save inserts or updates settings. The row version is bumped on update and
// the generated timestamps and version are written back into settings.
func (s *PostgresSettingsStore) Save(ctx context.Context, settings *model.TenantSettings) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tenants (name, state, description)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET state       = EXCLUDED.state,
		    description = EXCLUDED.description,
		    updated_at  = now(),
		    version     = tenants.version + 1
		RETURNING created_at, updated_at, version`,
		settings.Name, settings.State, settings.Description)

	if err := row.Scan(&settings.CreatedAt, &settings.UpdatedAt, &settings.Version); err != nil {
		return fmt.Errorf("failed to save tenant %s: %w", settings.Name, err)
	}
	return nil
}

func (s *PostgresSettingsStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresSettingsStore) Close() {
	s.pool.Close()
}
