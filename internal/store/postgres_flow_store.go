package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresFlowStore implements FlowStore and TenantDirectory for PostgreSQL
type PostgresFlowStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPool creates a pgx connection pool shared by the Postgres stores
func NewPool(host string, port int, database, user, password string, maxConns, minConns int) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewPostgresFlowStore creates a new PostgreSQL flow store
func NewPostgresFlowStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresFlowStore {
	return &PostgresFlowStore{
		pool:   pool,
		logger: logger,
	}
}

// CountActiveFlows returns the number of non-terminal flows owned by the tenant
func (s *PostgresFlowStore) CountActiveFlows(ctx context.Context, tenantID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM flows
		WHERE client_account_id = $1
		  AND status NOT IN ('completed', 'failed', 'deleted')
	`

	var count int
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count active flows: %w", err)
	}

	return count, nil
}

// CountFlowsToday returns the number of flows the tenant created today,
// per the database clock
func (s *PostgresFlowStore) CountFlowsToday(ctx context.Context, tenantID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM flows
		WHERE client_account_id = $1
		  AND created_at >= CURRENT_DATE
	`

	var count int
	if err := s.pool.QueryRow(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count flows created today: %w", err)
	}

	return count, nil
}

// ResolveOwner returns the owning tenant of a flow
func (s *PostgresFlowStore) ResolveOwner(ctx context.Context, flowID string) (string, error) {
	query := `
		SELECT client_account_id
		FROM flows
		WHERE flow_id = $1
	`

	var tenantID string
	err := s.pool.QueryRow(ctx, query, flowID).Scan(&tenantID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve flow owner: %w", err)
	}

	return tenantID, nil
}

// IsActive reports whether the tenant exists and is in active status
func (s *PostgresFlowStore) IsActive(ctx context.Context, tenantID string) (bool, error) {
	query := `
		SELECT status
		FROM tenants
		WHERE client_account_id = $1
	`

	var status string
	err := s.pool.QueryRow(ctx, query, tenantID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query tenant status: %w", err)
	}

	return status == "active", nil
}

// IsPlatformAdmin reports whether the user holds the platform admin role
func (s *PostgresFlowStore) IsPlatformAdmin(ctx context.Context, userID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM platform_admins WHERE user_id = $1
		)
	`

	var isAdmin bool
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&isAdmin); err != nil {
		return false, fmt.Errorf("failed to query platform admin role: %w", err)
	}

	return isAdmin, nil
}

// Ping verifies database connectivity
func (s *PostgresFlowStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
