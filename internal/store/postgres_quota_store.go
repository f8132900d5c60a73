package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/migratehq/flowgate/internal/model"
	"go.uber.org/zap"
)

// PostgresQuotaStore implements QuotaStore for PostgreSQL
type PostgresQuotaStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresQuotaStore creates a new PostgreSQL quota store
func NewPostgresQuotaStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresQuotaStore {
	return &PostgresQuotaStore{
		pool:   pool,
		logger: logger,
	}
}

// GetQuota retrieves the tenant's quota record
func (s *PostgresQuotaStore) GetQuota(ctx context.Context, tenantID string) (model.TenantQuota, error) {
	query := `
		SELECT tenant_id, max_concurrent_flows, max_flows_per_day, max_storage_mb,
		       max_cpu_units, max_memory_mb, max_execution_minutes, priority_level,
		       updated_at, updated_by
		FROM tenant_quotas
		WHERE tenant_id = $1
	`

	var q model.TenantQuota
	err := s.pool.QueryRow(ctx, query, tenantID).Scan(
		&q.TenantID,
		&q.MaxConcurrentFlows,
		&q.MaxFlowsPerDay,
		&q.MaxStorageMB,
		&q.MaxCPUUnits,
		&q.MaxMemoryMB,
		&q.MaxExecutionMinutes,
		&q.PriorityLevel,
		&q.UpdatedAt,
		&q.UpdatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TenantQuota{}, ErrNotFound
	}
	if err != nil {
		return model.TenantQuota{}, fmt.Errorf("failed to fetch quota: %w", err)
	}

	return q, nil
}

// SetQuota upserts the tenant's quota record
func (s *PostgresQuotaStore) SetQuota(ctx context.Context, quota model.TenantQuota) error {
	query := `
		INSERT INTO tenant_quotas (
			tenant_id, max_concurrent_flows, max_flows_per_day, max_storage_mb,
			max_cpu_units, max_memory_mb, max_execution_minutes, priority_level,
			updated_at, updated_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id) DO UPDATE SET
			max_concurrent_flows = EXCLUDED.max_concurrent_flows,
			max_flows_per_day = EXCLUDED.max_flows_per_day,
			max_storage_mb = EXCLUDED.max_storage_mb,
			max_cpu_units = EXCLUDED.max_cpu_units,
			max_memory_mb = EXCLUDED.max_memory_mb,
			max_execution_minutes = EXCLUDED.max_execution_minutes,
			priority_level = EXCLUDED.priority_level,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`

	_, err := s.pool.Exec(ctx, query,
		quota.TenantID,
		quota.MaxConcurrentFlows,
		quota.MaxFlowsPerDay,
		quota.MaxStorageMB,
		quota.MaxCPUUnits,
		quota.MaxMemoryMB,
		quota.MaxExecutionMinutes,
		quota.PriorityLevel,
		quota.UpdatedAt,
		quota.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert quota: %w", err)
	}

	s.logger.Debug("Quota record written",
		zap.String("tenant_id", quota.TenantID),
		zap.Int("max_concurrent_flows", quota.MaxConcurrentFlows))

	return nil
}

// ListTenantIDs returns every tenant known to the platform
func (s *PostgresQuotaStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	query := `SELECT client_account_id FROM tenants ORDER BY client_account_id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tenants: %w", err)
	}

	return ids, nil
}
