package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/migratehq/flowgate/internal/model"
)

// Config represents the flowgate service configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Isolation    IsolationConfig    `mapstructure:"isolation"`
	Quota        QuotaConfig        `mapstructure:"quota"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// Orchestrator modes
const (
	OrchestratorLocal  = "local"
	OrchestratorRemote = "remote"
)

// ServerConfig represents process-level configuration
type ServerConfig struct {
	InstanceID      string        `mapstructure:"instance_id"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig represents the PostgreSQL flow store configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MinConnections int    `mapstructure:"min_connections"`
}

// RedisConfig represents the Redis ownership cache configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// OrchestratorConfig selects the flow engine the service delegates to.
// In local mode an in-process orchestrator serves as both delegate and
// flow store, so created flows and the counters they feed share one
// source of truth; remote mode delegates to the engine's HTTP API with
// PostgreSQL as the flow store.
type OrchestratorConfig struct {
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

// IsolationConfig represents tenant isolation policy configuration
type IsolationConfig struct {
	Level string `mapstructure:"level"`
}

// QuotaConfig represents default quota ceilings applied to tenants with
// no explicit quota record
type QuotaConfig struct {
	MaxConcurrentFlows  int     `mapstructure:"max_concurrent_flows"`
	MaxFlowsPerDay      int     `mapstructure:"max_flows_per_day"`
	MaxStorageMB        int64   `mapstructure:"max_storage_mb"`
	MaxCPUUnits         float64 `mapstructure:"max_cpu_units"`
	MaxMemoryMB         int64   `mapstructure:"max_memory_mb"`
	MaxExecutionMinutes int     `mapstructure:"max_execution_minutes"`
	PriorityLevel       int     `mapstructure:"priority_level"`
}

// CacheConfig represents in-memory tenant cache configuration
type CacheConfig struct {
	MaxTenants   int           `mapstructure:"max_tenants"`
	MetricsTTL   time.Duration `mapstructure:"metrics_ttl"`
	QuotaTTL     time.Duration `mapstructure:"quota_ttl"`
	OwnershipTTL time.Duration `mapstructure:"ownership_ttl"`
}

// MetricsConfig represents Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			InstanceID:      "flowgate-0",
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "flowgate",
			User:           "flowgate",
			MaxConnections: 10,
			MinConnections: 2,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			DB:       0,
			PoolSize: 10,
		},
		Orchestrator: OrchestratorConfig{
			Mode: OrchestratorLocal,
		},
		Isolation: IsolationConfig{
			Level: string(model.IsolationStrict),
		},
		Quota: QuotaConfig{
			MaxConcurrentFlows:  5,
			MaxFlowsPerDay:      50,
			MaxStorageMB:        1024,
			MaxCPUUnits:         4,
			MaxMemoryMB:         8192,
			MaxExecutionMinutes: 60,
			PriorityLevel:       3,
		},
		Cache: CacheConfig{
			MaxTenants:   1024,
			MetricsTTL:   30 * time.Second,
			QuotaTTL:     5 * time.Minute,
			OwnershipTTL: 24 * time.Hour,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.InstanceID == "" {
		return errors.New("server.instance_id is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d is out of range", c.Database.Port)
	}
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if c.Database.MaxConnections < c.Database.MinConnections {
		return fmt.Errorf("database.max_connections %d is below min_connections %d",
			c.Database.MaxConnections, c.Database.MinConnections)
	}
	if c.Redis.Host == "" {
		return errors.New("redis.host is required")
	}
	switch c.Orchestrator.Mode {
	case OrchestratorLocal:
	case OrchestratorRemote:
		if c.Orchestrator.BaseURL == "" {
			return errors.New("orchestrator.base_url is required in remote mode")
		}
	default:
		return fmt.Errorf("orchestrator.mode %q is not one of local, remote", c.Orchestrator.Mode)
	}
	if !model.IsolationLevel(c.Isolation.Level).Valid() {
		return fmt.Errorf("isolation.level %q is not one of strict, controlled, shared", c.Isolation.Level)
	}
	if err := c.DefaultQuota("").Validate(); err != nil {
		return fmt.Errorf("quota defaults invalid: %w", err)
	}
	if c.Cache.MaxTenants < 1 {
		return fmt.Errorf("cache.max_tenants must be at least 1, got %d", c.Cache.MaxTenants)
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d is out of range", c.Metrics.Port)
	}
	return nil
}

// IsolationLevel returns the configured isolation level
func (c *Config) IsolationLevel() model.IsolationLevel {
	return model.IsolationLevel(c.Isolation.Level)
}

// DefaultQuota materializes the configured default ceilings for a tenant
func (c *Config) DefaultQuota(tenantID string) model.TenantQuota {
	return model.TenantQuota{
		TenantID:            tenantID,
		MaxConcurrentFlows:  c.Quota.MaxConcurrentFlows,
		MaxFlowsPerDay:      c.Quota.MaxFlowsPerDay,
		MaxStorageMB:        c.Quota.MaxStorageMB,
		MaxCPUUnits:         c.Quota.MaxCPUUnits,
		MaxMemoryMB:         c.Quota.MaxMemoryMB,
		MaxExecutionMinutes: c.Quota.MaxExecutionMinutes,
		PriorityLevel:       c.Quota.PriorityLevel,
	}
}
