// Package postgres exports enriched catalog records into Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/appcatalog/internal/catalog"
)

const defaultTable = "app_catalog"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ExporterConfig controls the Postgres connection pool used for exports.
type ExporterConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Exporter upserts enriched records keyed by application id.
type Exporter struct {
	pool  execCloser
	table string
	clock catalog.Clock
}

// NewExporter creates a Postgres-backed Exporter using the provided config.
func NewExporter(ctx context.Context, cfg ExporterConfig, clock catalog.Clock) (*Exporter, error) {
	if cfg.DSN == "" {
		return nil, errors.New("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Exporter{pool: pool, table: table, clock: clock}, nil
}

// NewExporterWithPool constructs an exporter from an existing pool (primarily for testing).
func NewExporterWithPool(pool execCloser, table string, clock catalog.Clock) (*Exporter, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Exporter{pool: pool, table: name, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (e *Exporter) Close() {
	if e == nil || e.pool == nil {
		return
	}
	e.pool.Close()
}

// Export upserts every record of one enriched catalog file and returns how
// many rows were written before the first failure.
func (e *Exporter) Export(ctx context.Context, runID, source string, records []catalog.EnrichedRecord) (int, error) {
	if e == nil || e.pool == nil {
		return 0, errors.New("exporter is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	bundle_id,
	name,
	icon_url,
	seller_url,
	universal_links,
	source_file,
	run_id,
	exported_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (id) DO UPDATE SET
	bundle_id = EXCLUDED.bundle_id,
	name = EXCLUDED.name,
	icon_url = EXCLUDED.icon_url,
	seller_url = EXCLUDED.seller_url,
	universal_links = EXCLUDED.universal_links,
	source_file = EXCLUDED.source_file,
	run_id = EXCLUDED.run_id,
	exported_at = EXCLUDED.exported_at`, e.table)

	exportedAt := e.now()
	exported := 0
	for _, rec := range records {
		if rec.ID == "" {
			continue
		}
		links, err := json.Marshal(nonNil(rec.UniversalLinks))
		if err != nil {
			return exported, fmt.Errorf("marshal universal links: %w", err)
		}
		args := []any{
			rec.ID,
			rec.BundleID,
			rec.Name,
			rec.IconURL,
			rec.SellerURL,
			links,
			source,
			runID,
			exportedAt,
		}
		if _, err := e.pool.Exec(ctx, query, args...); err != nil {
			return exported, fmt.Errorf("upsert record %s: %w", rec.ID, err)
		}
		exported++
	}
	return exported, nil
}

func (e *Exporter) now() time.Time {
	if e.clock == nil {
		return time.Now().UTC()
	}
	return e.clock.Now()
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

func nonNil(links []string) []string {
	if links == nil {
		return []string{}
	}
	return links
}
