package rulestore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/invoice-normalizer/constants"
	"github.com/joseph-ayodele/invoice-normalizer/internal/vendors"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// Store reads vendor rules at startup. Requests never write to it.
type Store struct {
	db     *sql.DB
	pool   *pgxpool.Pool // nil for sqlite
	logger *slog.Logger
}

// Open connects to the rule database. Postgres goes through a pgx pool wrapped as
// *sql.DB so both drivers share the same query path.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}

	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres:
		logger.Info("rulestore.connect", "driver", DriverPostgres)
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			logger.Error("rulestore.connect_failed", "error", err)
			return nil, fmt.Errorf("parse dsn: %w", err)
		}
		if cfg.MaxConns > 0 {
			pc.MaxConns = cfg.MaxConns
		}
		if cfg.MinConns > 0 {
			pc.MinConns = cfg.MinConns
		}
		if cfg.MaxConnLifetime > 0 {
			pc.MaxConnLifetime = cfg.MaxConnLifetime
		}
		if cfg.MaxConnIdleTime > 0 {
			pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		}
		pc.ConnConfig.RuntimeParams["application_name"] = "invoice-normalizer"
		if cfg.StatementTimeout > 0 {
			pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
		}

		dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		pool, err := pgxpool.NewWithConfig(dctx, pc)
		if err != nil {
			logger.Error("rulestore.connect_failed", "error", err)
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &Store{db: stdlib.OpenDBFromPool(pool), pool: pool, logger: logger}, nil

	case DriverSQLite:
		logger.Info("rulestore.connect", "driver", DriverSQLite, "dsn", cfg.DSN)
		db, err := sql.Open("sqlite", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// in-memory databases are per connection
		db.SetMaxOpenConns(1)
		return &Store{db: db, logger: logger}, nil

	default:
		return nil, fmt.Errorf("unsupported rules driver %q", cfg.Driver)
	}
}

// Close closes the database connections gracefully
func (s *Store) Close() {
	if s == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		s.logger.Error("rulestore.close_failed", "error", err)
	}
	if s.pool != nil {
		s.pool.Close()
	}
	s.logger.Info("rulestore.closed")
}

// HealthCheck pings the rule database.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.db.PingContext(ctx)
}

const schema = `CREATE TABLE IF NOT EXISTS vendor_rules (
	vendor_key  TEXT NOT NULL,
	category    TEXT,
	pack_token  TEXT,
	multiplier  INTEGER
)`

// EnsureSchema creates the vendor_rules table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create vendor_rules: %w", err)
	}
	return nil
}

// Rule is one row of vendor_rules. A row may carry a category, a pack token, or both.
type Rule struct {
	VendorKey  string
	Category   string
	PackToken  string
	Multiplier int
}

// Rules reads every row, ordered so repeated loads build the same registry.
func (s *Store) Rules(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vendor_key, category, pack_token, multiplier FROM vendor_rules ORDER BY vendor_key, pack_token`)
	if err != nil {
		return nil, fmt.Errorf("query vendor_rules: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Warn("rulestore.rows_close_failed", "error", err)
		}
	}()

	var out []Rule
	for rows.Next() {
		var (
			key        string
			category   sql.NullString
			token      sql.NullString
			multiplier sql.NullInt64
		)
		if err := rows.Scan(&key, &category, &token, &multiplier); err != nil {
			return nil, fmt.Errorf("scan vendor_rules: %w", err)
		}
		out = append(out, Rule{
			VendorKey:  key,
			Category:   category.String,
			PackToken:  token.String,
			Multiplier: int(multiplier.Int64),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vendor_rules: %w", err)
	}
	return out, nil
}

// Load turns the stored rules into registry options. Category assignments come
// before pack tokens so a vendor's tokens sit on top of its category's set.
func (s *Store) Load(ctx context.Context) ([]vendors.Option, error) {
	rules, err := s.Rules(ctx)
	if err != nil {
		return nil, err
	}
	opts, skipped := Options(rules)
	if skipped > 0 {
		s.logger.Warn("rulestore.rules_skipped", "skipped", skipped)
	}
	s.logger.Info("rulestore.loaded", "rows", len(rules), "options", len(opts))
	return opts, nil
}

// Options converts rows into registry options and reports how many rows were unusable.
func Options(rules []Rule) ([]vendors.Option, int) {
	var (
		categories []vendors.Option
		tokenOpts  []vendors.Option
		order      []string
		tokens     = map[string][]vendors.PackToken{}
		seenCat    = map[string]bool{}
		skipped    int
	)
	for _, r := range rules {
		key := vendors.Key(r.VendorKey)
		if key == "" {
			skipped++
			continue
		}
		if c := strings.TrimSpace(r.Category); c != "" && !seenCat[key] {
			seenCat[key] = true
			categories = append(categories, vendors.WithVendorCategory(key, c))
		}
		t := strings.ToUpper(strings.TrimSpace(r.PackToken))
		if t == "" {
			continue
		}
		if r.Multiplier <= 0 || r.Multiplier > constants.MaxUnitsPerCase {
			skipped++
			continue
		}
		if _, ok := tokens[key]; !ok {
			order = append(order, key)
		}
		tokens[key] = append(tokens[key], vendors.PackToken{Token: t, Multiplier: r.Multiplier})
	}
	for _, key := range order {
		tokenOpts = append(tokenOpts, vendors.WithVendorPackTokens(key, tokens[key]...))
	}
	return append(categories, tokenOpts...), skipped
}

// BuildRegistry returns the vendor registry for a process: the built-in sets plus
// whatever the configured store holds. An empty driver means built-in sets only.
func BuildRegistry(ctx context.Context, cfg Config, logger *slog.Logger) (*vendors.Registry, error) {
	if strings.TrimSpace(cfg.Driver) == "" {
		return vendors.NewRegistry(), nil
	}
	s, err := Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.HealthCheck(ctx, cfg.DialTimeout); err != nil {
		return nil, fmt.Errorf("ping rule store: %w", err)
	}
	opts, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return vendors.NewRegistry(opts...), nil
}
