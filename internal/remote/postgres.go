package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mesh-intelligence/storytree/pkg/types"
)

// PostgresClient stores documents as JSONB rows in a single table. The
// project ID selects the table prefix, so several projects can share one
// database.
type PostgresClient struct {
	pool  *pgxpool.Pool
	table string
}

var _ DocumentClient = (*PostgresClient)(nil)

// DialPostgres connects to cfg.URL using cfg.Credential as the password,
// pings the server, and creates the documents table if needed.
func DialPostgres(ctx context.Context, cfg types.RemoteConfig, logger *slog.Logger) (DocumentClient, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: postgres url is required", types.ErrBackendUnavailable)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.Credential != "" {
		poolCfg.ConnConfig.Password = cfg.Credential
	}
	poolCfg.MaxConns = 4

	// Port 6543 is a transaction pooler that rejects prepared statements.
	if poolCfg.ConnConfig.Port == 6543 && poolCfg.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		logger.Debug("auto-configured cache_describe mode for pooler compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	c := &PostgresClient{pool: pool, table: DocumentsTable(cfg.ProjectID)}
	if _, err := pool.Exec(ctx, fmt.Sprintf(createDocumentsTable, c.table)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create %s: %w", c.table, err)
	}

	logger.Info("connected to remote document store", "provider", types.ProviderPostgres, "table", c.table)
	return c, nil
}

const createDocumentsTable = `CREATE TABLE IF NOT EXISTS %s (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    body JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
)`

// DocumentsTable returns the table name for a project: the project ID
// lowercased, with every character outside [a-z0-9_] replaced by '_', used
// as a prefix to "documents".
func DocumentsTable(projectID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(projectID) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	prefix := b.String()
	if prefix == "" {
		return "documents"
	}
	if unicode.IsDigit(rune(prefix[0])) {
		prefix = "p" + prefix
	}
	return prefix + "_documents"
}

// Get fetches one document body.
func (c *PostgresClient) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE collection = $1 AND id = $2`, c.table)

	var body []byte
	err := c.pool.QueryRow(ctx, query, collection, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select %s/%s: %w", collection, id, err)
	}
	return body, true, nil
}

// Put upserts one document.
func (c *PostgresClient) Put(ctx context.Context, collection, id string, body []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (collection, id, body, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (collection, id) DO UPDATE
		SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, c.table)

	if _, err := c.pool.Exec(ctx, query, collection, id, string(body)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes one document.
func (c *PostgresClient) Delete(ctx context.Context, collection, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE collection = $1 AND id = $2`, c.table)

	if _, err := c.pool.Exec(ctx, query, collection, id); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// List returns every body in collection, most recently written first.
func (c *PostgresClient) List(ctx context.Context, collection string) ([][]byte, error) {
	query := fmt.Sprintf(`SELECT body FROM %s WHERE collection = $1 ORDER BY updated_at DESC`, c.table)

	rows, err := c.pool.Query(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var bodies [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		bodies = append(bodies, body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return bodies, nil
}

// Close closes the connection pool.
func (c *PostgresClient) Close() error {
	c.pool.Close()
	return nil
}
