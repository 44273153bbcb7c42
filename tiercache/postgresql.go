package tiercache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultPGTableName = "httpengine_cache"
	defaultPGKeyPrefix = "cache:"
)

// PostgresConfig configures the postgresql-backed Blobs tier, grounded on
// the teacher's postgresql.Config.
type PostgresConfig struct {
	TableName string
	KeyPrefix string
	Timeout   time.Duration
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	if c.TableName == "" {
		c.TableName = defaultPGTableName
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultPGKeyPrefix
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	return c
}

type postgresBlobs struct {
	pool      *pgxpool.Pool
	tableName string
	keyPrefix string
	timeout   time.Duration
	ownsPool  bool
}

func (c *postgresBlobs) pgKey(key string) string {
	return c.keyPrefix + key
}

// NewPostgres opens a connection pool to connString, ensures the cache
// table exists, and returns a Blobs tier backed by it.
func NewPostgres(ctx context.Context, connString string, config PostgresConfig) (Blobs, error) {
	config = config.withDefaults()
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("tiercache: failed to open postgres pool: %w", err)
	}
	c := &postgresBlobs{pool: pool, tableName: config.TableName, keyPrefix: config.KeyPrefix, timeout: config.Timeout, ownsPool: true}
	if err := c.createTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

// NewPostgresWithPool wraps an already-open pool. The caller remains
// responsible for closing it; Close is a no-op.
func NewPostgresWithPool(ctx context.Context, pool *pgxpool.Pool, config PostgresConfig) (Blobs, error) {
	config = config.withDefaults()
	c := &postgresBlobs{pool: pool, tableName: config.TableName, keyPrefix: config.KeyPrefix, timeout: config.Timeout}
	if err := c.createTable(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *postgresBlobs) createTable(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + c.tableName + ` (
		key TEXT PRIMARY KEY,
		data BYTEA NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`
	_, err := c.pool.Exec(ctx, query)
	return err
}

func (c *postgresBlobs) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *postgresBlobs) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var data []byte
	query := `SELECT data FROM ` + c.tableName + ` WHERE key = $1`
	err := c.pool.QueryRow(ctx, query, c.pgKey(key)).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("tiercache: postgres get failed for key %q: %w", key, err)
	}
	return data, true, nil
}

func (c *postgresBlobs) Set(ctx context.Context, key string, data []byte) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO ` + c.tableName + ` (key, data, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET data = $2, created_at = $3`
	if _, err := c.pool.Exec(ctx, query, c.pgKey(key), data, time.Now()); err != nil {
		return fmt.Errorf("tiercache: postgres set failed for key %q: %w", key, err)
	}
	return nil
}

func (c *postgresBlobs) Delete(ctx context.Context, key string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	query := `DELETE FROM ` + c.tableName + ` WHERE key = $1`
	if _, err := c.pool.Exec(ctx, query, c.pgKey(key)); err != nil {
		return fmt.Errorf("tiercache: postgres delete failed for key %q: %w", key, err)
	}
	return nil
}

func (c *postgresBlobs) Close() error {
	if c.ownsPool {
		c.pool.Close()
	}
	return nil
}
