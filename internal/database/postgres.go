package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/tra-portal/tra-portal/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Connect opens a connection pool using the DB settings in cfg and checks
// the database is reachable.
func Connect(ctx context.Context, cfg *config.ServerEnvironment) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.DBMaxConnections
	poolConfig.MinConns = cfg.DBMinConnections
	poolConfig.MaxConnLifetime = cfg.DBMaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.DBMaxConnIdleTime
	poolConfig.ConnConfig.ConnectTimeout = cfg.DBConnectTimeout

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DatabasePingTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	// goose works on database/sql
	var db *sql.DB = stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	v, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	logger.Info("database migrations applied", slog.Int64("version", v))
	return nil
}

// Postgres is a Repository backed by the documents table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const documentColumns = `kind, id, parent_id, data, created_at, updated_at`

func (p *Postgres) Put(ctx context.Context, doc Document) error {
	createdAt := any(nil)
	if !doc.CreatedAt.IsZero() {
		createdAt = doc.CreatedAt
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO documents (kind, id, parent_id, data, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		ON CONFLICT (kind, id) DO UPDATE
		SET parent_id = EXCLUDED.parent_id,
		    data = EXCLUDED.data,
		    updated_at = now()`,
		string(doc.Kind), doc.ID, doc.ParentID, []byte(doc.Data), createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store %s %s: %w", doc.Kind, doc.ID, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, kind Kind, id string) (Document, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE kind = $1 AND id = $2`,
		string(kind), id,
	)
	if err != nil {
		return Document{}, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
	doc, err := pgx.CollectExactlyOneRow(rows, scanDocument)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}
	return doc, nil
}

func (p *Postgres) List(ctx context.Context, kind Kind) ([]Document, error) {
	return p.query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE kind = $1 ORDER BY created_at DESC, seq DESC`,
		string(kind),
	)
}

func (p *Postgres) ListByParent(ctx context.Context, kind Kind, parentID string) ([]Document, error) {
	return p.query(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE kind = $1 AND parent_id = $2 ORDER BY created_at DESC, seq DESC`,
		string(kind), parentID,
	)
}

func (p *Postgres) query(ctx context.Context, q string, args ...any) ([]Document, error) {
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	docs, err := pgx.CollectRows(rows, scanDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

func (p *Postgres) Delete(ctx context.Context, kind Kind, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM documents WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Count(ctx context.Context, kind Kind) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE kind = $1`, string(kind)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", kind, err)
	}
	return n, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func scanDocument(row pgx.CollectableRow) (Document, error) {
	var (
		doc  Document
		kind string
		data []byte
	)
	if err := row.Scan(&kind, &doc.ID, &doc.ParentID, &data, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, err
	}
	doc.Kind = Kind(kind)
	doc.Data = data
	return doc, nil
}
