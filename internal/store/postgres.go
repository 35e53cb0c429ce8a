package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/ravi-parthasarathy/pipegen/pkg/catalog"
	"github.com/ravi-parthasarathy/pipegen/pkg/compose"
)

// DBPool abstracts pgxpool.Pool so the store can be tested with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const (
	sqlListTools = `
        SELECT id, name, version, image_path, stage, target, analytics
        FROM tools
        ORDER BY name;
    `
	sqlInsertTool = `
        INSERT INTO tools (id, name, version, image_path, stage, target, analytics)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	sqlListPlatforms = `
        SELECT id, name
        FROM platforms
        ORDER BY name;
    `
	sqlInsertPlatform = `
        INSERT INTO platforms (id, name)
        VALUES ($1, $2)
        ON CONFLICT (name) DO NOTHING;
    `
	sqlSearchPipelines = `
        SELECT id, tool, platform, stage, language, yaml_content, updated_at
        FROM pipelines
        WHERE ($1 = '' OR lower(tool) = lower($1))
          AND ($2 = '' OR lower(platform) = lower($2))
          AND ($3 = '' OR lower(stage) = lower($3))
          AND ($4 = '' OR lower(language) = lower($4))
        ORDER BY updated_at DESC, id;
    `
	sqlInsertPipeline = `
        INSERT INTO pipelines (id, tool, platform, stage, language, yaml_content, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Postgres is a Repository on PostgreSQL.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
	now  func() time.Time
}

// Open connects a pgx pool to url and wraps it in a Postgres store.
func Open(ctx context.Context, url string, maxConns int32, logger *zap.Logger) (*Postgres, func(), error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pool: %w", err)
	}
	s, err := NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return s, pool.Close, nil
}

// NewPostgres verifies the connection and returns the store.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{
		pool: pool,
		log:  logger.Named("store"),
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Postgres) ListTools(ctx context.Context) ([]catalog.Tool, error) {
	rows, err := s.pool.Query(ctx, sqlListTools)
	if err != nil {
		return nil, fmt.Errorf("failed to query tools: %w", err)
	}
	defer rows.Close()

	var tools []catalog.Tool
	for rows.Next() {
		var t catalog.Tool
		if err := rows.Scan(&t.ID, &t.Name, &t.Version, &t.ImagePath, &t.Config.Type, &t.Config.Target, &t.Config.Analytics); err != nil {
			return nil, fmt.Errorf("failed to scan tool row: %w", err)
		}
		tools = append(tools, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return tools, nil
}

func (s *Postgres) CreateTool(ctx context.Context, t catalog.Tool) (catalog.Tool, error) {
	t, err := validateTool(t)
	if err != nil {
		return t, err
	}
	t.ID = uuid.NewString()
	_, err = s.pool.Exec(ctx, sqlInsertTool,
		t.ID, t.Name, t.Version, t.ImagePath, t.Config.Type, t.Config.Target, t.Config.Analytics)
	if err != nil {
		return t, s.insertErr("tool", t.Name, err)
	}
	return t, nil
}

func (s *Postgres) ListPlatforms(ctx context.Context) ([]Platform, error) {
	rows, err := s.pool.Query(ctx, sqlListPlatforms)
	if err != nil {
		return nil, fmt.Errorf("failed to query platforms: %w", err)
	}
	defer rows.Close()

	var out []Platform
	for rows.Next() {
		var p Platform
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("failed to scan platform row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}

func (s *Postgres) CreatePlatform(ctx context.Context, p Platform) (Platform, error) {
	p, err := validatePlatform(p)
	if err != nil {
		return p, err
	}
	p.ID = uuid.NewString()
	tag, err := s.pool.Exec(ctx, sqlInsertPlatform, p.ID, p.Name)
	if err != nil {
		return p, s.insertErr("platform", p.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return p, fmt.Errorf("%w: platform %q", ErrConflict, p.Name)
	}
	return p, nil
}

func (s *Postgres) SearchPipelines(ctx context.Context, q compose.Query) ([]compose.Record, error) {
	rows, err := s.pool.Query(ctx, sqlSearchPipelines, q.Tool, q.Platform, string(q.Stage), q.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipelines: %w", err)
	}
	defer rows.Close()

	var out []compose.Record
	for rows.Next() {
		var r compose.Record
		var content pgtype.Text
		if err := rows.Scan(&r.ID, &r.Tool, &r.Platform, &r.Stage, &r.Language, &content, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pipeline row: %w", err)
		}
		if content.Valid {
			y := content.String
			r.YAMLContent = &y
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	s.log.Debug("pipeline search",
		zap.String("tool", q.Tool), zap.String("platform", q.Platform), zap.Int("matches", len(out)))
	return out, nil
}

func (s *Postgres) CreatePipeline(ctx context.Context, r compose.Record) (compose.Record, error) {
	r, err := validatePipeline(r)
	if err != nil {
		return r, err
	}
	r.ID = uuid.NewString()
	r.UpdatedAt = s.now()
	_, err = s.pool.Exec(ctx, sqlInsertPipeline,
		r.ID, r.Tool, r.Platform, r.Stage, r.Language, *r.YAMLContent, r.UpdatedAt)
	if err != nil {
		return r, s.insertErr("pipeline", r.Tool, err)
	}
	return r, nil
}

func (s *Postgres) insertErr(kind, name string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s %q", ErrConflict, kind, name)
	}
	s.log.Error("insert failed", zap.String("kind", kind), zap.String("name", name), zap.Error(err))
	return fmt.Errorf("failed to insert %s: %w", kind, err)
}
