package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/miradorstack/feedback-lab/internal/models"
	"github.com/miradorstack/feedback-lab/internal/utils"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS responses (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		response TEXT NOT NULL,
		quality_warnings TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS evaluations (
		id TEXT PRIMARY KEY,
		response_id TEXT NOT NULL,
		prompt TEXT NOT NULL,
		model_response TEXT NOT NULL,
		evaluator_id TEXT NOT NULL,
		helpfulness INTEGER NOT NULL,
		accuracy INTEGER NOT NULL,
		clarity INTEGER NOT NULL,
		has_hallucination BOOLEAN NOT NULL,
		has_unsafe_content BOOLEAN NOT NULL,
		improved_response TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS evaluations_created_at_idx ON evaluations (created_at)`,
}

// postgresSchema adds an insertion sequence; SQLite uses its implicit rowid.
var postgresSchema = []string{
	`ALTER TABLE evaluations ADD COLUMN IF NOT EXISTS seq BIGSERIAL`,
}

// SQLStore persists records through database/sql. PostgreSQL is reached via
// the pgx stdlib driver, SQLite via modernc.org/sqlite.
type SQLStore struct {
	db       *sql.DB
	postgres bool
}

// OpenSQLStore opens the database named by cfg, verifies connectivity and
// creates the schema when missing.
func OpenSQLStore(ctx context.Context, cfg StoreConfig) (*SQLStore, error) {
	driverName := ""
	switch cfg.Driver {
	case "postgres":
		driverName = "pgx"
	case "sqlite":
		driverName = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.Driver == "sqlite" {
		// A single connection keeps in-memory databases alive and serialises writers.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &SQLStore{db: db, postgres: cfg.Driver == "postgres"}
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := schema
	if s.postgres {
		stmts = append(append([]string{}, schema...), postgresSchema...)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) bind(query string) string {
	if !s.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) CreateResponse(ctx context.Context, resp models.GeneratedResponse) error {
	warnings := resp.QualityWarnings
	if warnings == nil {
		warnings = []models.QualityWarning{}
	}
	encoded, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal quality warnings: %w", err)
	}

	query := s.bind(`INSERT INTO responses (id, prompt, response, quality_warnings, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query, resp.ID, resp.Prompt, resp.Response, string(encoded), utils.FormatTimestamp(resp.Timestamp)); err != nil {
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *SQLStore) GetResponse(ctx context.Context, id string) (models.GeneratedResponse, error) {
	var (
		resp      models.GeneratedResponse
		warnings  string
		createdAt string
	)
	query := s.bind(`SELECT id, prompt, response, quality_warnings, created_at FROM responses WHERE id = ?`)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&resp.ID, &resp.Prompt, &resp.Response, &warnings, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GeneratedResponse{}, ErrNotFound
	}
	if err != nil {
		return models.GeneratedResponse{}, fmt.Errorf("select response: %w", err)
	}
	if err := json.Unmarshal([]byte(warnings), &resp.QualityWarnings); err != nil {
		return models.GeneratedResponse{}, fmt.Errorf("decode quality warnings: %w", err)
	}
	if resp.QualityWarnings == nil {
		resp.QualityWarnings = []models.QualityWarning{}
	}
	if resp.Timestamp, err = utils.ParseTimestamp(createdAt); err != nil {
		return models.GeneratedResponse{}, err
	}
	return resp, nil
}

func (s *SQLStore) CreateEvaluation(ctx context.Context, e models.Evaluation) error {
	query := s.bind(`INSERT INTO evaluations (
		id, response_id, prompt, model_response, evaluator_id,
		helpfulness, accuracy, clarity, has_hallucination, has_unsafe_content,
		improved_response, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.ResponseID, e.Prompt, e.ModelResponse, e.EvaluatorID,
		e.Helpfulness, e.Accuracy, e.Clarity, e.HasHallucination, e.HasUnsafeContent,
		e.ImprovedResponse, utils.FormatTimestamp(e.Timestamp))
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (s *SQLStore) ListEvaluations(ctx context.Context, limit int) ([]models.Evaluation, error) {
	query := `SELECT id, response_id, prompt, model_response, evaluator_id,
		helpfulness, accuracy, clarity, has_hallucination, has_unsafe_content,
		improved_response, created_at
		FROM evaluations ORDER BY created_at DESC, ` + s.sequenceColumn() + ` DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select evaluations: %w", err)
	}
	defer rows.Close()

	out := make([]models.Evaluation, 0)
	for rows.Next() {
		var (
			e         models.Evaluation
			createdAt string
		)
		if err := rows.Scan(
			&e.ID, &e.ResponseID, &e.Prompt, &e.ModelResponse, &e.EvaluatorID,
			&e.Helpfulness, &e.Accuracy, &e.Clarity, &e.HasHallucination, &e.HasUnsafeContent,
			&e.ImprovedResponse, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		if e.Timestamp, err = utils.ParseTimestamp(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}

// sequenceColumn orders rows sharing a timestamp by insertion.
func (s *SQLStore) sequenceColumn() string {
	if s.postgres {
		return "seq"
	}
	return "rowid"
}

// Ping verifies the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
