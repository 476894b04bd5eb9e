package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/cwlviz/pkg/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by DeleteGraph when the id is unknown.
var ErrNotFound = errors.New("not found")

// SQLiteStore implements GraphStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	if dbPath == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

const graphColumns = `id, name, cwl_version, class, content_hash, rankdir, file_nodes,
	node_count, arrow_count, step_order, warnings, dot, raw_cwl, created_at`

func (s *SQLiteStore) CreateGraph(ctx context.Context, g *model.Graph) error {
	s.logger.Debug("sql", "op", "insert", "table", "graphs", "id", g.ID)

	stepOrderJSON, err := json.Marshal(g.StepOrder)
	if err != nil {
		return fmt.Errorf("marshal step order: %w", err)
	}
	warningsJSON, err := json.Marshal(g.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	class := g.Class
	if class == "" {
		class = "Workflow"
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO graphs (`+graphColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, g.CWLVersion, class, g.ContentHash, g.RankDir, g.FileNodes,
		g.NodeCount, g.ArrowCount, string(stepOrderJSON), string(warningsJSON),
		g.DOT, g.RawCWL, g.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert graph %s: %w", g.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetGraph(ctx context.Context, id string) (*model.Graph, error) {
	s.logger.Debug("sql", "op", "select", "table", "graphs", "id", id)
	row := s.db.QueryRowContext(ctx, `SELECT `+graphColumns+` FROM graphs WHERE id = ?`, id)
	return scanGraph(row)
}

func (s *SQLiteStore) GetGraphByHash(ctx context.Context, hash string) (*model.Graph, error) {
	s.logger.Debug("sql", "op", "select_by_hash", "table", "graphs", "hash", hash)
	row := s.db.QueryRowContext(ctx, `SELECT `+graphColumns+` FROM graphs WHERE content_hash = ?`, hash)
	return scanGraph(row)
}

// ListGraphs returns one page of graphs, newest first, together with the
// total number of matching rows. The DOT body is left out.
func (s *SQLiteStore) ListGraphs(ctx context.Context, opts model.ListOptions) ([]*model.Graph, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "graphs", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	where := ""
	var args []any
	if opts.Name != "" {
		where = " WHERE name = ?"
		args = append(args, opts.Name)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM graphs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+graphColumns+` FROM graphs`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, opts.Limit, opts.Offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var graphs []*model.Graph
	for rows.Next() {
		g, err := scanGraph(rows)
		if err != nil {
			return nil, 0, err
		}
		graphs = append(graphs, g.Summary())
	}
	return graphs, total, rows.Err()
}

func (s *SQLiteStore) DeleteGraph(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "graphs", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM graphs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("graph %s: %w", id, ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGraph(row scanner) (*model.Graph, error) {
	var g model.Graph
	var stepOrderJSON, warningsJSON, createdAt string

	err := row.Scan(
		&g.ID, &g.Name, &g.CWLVersion, &g.Class, &g.ContentHash, &g.RankDir, &g.FileNodes,
		&g.NodeCount, &g.ArrowCount, &stepOrderJSON, &warningsJSON, &g.DOT, &g.RawCWL, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(stepOrderJSON), &g.StepOrder); err != nil {
		return nil, fmt.Errorf("unmarshal step order: %w", err)
	}
	if err := json.Unmarshal([]byte(warningsJSON), &g.Warnings); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}
	g.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &g, nil
}
