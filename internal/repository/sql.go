// Package repository provides relational persistence for dashboard tasks.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/nadmax/radar/internal/repository/models"
	"github.com/nadmax/radar/internal/task"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	// DialectSQLite keeps the table in a local file, no server required.
	DialectSQLite Dialect = "sqlite"
)

func ParseDialect(driver string) (Dialect, error) {
	switch Dialect(driver) {
	case DialectPostgres, DialectMySQL, DialectSQLite:
		return Dialect(driver), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

var schema = map[Dialect]string{
	DialectPostgres: `
		CREATE TABLE IF NOT EXISTS tasks (
			id         BIGSERIAL PRIMARY KEY,
			name       VARCHAR(255) NOT NULL,
			status     VARCHAR(20) NOT NULL DEFAULT 'Pending',
			accuracy   DOUBLE PRECISION NOT NULL DEFAULT 0
			           CHECK (accuracy >= 0 AND accuracy <= 100),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`,
	DialectMySQL: `
		CREATE TABLE IF NOT EXISTS tasks (
			id         BIGINT PRIMARY KEY AUTO_INCREMENT,
			name       VARCHAR(255) NOT NULL,
			status     VARCHAR(20) NOT NULL DEFAULT 'Pending',
			accuracy   DOUBLE NOT NULL DEFAULT 0
			           CHECK (accuracy >= 0 AND accuracy <= 100),
			created_at DATETIME(6) NOT NULL,
			updated_at DATETIME(6) NOT NULL
		)
	`,
	DialectSQLite: `
		CREATE TABLE IF NOT EXISTS tasks (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL CHECK (length(name) <= 255),
			status     TEXT NOT NULL DEFAULT 'Pending',
			accuracy   REAL NOT NULL DEFAULT 0
			           CHECK (accuracy >= 0 AND accuracy <= 100),
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)
	`,
}

type SQLTaskRepository struct {
	db      *sqlx.DB
	dialect Dialect
}

func NewSQLTaskRepository(driver, dsn string) (*SQLTaskRepository, error) {
	dialect, err := ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	if dialect == DialectMySQL {
		dsn, err = mysqlDSN(dsn)
		if err != nil {
			return nil, err
		}
	}

	db, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", dialect, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// One writer at a time; an in-memory database lives only as long as
		// its single connection.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return &SQLTaskRepository{db: db, dialect: dialect}, nil
}

// NewSQLTaskRepositoryFromDB wraps an already opened handle.
func NewSQLTaskRepositoryFromDB(db *sql.DB, dialect Dialect) *SQLTaskRepository {
	return &SQLTaskRepository{
		db:      sqlx.NewDb(db, string(dialect)),
		dialect: dialect,
	}
}

// mysqlDSN forces parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}

	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (r *SQLTaskRepository) Dialect() Dialect {
	return r.dialect
}

func (r *SQLTaskRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema[r.dialect]); err != nil {
		return fmt.Errorf("failed to create tasks table: %w", err)
	}

	return nil
}

func (r *SQLTaskRepository) ListTasks(ctx context.Context) ([]task.Task, error) {
	query := `
		SELECT id, name, status, accuracy, created_at, updated_at
		FROM tasks
		ORDER BY id ASC
	`

	tasks := []task.Task{}
	if err := r.db.SelectContext(ctx, &tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, nil
}

func (r *SQLTaskRepository) GetTask(ctx context.Context, id int64) (*task.Task, error) {
	query := r.db.Rebind(`
		SELECT id, name, status, accuracy, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`)

	var t task.Task
	if err := r.db.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %d: %w", id, task.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}

	return &t, nil
}

func (r *SQLTaskRepository) CreateTask(ctx context.Context, t *task.Task) (int64, error) {
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	query := `
		INSERT INTO tasks (name, status, accuracy, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`
	args := []any{t.Name, string(t.Status), t.Accuracy, t.CreatedAt, t.UpdatedAt}

	var id int64
	switch r.dialect {
	case DialectPostgres:
		row := r.db.QueryRowxContext(ctx, r.db.Rebind(query+" RETURNING id"), args...)
		if err := row.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert task: %w", err)
		}
	default:
		res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert task: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read inserted task id: %w", err)
		}
	}

	t.ID = id
	return id, nil
}

func (r *SQLTaskRepository) UpdateTask(ctx context.Context, t *task.Task) error {
	t.UpdatedAt = time.Now().UTC()

	query := r.db.Rebind(`
		UPDATE tasks
		SET name = ?, status = ?, accuracy = ?, updated_at = ?
		WHERE id = ?
	`)

	res, err := r.db.ExecContext(ctx, query, t.Name, string(t.Status), t.Accuracy, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", t.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// MySQL reports zero affected rows when the values did not change.
	exists, err := r.exists(ctx, t.ID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("task %d: %w", t.ID, task.ErrNotFound)
	}

	return nil
}

func (r *SQLTaskRepository) DeleteTask(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM tasks WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}

	return affected > 0, nil
}

func (r *SQLTaskRepository) GetTaskStats(ctx context.Context) ([]models.StatusStats, error) {
	query := `
		SELECT
			status,
			COUNT(*) AS count,
			COALESCE(AVG(accuracy), 0) AS average_accuracy
		FROM tasks
		GROUP BY status
		ORDER BY status
	`

	stats := []models.StatusStats{}
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get task stats: %w", err)
	}

	return stats, nil
}

func (r *SQLTaskRepository) exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one, r.db.Rebind(`SELECT 1 FROM tasks WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up task %d: %w", id, err)
	}

	return true, nil
}

func (r *SQLTaskRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLTaskRepository) DB() *sql.DB {
	return r.db.DB
}

func (r *SQLTaskRepository) Close() error {
	return r.db.Close()
}
