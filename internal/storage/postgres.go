package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/xaenox/expense-bot/internal/models"
	"go.uber.org/zap"
)

const foreignKeyViolation = pq.ErrorCode("23503")

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(ctx context.Context, config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("dbname", config.DBName))

	return NewPostgresStorageWithDB(db, logger), nil
}

// NewPostgresStorageWithDB wraps an already opened and migrated connection pool.
func NewPostgresStorageWithDB(db *sql.DB, logger *zap.Logger) *PostgresStorage {
	return &PostgresStorage{db: db, logger: logger}
}

func (s *PostgresStorage) EnsureUser(ctx context.Context, externalID int64, displayName string) (int64, error) {
	query := `
		INSERT INTO users (external_id, display_name)
		VALUES ($1, $2)
		ON CONFLICT (external_id) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id`

	var id int64
	if err := s.db.QueryRowContext(ctx, query, externalID, displayName).Scan(&id); err != nil {
		return 0, wrap("ensure user", err)
	}
	return id, nil
}

func (s *PostgresStorage) FindUser(ctx context.Context, externalID int64) (int64, error) {
	query := `SELECT id FROM users WHERE external_id = $1`

	var id int64
	err := s.db.QueryRowContext(ctx, query, externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, wrap("find user", err)
	}
	return id, nil
}

func (s *PostgresStorage) RecordExpense(ctx context.Context, expense *models.Expense) error {
	if expense.Date.IsZero() {
		expense.Date = models.Day(time.Now())
	}

	query := `
		INSERT INTO expenses (user_id, amount, category, description, date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		expense.UserID,
		expense.Amount,
		expense.Category,
		expense.Description,
		expense.Date.Format(models.DateLayout),
	).Scan(&expense.ID)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		s.logger.Error("Expense references unknown user",
			zap.Int64("user_id", expense.UserID),
			zap.String("constraint", pqErr.Constraint))
		return wrap("record expense", ErrUserNotFound)
	}
	if err != nil {
		return wrap("record expense", err)
	}
	return nil
}

func (s *PostgresStorage) SumByCategory(ctx context.Context, userID int64, dates *models.DateRange) ([]models.CategoryTotal, error) {
	where, args := rangeFilter(userID, dates)
	query := `
		SELECT category, SUM(amount)
		FROM expenses
		WHERE ` + where + `
		GROUP BY category
		ORDER BY SUM(amount) DESC, category ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("sum by category", err)
	}
	defer rows.Close()

	var totals []models.CategoryTotal
	for rows.Next() {
		var ct models.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.Total); err != nil {
			return nil, wrap("sum by category", err)
		}
		totals = append(totals, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("sum by category", err)
	}

	return totals, nil
}

func (s *PostgresStorage) SumTotal(ctx context.Context, userID int64, dates *models.DateRange) (decimal.NullDecimal, error) {
	where, args := rangeFilter(userID, dates)
	query := `SELECT SUM(amount) FROM expenses WHERE ` + where

	var total decimal.NullDecimal
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return decimal.NullDecimal{}, wrap("sum total", err)
	}
	return total, nil
}

func (s *PostgresStorage) ListExpenses(ctx context.Context, userID int64) ([]models.Expense, error) {
	query := `
		SELECT id, user_id, amount, category, description, date
		FROM expenses
		WHERE user_id = $1
		ORDER BY date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, wrap("list expenses", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Category, &e.Description, &e.Date); err != nil {
			return nil, wrap("list expenses", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list expenses", err)
	}

	return expenses, nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return wrap("ping", s.db.PingContext(ctx))
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// rangeFilter only ever emits fixed SQL; the bounds travel as parameters.
func rangeFilter(userID int64, dates *models.DateRange) (string, []any) {
	if dates == nil {
		return "user_id = $1", []any{userID}
	}
	return "user_id = $1 AND date BETWEEN $2 AND $3", []any{
		userID,
		dates.From.Format(models.DateLayout),
		dates.To.Format(models.DateLayout),
	}
}
