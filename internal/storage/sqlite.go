// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/openprocure/procflow/internal/models"
	"github.com/shopspring/decimal"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// Immediate transactions take the write lock at BEGIN, so concurrent
	// approval transitions on the same request serialize instead of failing
	// at commit.
	db, err := sql.Open("sqlite3", dbPath+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL DEFAULT '',
		full_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS purchase_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'approved', 'rejected')),
		created_by INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,

		proforma_path TEXT NOT NULL DEFAULT '',
		proforma_data TEXT,
		purchase_order_data TEXT,
		receipt_path TEXT NOT NULL DEFAULT '',
		receipt_validation TEXT,

		level_1_approved INTEGER NOT NULL DEFAULT 0,
		level_1_approver_id INTEGER,
		level_1_approver_name TEXT NOT NULL DEFAULT '',
		level_1_approved_at TIMESTAMP,

		level_2_approved INTEGER NOT NULL DEFAULT 0,
		level_2_approver_id INTEGER,
		level_2_approver_name TEXT NOT NULL DEFAULT '',
		level_2_approved_at TIMESTAMP,

		rejected_by_id INTEGER,
		rejected_by_name TEXT NOT NULL DEFAULT '',
		rejected_at TIMESTAMP,
		rejection_reason TEXT NOT NULL DEFAULT '',

		FOREIGN KEY (created_by) REFERENCES users(id)
	);

	CREATE INDEX IF NOT EXISTS idx_requests_status ON purchase_requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_created_by ON purchase_requests(created_by);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateUser inserts a user and fills in its assigned ID.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *models.User) error {
	user.CreatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, full_name, role, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.Username, user.Email, user.FullName, user.Role, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		return err
	}
	user.ID, err = res.LastInsertId()
	return err
}

// GetUser returns a user by ID.
func (s *SQLiteStorage) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, full_name, role, password_hash, created_at
		 FROM users WHERE id = ?`, id))
}

// GetUserByUsername returns a user by username.
func (s *SQLiteStorage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, email, full_name, role, password_hash, created_at
		 FROM users WHERE username = ?`, username))
}

func (s *SQLiteStorage) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.Role, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const requestColumns = `id, title, description, amount, status, created_by, created_at, updated_at,
	proforma_path, proforma_data, purchase_order_data, receipt_path, receipt_validation,
	level_1_approved, level_1_approver_id, level_1_approver_name, level_1_approved_at,
	level_2_approved, level_2_approver_id, level_2_approver_name, level_2_approved_at,
	rejected_by_id, rejected_by_name, rejected_at, rejection_reason`

// CreateRequest inserts a purchase request and fills in its assigned ID.
func (s *SQLiteStorage) CreateRequest(ctx context.Context, req *models.PurchaseRequest) error {
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	proformaJSON, err := marshalNullable(req.ProformaData)
	if err != nil {
		return fmt.Errorf("marshal proforma data: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO purchase_requests
		 (title, description, amount, status, created_by, created_at, updated_at, proforma_path, proforma_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.Title, req.Description, req.Amount.String(), req.Status, req.CreatedBy,
		req.CreatedAt, req.UpdatedAt, req.ProformaPath, proformaJSON,
	)
	if err != nil {
		return err
	}
	req.ID, err = res.LastInsertId()
	return err
}

// GetRequest returns a purchase request by ID.
func (s *SQLiteStorage) GetRequest(ctx context.Context, id int64) (*models.PurchaseRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM purchase_requests WHERE id = ?`, id)
	return scanRequest(row)
}

// UpdateRequest persists all mutable fields of a purchase request.
func (s *SQLiteStorage) UpdateRequest(ctx context.Context, req *models.PurchaseRequest) error {
	return updateRequest(ctx, s.db, req)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateRequest(ctx context.Context, db execer, req *models.PurchaseRequest) error {
	req.UpdatedAt = time.Now()
	proformaJSON, err := marshalNullable(req.ProformaData)
	if err != nil {
		return fmt.Errorf("marshal proforma data: %w", err)
	}
	poJSON, err := marshalNullable(req.PurchaseOrderData)
	if err != nil {
		return fmt.Errorf("marshal purchase order: %w", err)
	}
	validationJSON, err := marshalNullable(req.ReceiptValidation)
	if err != nil {
		return fmt.Errorf("marshal receipt validation: %w", err)
	}
	res, err := db.ExecContext(ctx,
		`UPDATE purchase_requests SET
		 title = ?, description = ?, amount = ?, status = ?, updated_at = ?,
		 proforma_path = ?, proforma_data = ?, purchase_order_data = ?,
		 receipt_path = ?, receipt_validation = ?,
		 level_1_approved = ?, level_1_approver_id = ?, level_1_approver_name = ?, level_1_approved_at = ?,
		 level_2_approved = ?, level_2_approver_id = ?, level_2_approver_name = ?, level_2_approved_at = ?,
		 rejected_by_id = ?, rejected_by_name = ?, rejected_at = ?, rejection_reason = ?
		 WHERE id = ?`,
		req.Title, req.Description, req.Amount.String(), req.Status, req.UpdatedAt,
		req.ProformaPath, proformaJSON, poJSON,
		req.ReceiptPath, validationJSON,
		req.Level1.Approved, nullableID(req.Level1.ApproverID), req.Level1.ApproverName, req.Level1.ApprovedAt,
		req.Level2.Approved, nullableID(req.Level2.ApproverID), req.Level2.ApproverName, req.Level2.ApprovedAt,
		nullableID(req.Reject.RejectedByID), req.Reject.RejectedByName, req.Reject.RejectedAt, req.Reject.Reason,
		req.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRequests returns requests matching the filter, newest first.
func (s *SQLiteStorage) ListRequests(ctx context.Context, filter RequestFilter) ([]*models.PurchaseRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM purchase_requests WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.CreatedBy != 0 {
		query += " AND created_by = ?"
		args = append(args, filter.CreatedBy)
	}
	if filter.Level1Approved != nil {
		query += " AND level_1_approved = ?"
		args = append(args, *filter.Level1Approved)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.PurchaseRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// MutateRequest applies fn to the request row inside an immediate write
// transaction, serializing concurrent transitions on the same request.
func (s *SQLiteStorage) MutateRequest(ctx context.Context, id int64, fn func(*models.PurchaseRequest) error) (*models.PurchaseRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM purchase_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if err != nil {
		return nil, err
	}
	if err := fn(req); err != nil {
		return nil, err
	}
	if err := updateRequest(ctx, tx, req); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return req, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.PurchaseRequest, error) {
	var (
		req            models.PurchaseRequest
		amount         string
		proformaJSON   sql.NullString
		poJSON         sql.NullString
		validationJSON sql.NullString
		l1ID, l2ID     sql.NullInt64
		rejID          sql.NullInt64
		l1At, l2At     sql.NullTime
		rejAt          sql.NullTime
	)
	err := row.Scan(
		&req.ID, &req.Title, &req.Description, &amount, &req.Status, &req.CreatedBy,
		&req.CreatedAt, &req.UpdatedAt,
		&req.ProformaPath, &proformaJSON, &poJSON, &req.ReceiptPath, &validationJSON,
		&req.Level1.Approved, &l1ID, &req.Level1.ApproverName, &l1At,
		&req.Level2.Approved, &l2ID, &req.Level2.ApproverName, &l2At,
		&rejID, &req.Reject.RejectedByName, &rejAt, &req.Reject.Reason,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	req.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if err := unmarshalNullable(proformaJSON, &req.ProformaData); err != nil {
		return nil, fmt.Errorf("unmarshal proforma data: %w", err)
	}
	if err := unmarshalNullable(poJSON, &req.PurchaseOrderData); err != nil {
		return nil, fmt.Errorf("unmarshal purchase order: %w", err)
	}
	if err := unmarshalNullable(validationJSON, &req.ReceiptValidation); err != nil {
		return nil, fmt.Errorf("unmarshal receipt validation: %w", err)
	}
	req.Level1.ApproverID = l1ID.Int64
	req.Level2.ApproverID = l2ID.Int64
	req.Reject.RejectedByID = rejID.Int64
	if l1At.Valid {
		req.Level1.ApprovedAt = &l1At.Time
	}
	if l2At.Valid {
		req.Level2.ApprovedAt = &l2At.Time
	}
	if rejAt.Valid {
		req.Reject.RejectedAt = &rejAt.Time
	}
	return &req, nil
}

// marshalNullable converts a possibly-nil pointer to a JSON string or SQL NULL.
func marshalNullable[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalNullable fills dest (a pointer to a pointer) from a JSON column.
func unmarshalNullable[T any](col sql.NullString, dest **T) error {
	if !col.Valid || col.String == "" {
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(col.String), &v); err != nil {
		return err
	}
	*dest = &v
	return nil
}

func nullableID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}
