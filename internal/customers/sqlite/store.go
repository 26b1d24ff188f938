// Package sqlite provides an SQLite-backed customers.Repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kylevidrine/portal/internal/customers"
	"github.com/kylevidrine/portal/internal/customers/sqlite/migrations"
	"github.com/kylevidrine/portal/internal/database"
	"github.com/kylevidrine/portal/internal/models"
)

const customerColumns = `id, email, name, picture,
	google_access_token, google_refresh_token, google_scopes, google_token_expiry,
	qb_access_token, qb_refresh_token, qb_company_id, qb_token_expiry, qb_base_url,
	created_at, updated_at`

// Store keeps customers in a single table. Every write is one statement.
type Store struct {
	db *sql.DB
}

// Open opens and migrates the store at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := database.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	if err := database.ApplyMigrations(ctx, db, migrations.FS, "."); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Upsert(ctx context.Context, c *models.Customer) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	ws := workspaceColumns(c.Workspace)
	acc := accountingColumns(c.Accounting)
	args := []interface{}{c.ID, c.Email, c.Name, c.Picture}
	args = append(args, ws...)
	args = append(args, acc...)
	args = append(args, c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli())

	_, err := s.db.ExecContext(ctx, `INSERT INTO customers (`+customerColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	email = excluded.email,
	name = excluded.name,
	picture = excluded.picture,
	google_access_token = excluded.google_access_token,
	google_refresh_token = excluded.google_refresh_token,
	google_scopes = excluded.google_scopes,
	google_token_expiry = excluded.google_token_expiry,
	qb_access_token = excluded.qb_access_token,
	qb_refresh_token = excluded.qb_refresh_token,
	qb_company_id = excluded.qb_company_id,
	qb_token_expiry = excluded.qb_token_expiry,
	qb_base_url = excluded.qb_base_url,
	created_at = excluded.created_at,
	updated_at = excluded.updated_at`, args...)
	return wrap("upsert", err)
}

func (s *Store) GetByID(ctx context.Context, id string) (*models.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
	return scanOne("get", row)
}

func (s *Store) List(ctx context.Context) ([]*models.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, wrap("list", err)
	}
	defer rows.Close()
	out := []*models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, wrap("list", err)
		}
		out = append(out, c)
	}
	return out, wrap("list", rows.Err())
}

func (s *Store) FindByCompanyID(ctx context.Context, companyID string) (*models.Customer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers
WHERE qb_company_id = ? AND qb_access_token IS NOT NULL
ORDER BY created_at DESC LIMIT 1`, companyID)
	return scanOne("find by company", row)
}

func (s *Store) UpdateAccounting(ctx context.Context, id string, creds *models.AccountingCredentials) error {
	args := append(accountingColumns(creds), time.Now().UTC().UnixMilli(), id)
	res, err := s.db.ExecContext(ctx, `UPDATE customers SET
	qb_access_token = ?, qb_refresh_token = ?, qb_company_id = ?, qb_token_expiry = ?, qb_base_url = ?,
	updated_at = ?
WHERE id = ?`, args...)
	return affected("update accounting", res, err)
}

func (s *Store) ClearWorkspace(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE customers SET
	google_access_token = NULL, google_refresh_token = NULL, google_scopes = NULL, google_token_expiry = NULL,
	updated_at = ?
WHERE id = ?`, time.Now().UTC().UnixMilli(), id)
	return affected("clear workspace", res, err)
}

func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return 0, wrap("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap("delete", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOne(op string, row scanner) (*models.Customer, error) {
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap(op, err)
	}
	return c, nil
}

func scanCustomer(row scanner) (*models.Customer, error) {
	var (
		c                           models.Customer
		gAccess, gRefresh, gScopes  sql.NullString
		gExpiry, qExpiry            sql.NullInt64
		qAccess, qRefresh, qCompany sql.NullString
		qBase                       sql.NullString
		createdAt, updatedAt        int64
	)
	if err := row.Scan(
		&c.ID, &c.Email, &c.Name, &c.Picture,
		&gAccess, &gRefresh, &gScopes, &gExpiry,
		&qAccess, &qRefresh, &qCompany, &qExpiry, &qBase,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	if gAccess.Valid && gAccess.String != "" {
		c.Workspace = &models.WorkspaceCredentials{
			AccessToken:  gAccess.String,
			RefreshToken: gRefresh.String,
			Scopes:       strings.Fields(gScopes.String),
			ExpiresAt:    millis(gExpiry),
		}
	}
	if qAccess.Valid && qAccess.String != "" {
		c.Accounting = &models.AccountingCredentials{
			AccessToken:  qAccess.String,
			RefreshToken: qRefresh.String,
			CompanyID:    qCompany.String,
			ExpiresAt:    millis(qExpiry),
			APIBaseURL:   qBase.String,
		}
	}
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	c.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &c, nil
}

// workspaceColumns returns the four workspace column values; all NULL for nil.
func workspaceColumns(ws *models.WorkspaceCredentials) []interface{} {
	if ws == nil {
		return []interface{}{nil, nil, nil, nil}
	}
	return []interface{}{ws.AccessToken, ws.RefreshToken, strings.Join(ws.Scopes, " "), ws.ExpiresAt.UnixMilli()}
}

// accountingColumns returns the five accounting column values; all NULL for nil.
func accountingColumns(acc *models.AccountingCredentials) []interface{} {
	if acc == nil {
		return []interface{}{nil, nil, nil, nil, nil}
	}
	return []interface{}{acc.AccessToken, acc.RefreshToken, acc.CompanyID, acc.ExpiresAt.UnixMilli(), acc.APIBaseURL}
}

func millis(v sql.NullInt64) time.Time {
	if !v.Valid || v.Int64 == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

func affected(op string, res sql.Result, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return customers.ErrNotFound
	}
	return nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &customers.StorageError{Op: op, Err: err}
}
