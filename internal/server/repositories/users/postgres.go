package users

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, email, password_hash, role, storage_quota_bytes, storage_used_bytes, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var (
		u     models.User
		role  string
		quota sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.PasswordHash, &role, &quota, &u.StorageUsedBytes, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	if quota.Valid {
		q := quota.Int64
		u.StorageQuotaBytes = &q
	}
	return &u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (username, email, password_hash, role, storage_quota_bytes)
         VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at
		 `

	var quota sql.NullInt64
	if user.StorageQuotaBytes != nil {
		quota = sql.NullInt64{Int64: *user.StorageQuotaBytes, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query,
		user.UserName, user.Email, user.PasswordHash, string(user.Role), quota).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		return nil, dbx.MapError(err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByUserName(ctx context.Context, userName string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, userName))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return user, nil
}

func (r *PostgresRepository) AdjustStorageUsed(ctx context.Context, id string, delta int64) error {
	query :=
		`UPDATE users SET storage_used_bytes = GREATEST(storage_used_bytes + $2, 0)
		 WHERE id = $1
		 `

	res, err := r.db.ExecContext(ctx, query, id, delta)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) LockOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))`, ownerID); err != nil {
		return dbx.MapError(err)
	}
	return nil
}
