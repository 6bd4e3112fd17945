package files

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// PostgresRepository implements file storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const fileColumns = `id, owner_id, name, folder_id, storage_key, mime_type, size_bytes, created_at, updated_at, deleted_at`

func scanFile(row interface{ Scan(...any) error }) (*models.File, error) {
	var (
		f         models.File
		folderID  sql.NullString
		deletedAt sql.NullTime
	)
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &folderID, &f.StorageKey, &f.MimeType, &f.SizeBytes,
		&f.CreatedAt, &f.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	f.FolderID = dbx.StringPtr(folderID)
	f.DeletedAt = dbx.TimePtr(deletedAt)
	return &f, nil
}

func (r *PostgresRepository) selectMany(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, dbx.MapError(err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, f *models.File) (*models.File, error) {
	query := `
		INSERT INTO files (owner_id, name, folder_id, storage_key, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		f.OwnerID, f.Name, dbx.NullString(f.FolderID), f.StorageKey, f.MimeType, f.SizeBytes).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return f, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string, scope models.Scope) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE id = $1 AND owner_id = $2 AND ($3 OR deleted_at IS NULL)
		FOR UPDATE`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, id, ownerID, scope == models.IncludeDeleted))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return f, nil
}

func (r *PostgresRepository) FindByName(ctx context.Context, ownerID string, folderID *string, name string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1 AND folder_id IS NOT DISTINCT FROM $2 AND name = $3 AND deleted_at IS NULL`

	f, err := scanFile(r.db.QueryRowContext(ctx, query, ownerID, dbx.NullString(folderID), name))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return f, nil
}

func (r *PostgresRepository) ListChildren(ctx context.Context, ownerID string, folderID *string, scope models.Scope) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1 AND folder_id IS NOT DISTINCT FROM $2 AND ($3 OR deleted_at IS NULL)
		ORDER BY name`

	return r.selectMany(ctx, query, ownerID, dbx.NullString(folderID), scope == models.IncludeDeleted)
}

func (r *PostgresRepository) UpdateName(ctx context.Context, ownerID, id, name string) error {
	query := `UPDATE files SET name = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, ownerID, name)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) UpdateFolder(ctx context.Context, ownerID, id string, folderID *string) error {
	query := `UPDATE files SET folder_id = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, ownerID, dbx.NullString(folderID))
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, ownerID, id string, at time.Time) error {
	query := `UPDATE files SET deleted_at = $3
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, ownerID, at)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) Restore(ctx context.Context, ownerID, id string) error {
	query := `UPDATE files SET deleted_at = NULL, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NOT NULL`

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) HardDelete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) ListTrashed(ctx context.Context, ownerID string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1 AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC`

	return r.selectMany(ctx, query, ownerID)
}

func (r *PostgresRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
		ORDER BY deleted_at
		LIMIT $2`

	return r.selectMany(ctx, query, cutoff, limit)
}

func (r *PostgresRepository) Search(ctx context.Context, ownerID, query string, limit int) ([]*models.File, error) {
	q := `SELECT ` + fileColumns + ` FROM files
		WHERE owner_id = $1 AND deleted_at IS NULL AND name ILIKE $2
		ORDER BY name
		LIMIT $3`

	return r.selectMany(ctx, q, ownerID, dbx.ContainsPattern(query), limit)
}
