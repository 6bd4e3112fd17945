package folders

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

// PostgresRepository implements folder storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const folderColumns = `id, owner_id, name, parent_folder_id, created_at, updated_at, deleted_at`

func scanFolder(row interface{ Scan(...any) error }) (*models.Folder, error) {
	var (
		f         models.Folder
		parentID  sql.NullString
		deletedAt sql.NullTime
	)
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &parentID, &f.CreatedAt, &f.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	f.ParentID = dbx.StringPtr(parentID)
	f.DeletedAt = dbx.TimePtr(deletedAt)
	return &f, nil
}

func (r *PostgresRepository) selectMany(ctx context.Context, query string, args ...any) ([]*models.Folder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	var result []*models.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
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

func (r *PostgresRepository) Create(ctx context.Context, f *models.Folder) (*models.Folder, error) {
	query := `
		INSERT INTO folders (owner_id, name, parent_folder_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, f.OwnerID, f.Name, dbx.NullString(f.ParentID)).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return f, nil
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, id string, scope models.Scope) (*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders
		WHERE id = $1 AND owner_id = $2 AND ($3 OR deleted_at IS NULL)
		FOR UPDATE`

	f, err := scanFolder(r.db.QueryRowContext(ctx, query, id, ownerID, scope == models.IncludeDeleted))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return f, nil
}

func (r *PostgresRepository) FindByName(ctx context.Context, ownerID string, parentID *string, name string) (*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders
		WHERE owner_id = $1 AND parent_folder_id IS NOT DISTINCT FROM $2 AND name = $3 AND deleted_at IS NULL`

	f, err := scanFolder(r.db.QueryRowContext(ctx, query, ownerID, dbx.NullString(parentID), name))
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return f, nil
}

func (r *PostgresRepository) ListChildren(ctx context.Context, ownerID string, parentID *string, scope models.Scope) ([]*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders
		WHERE owner_id = $1 AND parent_folder_id IS NOT DISTINCT FROM $2 AND ($3 OR deleted_at IS NULL)
		ORDER BY name`

	return r.selectMany(ctx, query, ownerID, dbx.NullString(parentID), scope == models.IncludeDeleted)
}

func (r *PostgresRepository) UpdateName(ctx context.Context, ownerID, id, name string) error {
	query := `UPDATE folders SET name = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, ownerID, name)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) UpdateParent(ctx context.Context, ownerID, id string, parentID *string) error {
	query := `UPDATE folders SET parent_folder_id = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, ownerID, dbx.NullString(parentID))
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) SoftDelete(ctx context.Context, ownerID, id string, at time.Time) error {
	query := `UPDATE folders SET deleted_at = $3
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, id, ownerID, at)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) Restore(ctx context.Context, ownerID, id string) error {
	query := `UPDATE folders SET deleted_at = NULL, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NOT NULL`

	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) HardDelete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) ListTrashed(ctx context.Context, ownerID string) ([]*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders
		WHERE owner_id = $1 AND deleted_at IS NOT NULL
		ORDER BY deleted_at DESC`

	return r.selectMany(ctx, query, ownerID)
}

func (r *PostgresRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]*models.Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders
		WHERE deleted_at IS NOT NULL AND deleted_at < $1
		ORDER BY deleted_at
		LIMIT $2`

	return r.selectMany(ctx, query, cutoff, limit)
}

func (r *PostgresRepository) Search(ctx context.Context, ownerID, query string, limit int) ([]*models.Folder, error) {
	q := `SELECT ` + folderColumns + ` FROM folders
		WHERE owner_id = $1 AND deleted_at IS NULL AND name ILIKE $2
		ORDER BY name
		LIMIT $3`

	return r.selectMany(ctx, q, ownerID, dbx.ContainsPattern(query), limit)
}
