package favorites

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/dbx"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Add(ctx context.Context, f *models.Favorite) (*models.Favorite, error) {
	if !f.Valid() {
		return nil, common.ErrInvalidItemType
	}

	query := `
		INSERT INTO favorites (owner_id, file_id, folder_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, f.OwnerID, dbx.NullString(f.FileID), dbx.NullString(f.FolderID)).
		Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	return f, nil
}

func (r *PostgresRepository) Remove(ctx context.Context, ownerID string, ref models.ItemRef) error {
	column := "file_id"
	if ref.Type == models.ItemFolder {
		column = "folder_id"
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM favorites WHERE owner_id = $1 AND `+column+` = $2`, ownerID, ref.ID)
	if err != nil {
		return dbx.MapError(err)
	}
	return dbx.ExpectOneRow(res)
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string) ([]*models.Favorite, error) {
	query := `
		SELECT fav.id, fav.owner_id, fav.file_id, fav.folder_id, fav.created_at
		FROM favorites fav
		LEFT JOIN files f ON f.id = fav.file_id
		LEFT JOIN folders d ON d.id = fav.folder_id
		WHERE fav.owner_id = $1
		  AND ((fav.file_id IS NOT NULL AND f.deleted_at IS NULL)
		    OR (fav.folder_id IS NOT NULL AND d.deleted_at IS NULL))
		ORDER BY fav.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, dbx.MapError(err)
	}
	defer rows.Close()

	var result []*models.Favorite
	for rows.Next() {
		var (
			fav              models.Favorite
			fileID, folderID sql.NullString
		)
		if err := rows.Scan(&fav.ID, &fav.OwnerID, &fileID, &folderID, &fav.CreatedAt); err != nil {
			return nil, dbx.MapError(err)
		}
		fav.FileID = dbx.StringPtr(fileID)
		fav.FolderID = dbx.StringPtr(folderID)
		result = append(result, &fav)
	}
	if err := rows.Err(); err != nil {
		return nil, dbx.MapError(err)
	}
	return result, nil
}
