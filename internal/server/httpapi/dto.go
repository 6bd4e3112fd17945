package httpapi

import (
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
)

type folderResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ParentID  *string    `json:"parent_id"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func toFolder(f *models.Folder) folderResponse {
	return folderResponse{ID: f.ID, Name: f.Name, ParentID: f.ParentID,
		CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt, DeletedAt: f.DeletedAt}
}

type fileResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	FolderID  *string    `json:"folder_id"`
	MimeType  string     `json:"mime_type"`
	SizeBytes int64      `json:"size_bytes"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func toFile(f *models.File) fileResponse {
	return fileResponse{ID: f.ID, Name: f.Name, FolderID: f.FolderID, MimeType: f.MimeType,
		SizeBytes: f.SizeBytes, CreatedAt: f.CreatedAt, UpdatedAt: f.UpdatedAt, DeletedAt: f.DeletedAt}
}

type listingResponse struct {
	Folders []folderResponse `json:"folders"`
	Files   []fileResponse   `json:"files"`
}

func toListing(l *services.Listing) listingResponse {
	out := listingResponse{Folders: []folderResponse{}, Files: []fileResponse{}}
	for _, f := range l.Folders {
		out.Folders = append(out.Folders, toFolder(f))
	}
	for _, f := range l.Files {
		out.Files = append(out.Files, toFile(f))
	}
	return out
}

type userResponse struct {
	ID                string      `json:"id"`
	UserName          string      `json:"username"`
	Email             string      `json:"email"`
	Role              models.Role `json:"role"`
	StorageQuotaBytes *int64      `json:"storage_quota_bytes"`
	StorageUsedBytes  int64       `json:"storage_used_bytes"`
	CreatedAt         time.Time   `json:"created_at"`
}

func toUser(u *models.User) userResponse {
	return userResponse{ID: u.ID, UserName: u.UserName, Email: u.Email, Role: u.Role,
		StorageQuotaBytes: u.StorageQuotaBytes, StorageUsedBytes: u.StorageUsedBytes, CreatedAt: u.CreatedAt}
}

type trashItemResponse struct {
	Type      models.ItemType `json:"type"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	ParentID  *string         `json:"parent_id"`
	SizeBytes int64           `json:"size_bytes"`
	DeletedAt time.Time       `json:"deleted_at"`
}

type purgeResponse struct {
	Files         int   `json:"files"`
	Folders       int   `json:"folders"`
	BytesReleased int64 `json:"bytes_released"`
}

type emptyTrashResponse struct {
	AlreadyEmpty bool `json:"already_empty"`
	purgeResponse
}

type bulkItemError struct {
	Type   models.ItemType `json:"type"`
	ID     string          `json:"id"`
	Error  string          `json:"error"`
	Status int             `json:"status"`
}

type bulkResponse struct {
	Requested int             `json:"requested"`
	Succeeded int             `json:"succeeded"`
	Errors    []bulkItemError `json:"errors"`
}

func toBulk(res *services.BulkResult) bulkResponse {
	out := bulkResponse{Requested: res.Requested, Succeeded: res.Succeeded, Errors: []bulkItemError{}}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, bulkItemError{Type: e.Ref.Type, ID: e.Ref.ID,
			Error: errorMessage(e.Err), Status: statusFor(e.Err)})
	}
	return out
}

type favoriteResponse struct {
	ID        string          `json:"id"`
	Type      models.ItemType `json:"type"`
	ItemID    string          `json:"item_id"`
	CreatedAt time.Time       `json:"created_at"`
}

func toFavorite(f *models.Favorite) favoriteResponse {
	ref := f.Ref()
	return favoriteResponse{ID: f.ID, Type: ref.Type, ItemID: ref.ID, CreatedAt: f.CreatedAt}
}

type registerRequest struct {
	UserName string      `json:"username"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

type loginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type moveRequest struct {
	DestinationID *string `json:"destination_id"`
}

type bulkRequest struct {
	Items         []models.ItemRef `json:"items"`
	DestinationID *string          `json:"destination_id"`
}
