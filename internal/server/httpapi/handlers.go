package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrive/internal/server/models"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
)

const maxJSONBody = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func itemRef(r *http.Request) models.ItemRef {
	return models.ItemRef{Type: models.ItemType(r.PathValue("type")), ID: r.PathValue("id")}
}

// optionalID turns an empty query or path value into nil.
func optionalID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- accounts ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Role != "" && req.Role != models.RoleUser {
		sendError(w, http.StatusForbidden, "only administrators can assign roles")
		return
	}
	s.register(w, r, req, models.RoleUser)
}

func (s *Server) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	if identityFrom(r.Context()).Role != models.RoleAdmin {
		sendError(w, http.StatusForbidden, "administrator role required")
		return
	}
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role, err := models.ParseRole(string(req.Role))
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.register(w, r, req, role)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request, req registerRequest, role models.Role) {
	u, err := s.svc.Users.Register(r.Context(), req.UserName, req.Email, req.Password, role)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, toUser(u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, err := s.svc.Users.Login(r.Context(), req.UserName, req.Password)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "Bearer"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.Users.Me(r.Context(), identityFrom(r.Context()).UserID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, toUser(u))
}

// --- tree ---

func (s *Server) handleListChildren(w http.ResponseWriter, r *http.Request) {
	owner := identityFrom(r.Context()).UserID
	l, err := s.svc.Tree.ListChildren(r.Context(), owner, optionalID(r.PathValue("id")))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, toListing(l))
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner := identityFrom(r.Context()).UserID
	f, err := s.svc.Tree.CreateFolder(r.Context(), owner, req.Name, req.ParentID)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, toFolder(f))
}

// uploadBody remembers whether the request body hit the upload limit, since
// the services report any content failure as internal.
type uploadBody struct {
	io.Reader
	tooLarge bool
}

func (b *uploadBody) Read(p []byte) (int, error) {
	n, err := b.Reader.Read(p)
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		b.tooLarge = true
	}
	return n, err
}

// handleUpload takes the raw request body as file content. Name and target
// folder come from the query string.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		s.sendTooLarge(w)
		return
	}
	q := r.URL.Query()
	owner := identityFrom(r.Context()).UserID

	body := &uploadBody{Reader: http.MaxBytesReader(w, r.Body, s.maxUploadBytes)}
	f, err := s.svc.Tree.CreateFile(r.Context(), owner, services.CreateFileInput{
		Name:     q.Get("name"),
		FolderID: optionalID(q.Get("folder_id")),
		MimeType: r.Header.Get("Content-Type"),
		Size:     r.ContentLength,
		Body:     body,
	})
	if body.tooLarge {
		s.sendTooLarge(w)
		return
	}
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, toFile(f))
}

func (s *Server) sendTooLarge(w http.ResponseWriter) {
	sendError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	owner := identityFrom(r.Context()).UserID
	f, rc, err := s.svc.Tree.OpenFile(r.Context(), owner, r.PathValue("id"))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.SizeBytes, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Name))
	n, err := io.Copy(w, rc)
	metrics.RecordContentDownload(n)
	if err != nil {
		s.logger.Warn(r.Context(), "download interrupted", "file_id", f.ID, "error", err)
	}
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	owner := identityFrom(r.Context()).UserID
	l, err := s.svc.Tree.Search(r.Context(), owner, q.Get("q"), limit)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, toListing(l))
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner := identityFrom(r.Context()).UserID
	if err := s.svc.Tree.Rename(r.Context(), owner, itemRef(r), req.Name); err != nil {
		sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner := identityFrom(r.Context()).UserID
	if err := s.svc.Tree.Move(r.Context(), owner, itemRef(r), req.DestinationID); err != nil {
		sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- trash ---

func (s *Server) handleMoveToTrash(w http.ResponseWriter, r *http.Request) {
	owner := identityFrom(r.Context()).UserID
	if err := s.svc.Trash.MoveToTrash(r.Context(), owner, itemRef(r)); err != nil {
		sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	owner := identityFrom(r.Context()).UserID
	if err := s.svc.Trash.Restore(r.Context(), owner, itemRef(r)); err != nil {
		sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	owner := identityFrom(r.Context()).UserID
	res, err := s.svc.Trash.Purge(r.Context(), owner, itemRef(r))
	if err != nil {
		sendServiceError(w, err)
		return
	}
	if !res.Found {
		sendServiceError(w, common.ErrorNotFound)
		return
	}
	sendJSON(w, http.StatusOK, purgeResponse{Files: res.Files, Folders: res.Folders, BytesReleased: res.BytesReleased})
}

func (s *Server) handleListTrash(w http.ResponseWriter, r *http.Request) {
	owner := identityFrom(r.Context()).UserID
	items, err := s.svc.Trash.ListTrash(r.Context(), owner)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	out := make([]trashItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, trashItemResponse{Type: it.Type, ID: it.ID, Name: it.Name,
			ParentID: it.ParentID, SizeBytes: it.SizeBytes, DeletedAt: it.DeletedAt})
	}
	sendJSON(w, http.StatusOK, out)
}

func (s *Server) handleEmptyTrash(w http.ResponseWriter, r *http.Request) {
	owner := identityFrom(r.Context()).UserID
	res, err := s.svc.Trash.EmptyTrash(r.Context(), owner)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, emptyTrashResponse{
		AlreadyEmpty:  res.AlreadyEmpty,
		purgeResponse: purgeResponse{Files: res.Files, Folders: res.Folders, BytesReleased: res.BytesReleased},
	})
}

// --- bulk ---

func (s *Server) sendBulk(w http.ResponseWriter, res *services.BulkResult, err error) {
	if err != nil {
		sendServiceError(w, err)
		return
	}
	code := http.StatusOK
	if res.Partial() {
		code = http.StatusMultiStatus
	}
	sendJSON(w, code, toBulk(res))
}

func (s *Server) handleBulkTrash(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		sendServiceError(w, common.ErrInvalidArgument)
		return
	}
	owner := identityFrom(r.Context()).UserID
	res, err := s.svc.Bulk.BulkMoveToTrash(r.Context(), owner, req.Items)
	s.sendBulk(w, res, err)
}

func (s *Server) handleBulkMove(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		sendServiceError(w, common.ErrInvalidArgument)
		return
	}
	owner := identityFrom(r.Context()).UserID
	res, err := s.svc.Bulk.BulkMove(r.Context(), owner, req.Items, req.DestinationID)
	s.sendBulk(w, res, err)
}

// --- favorites ---

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	owner := identityFrom(r.Context()).UserID
	favs, err := s.svc.Favorites.List(r.Context(), owner)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	out := make([]favoriteResponse, 0, len(favs))
	for _, f := range favs {
		out = append(out, toFavorite(f))
	}
	sendJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var ref models.ItemRef
	if !decodeJSON(w, r, &ref) {
		return
	}
	owner := identityFrom(r.Context()).UserID
	f, err := s.svc.Favorites.Add(r.Context(), owner, ref)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusCreated, toFavorite(f))
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	owner := identityFrom(r.Context()).UserID
	if err := s.svc.Favorites.Remove(r.Context(), owner, itemRef(r)); err != nil {
		sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
