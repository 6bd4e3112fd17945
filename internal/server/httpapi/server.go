// Package httpapi exposes the drive over JSON/HTTP. Handlers only decode
// requests, call the services and map their typed errors to status codes.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/server/metrics"
	"github.com/dmitrijs2005/gophdrive/internal/server/services"
)

// MaxUploadBytes bounds a single upload request body.
const MaxUploadBytes = 5 << 30

// Services groups the business services the handlers call.
type Services struct {
	Tree      *services.TreeService
	Trash     *services.TrashService
	Bulk      *services.BulkService
	Favorites *services.FavoriteService
	Users     *services.UserService
}

type Server struct {
	address   string
	svc       Services
	logger    logging.Logger
	jwtSecret []byte

	maxUploadBytes  int64
	shutdownTimeout time.Duration
}

func NewServer(address string, l logging.Logger, svc Services, secretKey string) *Server {
	if l == nil {
		l = logging.Nop()
	}
	return &Server{
		address:         address,
		svc:             svc,
		logger:          l.With("module", "http_server"),
		jwtSecret:       []byte(secretKey),
		maxUploadBytes:  MaxUploadBytes,
		shutdownTimeout: 10 * time.Second,
	}
}

// Handler returns the routed handler with auth, logging and metrics
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /api/v1/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)

	// Routes stay on one mux so the metrics middleware sees the matched
	// pattern.
	protected := &authMux{mux: mux, wrap: s.accessTokenMiddleware}
	protected.HandleFunc("GET /api/v1/me", s.handleMe)
	protected.HandleFunc("POST /api/v1/admin/users", s.handleAdminCreateUser)

	protected.HandleFunc("GET /api/v1/folders/root/children", s.handleListChildren)
	protected.HandleFunc("GET /api/v1/folders/{id}/children", s.handleListChildren)
	protected.HandleFunc("POST /api/v1/folders", s.handleCreateFolder)
	protected.HandleFunc("POST /api/v1/files", s.handleUpload)
	protected.HandleFunc("GET /api/v1/files/{id}/content", s.handleDownload)
	protected.HandleFunc("GET /api/v1/search", s.handleSearch)

	protected.HandleFunc("POST /api/v1/items/{type}/{id}/rename", s.handleRename)
	protected.HandleFunc("POST /api/v1/items/{type}/{id}/move", s.handleMove)
	protected.HandleFunc("POST /api/v1/items/{type}/{id}/trash", s.handleMoveToTrash)
	protected.HandleFunc("POST /api/v1/items/{type}/{id}/restore", s.handleRestore)
	protected.HandleFunc("DELETE /api/v1/items/{type}/{id}", s.handlePurge)

	protected.HandleFunc("GET /api/v1/trash", s.handleListTrash)
	protected.HandleFunc("DELETE /api/v1/trash", s.handleEmptyTrash)
	protected.HandleFunc("POST /api/v1/bulk/trash", s.handleBulkTrash)
	protected.HandleFunc("POST /api/v1/bulk/move", s.handleBulkMove)

	protected.HandleFunc("GET /api/v1/favorites", s.handleListFavorites)
	protected.HandleFunc("POST /api/v1/favorites", s.handleAddFavorite)
	protected.HandleFunc("DELETE /api/v1/favorites/{type}/{id}", s.handleRemoveFavorite)

	// metrics sits inside logRequests so it sees the request the mux annotates.
	return s.logRequests(metrics.Middleware(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

type authMux struct {
	mux  *http.ServeMux
	wrap func(http.Handler) http.Handler
}

func (m *authMux) HandleFunc(pattern string, h http.HandlerFunc) {
	m.mux.Handle(pattern, m.wrap(h))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
