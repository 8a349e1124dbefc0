// Package admin serves the password-protected JSON API for editing the reply
// table and inspecting the file caches.
package admin

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"keyword_responder/internal/filecache"
	"keyword_responder/internal/fsstore"
	"keyword_responder/internal/metrics"
	"keyword_responder/internal/replies"
	"keyword_responder/internal/responder"
	"keyword_responder/internal/session"
)

// CookieName is the session cookie set on login.
const CookieName = "autoresponder_session"

// Cache is a reloadable file-backed cache.
type Cache interface {
	Invalidate()
	Stats() filecache.Stats
}

// Resolver answers a message the way the webhook would.
type Resolver interface {
	OnIncomingText(ctx context.Context, msg responder.Message) (string, bool)
}

// Config wires the admin server.
type Config struct {
	Password     string
	Sessions     session.Store
	Repository   *replies.Repository
	Caches       []Cache
	Resolver     Resolver
	SessionTTL   time.Duration
	SecureCookie bool
	Logger       *zap.Logger
	Now          func() time.Time
}

// Server holds the admin handlers.
type Server struct {
	cfg Config
}

// New returns a Server. Sessions and Repository are required.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = session.DefaultTTL
	}
	return &Server{cfg: cfg}
}

// Register mounts the health, login and authenticated admin routes.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.handleHealth)
	e.GET("/health", s.handleHealth)

	e.POST("/admin/login", s.handleLogin)
	e.POST("/admin/logout", s.handleLogout)

	g := e.Group("/admin", s.requireSession)
	g.GET("/words", s.handleListWords)
	g.POST("/words", s.handleAddWord)
	g.DELETE("/words", s.handleDeleteWord)
	g.PUT("/fallback", s.handleSetFallback)
	g.DELETE("/fallback", s.handleClearFallback)
	g.POST("/reload", s.handleReload)
	g.GET("/cache-info", s.handleCacheInfo)
	g.POST("/resolve", s.handleResolve)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.cfg.Now(),
	})
}

func (s *Server) handleLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{"Invalid request"})
	}
	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Password)) != 1 {
		s.cfg.Logger.Warn("admin login rejected", zap.String("remote_ip", c.RealIP()))
		return c.JSON(http.StatusUnauthorized, errorResponse{"Invalid password"})
	}

	token, err := s.cfg.Sessions.Create(c.Request().Context())
	if err != nil {
		s.cfg.Logger.Error("create session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{"Could not create session"})
	}
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.cfg.Now().Add(s.cfg.SessionTTL),
		MaxAge:   int(s.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged in"})
}

func (s *Server) handleLogout(c echo.Context) error {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		if err := s.cfg.Sessions.Delete(c.Request().Context(), cookie.Value); err != nil {
			s.cfg.Logger.Warn("delete session", zap.Error(err))
		}
	}
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookie,
		SameSite: http.SameSiteStrictMode,
	})
	return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cookie, err := c.Cookie(CookieName)
		if err != nil || cookie.Value == "" {
			return c.JSON(http.StatusUnauthorized, errorResponse{"Login required"})
		}
		ok, err := s.cfg.Sessions.Valid(c.Request().Context(), cookie.Value)
		if err != nil {
			s.cfg.Logger.Error("check session", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, errorResponse{"Session lookup failed"})
		}
		if !ok {
			return c.JSON(http.StatusUnauthorized, errorResponse{"Session expired"})
		}
		return next(c)
	}
}

func (s *Server) handleListWords(c echo.Context) error {
	doc, err := s.cfg.Repository.List()
	if err != nil {
		return s.repoError(c, err)
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleAddWord(c echo.Context) error {
	var req WordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{"Invalid request"})
	}
	layer, err := replies.ParseLayer(req.Layer)
	if err != nil {
		return s.repoError(c, err)
	}
	if err := s.cfg.Repository.Add(layer, req.Key, req.Reply); err != nil {
		return s.repoError(c, err)
	}
	s.changed("add", zap.String("layer", string(layer)), zap.String("key", req.Key))
	return s.changeResponse(c, fmt.Sprintf("Saved '%s'", req.Key))
}

func (s *Server) handleDeleteWord(c echo.Context) error {
	var req WordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{"Invalid request"})
	}
	layer, err := replies.ParseLayer(req.Layer)
	if err != nil {
		return s.repoError(c, err)
	}
	removed, err := s.cfg.Repository.Delete(layer, req.Key)
	if err != nil {
		return s.repoError(c, err)
	}
	if !removed {
		return c.JSON(http.StatusNotFound, errorResponse{fmt.Sprintf("Key not found: %s", req.Key)})
	}
	s.changed("delete", zap.String("layer", string(layer)), zap.String("key", req.Key))
	return s.changeResponse(c, fmt.Sprintf("Deleted '%s'", req.Key))
}

func (s *Server) handleSetFallback(c echo.Context) error {
	var req FallbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{"Invalid request"})
	}
	if err := s.cfg.Repository.SetFallback(&req.Reply); err != nil {
		return s.repoError(c, err)
	}
	s.changed("set_fallback")
	return s.changeResponse(c, "Fallback saved")
}

func (s *Server) handleClearFallback(c echo.Context) error {
	if err := s.cfg.Repository.SetFallback(nil); err != nil {
		return s.repoError(c, err)
	}
	s.changed("clear_fallback")
	return s.changeResponse(c, "Fallback cleared")
}

func (s *Server) handleReload(c echo.Context) error {
	files := make([]string, 0, len(s.cfg.Caches))
	for _, cache := range s.cfg.Caches {
		cache.Invalidate()
		files = append(files, cache.Stats().Path)
	}
	s.cfg.Logger.Info("caches invalidated", zap.Strings("files", files))
	return c.JSON(http.StatusOK, ReloadResponse{
		Message:    fmt.Sprintf("%d file caches cleared and will reload on next message", len(files)),
		Files:      files,
		ReloadedAt: s.cfg.Now(),
	})
}

func (s *Server) handleCacheInfo(c echo.Context) error {
	stats := make([]filecache.Stats, 0, len(s.cfg.Caches))
	for _, cache := range s.cfg.Caches {
		stats = append(stats, cache.Stats())
	}
	return c.JSON(http.StatusOK, CacheInfoResponse{Files: stats, Timestamp: s.cfg.Now()})
}

func (s *Server) handleResolve(c echo.Context) error {
	if s.cfg.Resolver == nil {
		return c.JSON(http.StatusNotImplemented, errorResponse{"Resolver not configured"})
	}
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{"Invalid request"})
	}
	reply, ok := s.cfg.Resolver.OnIncomingText(c.Request().Context(), responder.Message{
		RawText: req.Text,
		IsGroup: req.IsGroup,
	})
	return c.JSON(http.StatusOK, ResolveResponse{Reply: reply, Matched: ok})
}

func (s *Server) changed(op string, fields ...zap.Field) {
	metrics.AdminChanges.WithLabelValues(op).Inc()
	s.cfg.Logger.Info("reply table changed", append([]zap.Field{zap.String("op", op)}, fields...)...)
}

func (s *Server) changeResponse(c echo.Context, message string) error {
	doc, err := s.cfg.Repository.List()
	if err != nil {
		return s.repoError(c, err)
	}
	return c.JSON(http.StatusOK, ChangeResponse{Message: message, Entries: doc.Len()})
}

// repoError maps validation failures to 400 and anything else to 500.
func (s *Server) repoError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, replies.ErrInvalidLayer),
		errors.Is(err, replies.ErrInvalidKey),
		errors.Is(err, replies.ErrInvalidReply),
		errors.Is(err, replies.ErrInvalidPattern):
		return c.JSON(http.StatusBadRequest, errorResponse{err.Error()})
	case errors.Is(err, fsstore.ErrDecodeFailed):
		s.cfg.Logger.Error("reply table unreadable", zap.Error(err))
		return c.JSON(http.StatusConflict, errorResponse{"Reply table file is malformed; fix it on disk first"})
	default:
		s.cfg.Logger.Error("reply table update failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{"Could not update reply table"})
	}
}
