// Package api serves recorded sessions and demo transcripts over HTTP, with
// a websocket endpoint that streams new lines of a JSONL log as they land.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/agent-protocol/agent-arena/pkg/records"
	"github.com/agent-protocol/agent-arena/pkg/report"
	"github.com/agent-protocol/agent-arena/pkg/sessions"
)

// Root names accepted in file URLs.
const (
	RootSessions = "sessions"
	RootOutputs  = "outputs"
)

// ServerConfig contains configuration for the API server
type ServerConfig struct {
	Host         string
	Port         int
	SessionsDir  string
	OutputsDir   string
	AllowOrigins []string
}

// Server represents the HTTP API server
type Server struct {
	config   *ServerConfig
	router   *gin.Engine
	manager  *sessions.Manager
	roots    map[string]string
	upgrader websocket.Upgrader
}

// RunInfo describes one demo output found under the outputs directory.
type RunInfo struct {
	Name     string      `json:"name"`
	Kind     report.Kind `json:"kind"`
	Path     string      `json:"path"`
	Modified time.Time   `json:"modified"`
}

var errOutsideRoot = errors.New("path escapes its root")

// NewServer creates a new API server instance
func NewServer(config *ServerConfig) *Server {
	s := &Server{
		config:  config,
		manager: sessions.NewManager(config.SessionsDir),
		roots: map[string]string{
			RootSessions: config.SessionsDir,
			RootOutputs:  config.OutputsDir,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(s.config.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.config.AllowOrigins
	}
	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	r.Use(cors.New(corsCfg))

	r.GET("/", s.handleIndex)
	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	api.GET("/sessions", s.handleListSessions)
	api.GET("/sessions/:name", s.handleGetSession)
	api.GET("/sessions/:name/analysis", s.handleAnalyzeSession)
	api.GET("/runs", s.handleListRuns)
	api.GET("/records/:root/*path", s.handleRecords)
	api.GET("/html/:root/*path", s.handleHTML)
	api.GET("/tail/:root/*path", s.handleTail)

	s.router = r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	srv := &http.Server{Addr: address, Handler: s.router}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	slog.Info("results browser listening", "address", address, "sessions", s.config.SessionsDir, "outputs", s.config.OutputsDir)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleListSessions(c *gin.Context) {
	list, err := s.manager.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if list == nil {
		list = []sessions.Info{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) sessionDir(c *gin.Context) (string, bool) {
	dir, err := s.resolve(RootSessions, c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return dir, true
}

func (s *Server) handleGetSession(c *gin.Context) {
	dir, ok := s.sessionDir(c)
	if !ok {
		return
	}
	summary, err := sessions.LoadSummary(dir)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleAnalyzeSession(c *gin.Context) {
	dir, ok := s.sessionDir(c)
	if !ok {
		return
	}
	analysis, err := sessions.Analyze(dir)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// handleListRuns lists renderable outputs one level below the outputs
// directory and inside its immediate subdirectories.
func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := ListRuns(s.config.OutputsDir)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, runs)
}

// ListRuns finds debate logs and negotiation or press run directories up to
// two levels under base, newest first.
func ListRuns(base string) ([]RunInfo, error) {
	runs := []RunInfo{}
	var scan func(dir string, depth int) error
	scan = func(dir string, depth int) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if !e.IsDir() && !strings.HasSuffix(e.Name(), ".jsonl") {
				continue
			}
			kind, err := report.Detect(path)
			if err == nil {
				info, _ := e.Info()
				rel, _ := filepath.Rel(base, path)
				runs = append(runs, RunInfo{Name: e.Name(), Kind: kind, Path: filepath.ToSlash(rel), Modified: info.ModTime()})
				continue
			}
			if e.IsDir() && depth < 1 {
				if err := scan(path, depth+1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := scan(base, 0); err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool { return runs[i].Modified.After(runs[j].Modified) })
	return runs, nil
}

func (s *Server) handleRecords(c *gin.Context) {
	path, err := s.resolve(c.Param("root"), c.Param("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	lines, err := records.ReadLines[map[string]any](path)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	if lines == nil {
		lines = []map[string]any{}
	}
	c.JSON(http.StatusOK, lines)
}

func (s *Server) handleHTML(c *gin.Context) {
	path, err := s.resolve(c.Param("root"), c.Param("path"))
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	page, _, err := report.Load(path)
	if err != nil {
		c.String(statusFor(err), err.Error())
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := report.Render(c.Writer, page); err != nil {
		slog.Warn("render failed", "path", path, "error", err)
	}
}

// resolve maps a root name and a relative path to a file inside that root.
func (s *Server) resolve(root, rel string) (string, error) {
	base, ok := s.roots[root]
	if !ok || base == "" {
		return "", fmt.Errorf("unknown root %q", root)
	}
	clean := filepath.Clean("/" + filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", errOutsideRoot, rel)
	}
	return filepath.Join(base, clean), nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, sessions.ErrSessionNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, report.ErrUnknownLayout):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
