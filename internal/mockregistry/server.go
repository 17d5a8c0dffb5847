// Package mockregistry is an in-memory registry that speaks the same HTTP contract as the
// remote model registry. It backs the registry-mock development server and the
// end-to-end tests of the modelreg client.
package mockregistry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clean-dependency-project/modelreg/internal/config"
	gh "github.com/clean-dependency-project/modelreg/internal/github"
	"github.com/clean-dependency-project/modelreg/internal/registry"
)

const (
	// MaxPageSize caps the listing limit.
	MaxPageSize = 100
	// DefaultPageSize applies when the listing request has no limit.
	DefaultPageSize = 50
	// Issuer and Audience are stamped into every issued token.
	Issuer   = "modelreg-dev"
	Audience = "modelreg"

	requestIDHeader = "X-Request-Id"
	maxWarnings     = 20
)

// LicenseProbe looks up a repository's license. *github.Client satisfies it.
type LicenseProbe interface {
	License(ctx context.Context, repository string) (*gh.RepoLicense, error)
}

// Scorer rates a package. key identifies the source, usually the model URL.
type Scorer func(key string) registry.Scores

// Options configures a Server.
type Options struct {
	Server config.ServerConfig
	Seed   Seed
	Logger *slog.Logger
	// Scorer replaces the default deterministic scorer.
	Scorer Scorer
	// Licenses resolves repository licenses for license checks. Nil treats every
	// repository license as unknown.
	Licenses LicenseProbe
	// Clock replaces time.Now for token timestamps and uptime.
	Clock func() time.Time
}

// Server is the in-memory registry.
type Server struct {
	opts    Options
	logger  *slog.Logger
	store   *store
	router  *gin.Engine
	started time.Time

	success atomic.Int64
	errors  atomic.Int64

	mu       sync.Mutex
	warnings []string
}

// New builds a server and loads opts.Seed into its store.
func New(opts Options) (*Server, error) {
	if opts.Server.JWTSecret == "" {
		return nil, config.ErrJWTSecretRequired
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Scorer == nil {
		opts.Scorer = DefaultScorer
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	s := &Server{
		opts:    opts,
		logger:  opts.Logger,
		store:   newStore(),
		started: opts.Clock(),
	}
	if err := s.load(opts.Seed); err != nil {
		return nil, fmt.Errorf("failed to load seed: %w", err)
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the registry API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("registry listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("registry shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.accessLog())

	origins := s.opts.Server.AllowedOrigins
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader, "offset"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", s.health)

	v1 := r.Group("/v1")
	v1.POST("/auth/login", s.login)
	v1.GET("/tracks", s.tracks)

	viewer := v1.Group("", s.authenticate(registry.RoleViewer))
	viewer.GET("/auth/whoami", s.whoami)
	viewer.GET("/packages", s.listPackages)
	viewer.GET("/packages/:id", s.getPackage)
	viewer.GET("/rate/:id/ndjson", s.ratingRecord)

	contributor := v1.Group("", s.authenticate(registry.RoleContributor))
	contributor.POST("/packages", s.createPackage)
	contributor.POST("/ingest/cli", s.ingest)
	contributor.POST("/rate/:id", s.ratePackage)

	admin := v1.Group("", s.authenticate(registry.RoleAdmin))
	admin.DELETE("/packages/:id", s.deletePackage)

	a := r.Group("", s.authenticate(registry.RoleViewer))
	a.POST("/artifacts", s.queryArtifacts)
	a.POST("/artifact/byRegEx", s.artifactsByRegex)
	a.GET("/artifact/byName/:name", s.artifactsByName)
	a.GET("/artifacts/:type/:id", s.getArtifact)
	a.GET("/artifact/model/:id/rate", s.rateModel)
	a.GET("/artifact/model/:id/lineage", s.lineage)
	a.GET("/artifact/:type/:id/cost", s.cost)
	a.GET("/artifact/model/:id/cost", fixedType(registry.TypeModel, s.cost))
	a.POST("/artifact/model/:id/license-check", s.licenseCheck)

	w := r.Group("", s.authenticate(registry.RoleContributor))
	w.POST("/artifact/:type", s.uploadArtifact)
	w.POST("/artifact/model", fixedType(registry.TypeModel, s.uploadArtifact))

	d := r.Group("", s.authenticate(registry.RoleAdmin))
	d.DELETE("/artifacts/:type/:id", s.deleteArtifact)

	return r
}

// fixedType serves a route whose static segment shadows the :type parameter.
func fixedType(t string, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Params = append(c.Params, gin.Param{Key: "type", Value: t})
		h(c)
	}
}

// requestID echoes the caller's X-Request-Id or assigns a new one.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// accessLog logs each request and keeps the health counters.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			s.errors.Add(1)
		} else {
			s.success.Add(1)
		}
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"request_id", c.GetString("request_id"),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// warn records a message for the health endpoint's recent_warnings.
func (s *Server) warn(msg string, args ...any) {
	s.logger.Warn(msg, args...)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, msg)
	if len(s.warnings) > maxWarnings {
		s.warnings = s.warnings[len(s.warnings)-maxWarnings:]
	}
}

// fail writes an error body in the {"detail": "..."} envelope the client expects.
func fail(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": detail})
}

// invalid writes a 422 with a list of field messages.
func invalid(c *gin.Context, msgs ...string) {
	items := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, gin.H{"msg": m})
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": items})
}

func (s *Server) health(c *gin.Context) {
	s.mu.Lock()
	warnings := append([]string{}, s.warnings...)
	s.mu.Unlock()

	c.JSON(http.StatusOK, registry.Health{
		UptimeSeconds:  s.opts.Clock().Sub(s.started).Seconds(),
		Success:        int(s.success.Load()),
		Errors:         int(s.errors.Load()),
		RecentWarnings: warnings,
	})
}

// Tracks lists the feature tracks this registry implements.
var Tracks = []registry.Track{
	{Name: "access control track", Description: "Authentication and authorization system with role-based access control"},
	{Name: "model registry track", Description: "Model package management and evaluation system"},
	{Name: "cli integration track", Description: "Integration with CLI metrics for model evaluation"},
}

func (s *Server) tracks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"planned_tracks": Tracks})
}
