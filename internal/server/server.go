// Package server exposes normalization over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/reoring/jsonrel"
	"github.com/reoring/jsonrel/internal/config"
	"github.com/reoring/jsonrel/internal/pipeline"
	"github.com/reoring/jsonrel/middleware"
	ginmw "github.com/reoring/jsonrel/middleware/gin"
	"github.com/reoring/jsonrel/pkg/logger"
	"github.com/reoring/jsonrel/sink/csvsink"
)

type Server struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *Metrics
	router  *gin.Engine
}

// New builds the router. cfg must be validated.
func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewLogger(nil)
	}
	s := &Server{cfg: cfg, log: log, metrics: NewMetrics()}
	if err := s.buildRouter(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) buildRouter() error {
	driver, err := pipeline.Driver(s.cfg.Input.Driver)
	if err != nil {
		return err
	}
	popt, err := s.cfg.ToParseOpt()
	if err != nil {
		return err
	}
	if popt.Strictness.OnDuplicateKey == jsonrel.Ignore {
		popt.Strictness.OnDuplicateKey = middleware.DefaultParseOpt().Strictness.OnDuplicateKey
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.logMiddleware())
	r.Use(s.metrics.Middleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/normalize", ginmw.NormalizeJSON(s.policyFromQuery, ginmw.Options{
		Driver:       driver,
		ParseOpt:     popt,
		MaxBodyBytes: s.cfg.Server.MaxBodyBytes,
	}), s.handleNormalize)

	s.router = r
	return nil
}

// Handler returns the HTTP handler; tests drive it through httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.Server.ReadTimeout,
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", "address", s.cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	s.log.Debug("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("Server shutdown completed")
	return nil
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		ctx := logger.ContextWithLogger(c.Request.Context(), s.log)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		s.log.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// policyFromQuery applies query overrides on top of the configured policy.
func (s *Server) policyFromQuery(c *gin.Context) (jsonrel.Policy, error) {
	cfg := *s.cfg
	pc := &cfg.Policy
	str := map[string]*string{
		"root":                &pc.RootRelation,
		"object_arrays":       &pc.ObjectArrays,
		"primitive_arrays":    &pc.PrimitiveArrays,
		"header_order":        &pc.HeaderOrder,
		"join_separator":      &pc.JoinSeparator,
		"id_column":           &pc.IDColumn,
		"parent_link_column":  &pc.ParentLinkColumn,
		"on_column_collision": &pc.OnColumnCollision,
	}
	for k, dst := range str {
		if v, ok := c.GetQuery(k); ok {
			*dst = v
		}
	}
	flags := map[string]*bool{
		"nested":       &pc.AllowChildRelations,
		"ids":          &pc.GenerateRowID,
		"parent_links": &pc.GenerateParentLink,
	}
	for k, dst := range flags {
		if v, ok := c.GetQuery(k); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return jsonrel.Policy{}, queryIssue(k, "must be a boolean")
			}
			*dst = b
		}
	}
	if v, ok := c.GetQuery("max_depth"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return jsonrel.Policy{}, queryIssue("max_depth", "must be an integer")
		}
		pc.MaxDepth = n
	}
	return cfg.ToPolicy()
}

func queryIssue(field, msg string) jsonrel.Issues {
	return jsonrel.AppendIssues(nil, jsonrel.Root().Field(field).Issue(jsonrel.CodeInvalidPolicy, msg, "field", field))
}

type relationJSON struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	// Present marks set cells; a missing cell and a null are both null in
	// Rows. Omitted when every cell is set.
	Present [][]bool `json:"present,omitempty"`
}

func (s *Server) handleNormalize(c *gin.Context) {
	res, ok := ginmw.GetResult(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "missing normalization result"})
		return
	}
	rows := 0
	for _, rel := range res.Relations {
		rows += rel.Len()
	}
	s.metrics.Observe(len(res.Relations), rows)

	if c.Query("format") == "csv" {
		s.writeCSV(c, res.Relations)
		return
	}
	out := make([]relationJSON, 0, len(res.Relations))
	for _, rel := range res.Relations {
		cells, present := rel.Records()
		if allSet(present) {
			present = nil
		}
		out = append(out, relationJSON{Name: rel.Name(), Columns: rel.Columns(), Rows: cells, Present: present})
	}
	body := gin.H{"relations": out}
	if len(res.Issues) > 0 {
		body["issues"] = middleware.Issues(res.Issues)
	}
	c.JSON(http.StatusOK, body)
}

func allSet(present [][]bool) bool {
	for _, row := range present {
		for _, ok := range row {
			if !ok {
				return false
			}
		}
	}
	return true
}

func (s *Server) writeCSV(c *gin.Context, rels []jsonrel.Relation) {
	name := c.Query("relation")
	if name == "" {
		if len(rels) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "relation query parameter is required when the result has several relations"})
			return
		}
		name = rels[0].Name()
	}
	for _, rel := range rels {
		if rel.Name() != name {
			continue
		}
		opts, err := s.cfg.ToCSVOptions()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Type", "text/csv; charset="+csvCharset(opts))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", csvsink.FileName(name)))
		c.Status(http.StatusOK)
		if err := csvsink.WriteRelation(c.Writer, rel, opts, nil); err != nil {
			logger.FromContext(c.Request.Context()).Error("CSV response failed", "relation", name, "error", err)
		}
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("relation %q not found", name)})
}

func csvCharset(o csvsink.FormatOptions) string {
	if o.Encoding == "" {
		return "utf-8"
	}
	return o.Encoding
}
