// Package server exposes the gateway over HTTP: a GraphQL endpoint, its IDE
// page, an XML sitemap, a health check and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/morikuni/failure/v2"
	"github.com/rendini/mashup/api/jsonvalue"
	"github.com/rendini/mashup/api/model"
	"github.com/rendini/mashup/api/normalize"
	"github.com/rendini/mashup/log"
	"github.com/rendini/mashup/metrics"
	"github.com/samber/lo"
)

// Options configures a Server
type Options struct {
	Port        int
	CORSOrigins []string
	Metrics     *metrics.Metrics
	Debug       bool
}

// Server serves the gateway over HTTP
type Server struct {
	router *gin.Engine
	server *http.Server
}

// NewServer wires every route to facade
func NewServer(opts Options, facade Facade) (*Server, error) {
	schema, err := NewSchema(facade)
	if err != nil {
		return nil, failure.Wrap(err)
	}

	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(opts.Metrics))

	if len(opts.CORSOrigins) > 0 {
		cfg := cors.Config{
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
			ExposeHeaders: []string{"Content-Length", requestIDHeader},
			MaxAge:        12 * time.Hour,
		}
		if lo.Contains(opts.CORSOrigins, "*") {
			cfg.AllowAllOrigins = true
		} else {
			cfg.AllowOrigins = opts.CORSOrigins
		}
		router.Use(cors.New(cfg))
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/graphiql")
	})
	router.GET("/graphiql", gin.WrapH(playground.Handler("rendini", "/graphql")))

	gql := graphqlHandler(schema)
	router.GET("/graphql", gql)
	router.POST("/graphql", gql)

	router.GET("/sitemap.xml", sitemapHandler(facade))

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	return &Server{
		router: router,
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", opts.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}, nil
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port until Shutdown is called
func (s *Server) Start() error {
	log.Info("Server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return failure.Wrap(err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func sitemapHandler(facade Facade) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := model.SitemapFilter{
			Backend: c.Query("backend"),
		}

		if since := c.Query("since"); since != "" {
			t, err := normalize.ParseTimestamp(jsonvalue.String(since))
			if err != nil {
				c.String(http.StatusBadRequest, "invalid since: %s", since)
				return
			}
			filter.Since = &t
		}
		if variants := c.Query("variants"); variants != "" {
			v, err := strconv.ParseBool(variants)
			if err != nil {
				c.String(http.StatusBadRequest, "invalid variants: %s", variants)
				return
			}
			filter.IncludeVariants = v
		}

		doc, err := facade.RenderSitemap(c.Request.Context(), filter)
		if err != nil {
			log.FromContext(c.Request.Context()).Error("Sitemap failed", "error", err)
			c.String(http.StatusServiceUnavailable, "sitemap unavailable")
			return
		}
		c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(doc.XML))
	}
}
