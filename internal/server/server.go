// Package server exposes the orchestration core over REST, plus the SSE
// stream dashboard observers subscribe to.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alex-devdone/mission-control-sub000/internal/capacity"
	"github.com/alex-devdone/mission-control-sub000/internal/dispatch"
	"github.com/alex-devdone/mission-control-sub000/internal/notify"
	"github.com/alex-devdone/mission-control-sub000/internal/planning"
)

// Deps wires the handler dependencies.
type Deps struct {
	DB         *gorm.DB
	Notifier   *notify.Notifier
	Dispatcher *dispatch.Service
	Planner    *planning.Engine
	Monitor    *capacity.Monitor
}

// StartOpts holds configuration for the HTTP server.
type StartOpts struct {
	Deps         Deps
	Port         int
	AllowOrigins []string
	Out          io.Writer
}

// Start launches the REST server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Deps.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	router := NewRouter(opts.Deps, opts.AllowOrigins)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Mission Control API listening on :%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// NewRouter builds the gin engine with all routes registered. Split out
// from Start for tests.
func NewRouter(deps Deps, allowOrigins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if len(allowOrigins) > 0 {
		corsConfig.AllowOrigins = allowOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization")
	router.Use(cors.New(corsConfig))

	registerRoutes(router, deps)
	return router
}
