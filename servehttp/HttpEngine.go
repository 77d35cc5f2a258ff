package servehttp

import (
	"context"
	"leica/bizerror"
	"leica/common"
	"leica/domain/order"
	"leica/domain/resource"
	"leica/indices"
	"leica/indices/search"
	"leica/infra/tracing"
	"leica/session"
	"leica/sessions"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var ShutdownTimeout = 3 * time.Second

// BuildEngine assembles the REST surface. Search routes are mounted only when
// a search cluster is configured.
func BuildEngine(withSearch bool) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Logger(), tracing.TracingIngress(), bizerror.ErrorHandling())
	engine.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, common.ServiceName)
	})

	auth := session.SimpleAuthFilter()
	sessions.RegisterSessionsRestAPI(engine, auth)
	order.RegisterOrdersRestAPI(engine, auth)
	resource.RegisterResourcesRestAPI(engine, auth)
	if withSearch {
		indices.RegisterIndicesRestAPI(engine, auth)
		search.RegisterOrderSearchRestAPI(engine, auth)
	}
	return engine
}

// StartHTTPServer serves until SIGINT or SIGTERM, then drains in-flight
// requests for ShutdownTimeout.
func StartHTTPServer(engine *gin.Engine, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	// kill (no param) default send syscall.SIGTERM
	// kill -2 send syscall.SIGINT
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}
	logrus.Infof("[QUIT] shutdown signal has been received, the service will exit in %s.", ShutdownTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logrus.Info("[QUIT] http server is shutdown gracefully, new request will be rejected.")
	return nil
}
