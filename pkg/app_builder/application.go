package appbuilder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"idp-node/pkg/logger"
	"idp-node/pkg/rabbitmq"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

type Application struct {
	Logger         *logger.Logger
	Addr           string
	Conn           *amqp.Connection
	WorkerServices []rabbitmq.WorkerService
	Engine         *gin.Engine

	closers []func()
}

type ApplicationInterface interface {
	Start()
	Run(ctx context.Context) error
}

// Start runs the application until SIGINT or SIGTERM.
func (a *Application) Start() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		a.Logger.Error(err, "Application stopped with error")
		os.Exit(1)
	}
	a.Logger.Info("Application stopped")
}

// Run starts every worker service and the REST API. It returns when ctx is
// cancelled or any of them fails, after the rest have shut down.
func (a *Application) Run(ctx context.Context) error {
	a.Logger.Info("Starting Application runtime...")
	defer a.close()

	group, ctx := errgroup.WithContext(ctx)
	for _, ws := range a.WorkerServices {
		a.Logger.Infof("Starting %s WorkerService", ws.GetServiceName())
		group.Go(func() error {
			if err := ws.StartService(ctx); err != nil {
				return fmt.Errorf("%s: %w", ws.GetServiceName(), err)
			}
			a.Logger.Infof("%s WorkerService stopped", ws.GetServiceName())
			return nil
		})
	}

	if a.Engine != nil {
		server := &http.Server{
			Addr:              a.Addr,
			Handler:           a.Engine,
			ReadHeaderTimeout: 10 * time.Second,
		}
		group.Go(func() error {
			a.Logger.Infof("REST API is now listening on: %s", a.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("rest api: %w", err)
			}
			return nil
		})
		group.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return group.Wait()
}

func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	if a.Conn != nil && !a.Conn.IsClosed() {
		if err := a.Conn.Close(); err != nil {
			a.Logger.Error(err, "Failed to close Rabbitmq connection")
		}
	}
}
