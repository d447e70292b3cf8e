package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/repodoc/config"
	httpx "github.com/target/repodoc/internal/http"
	"github.com/target/repodoc/internal/service"
	"golang.org/x/sync/errgroup"
)

const shutdownWaitTimeout = 10 * time.Second

// NewHTTPHandler builds the ingress router for rt.
func NewHTTPHandler(rt *Runtime) http.Handler {
	cfg := rt.Config
	return httpx.NewRouter(httpx.RouterServices{
		Webhooks: &httpx.WebhookHandlers{
			Queue:               rt.Queue,
			TargetDir:           cfg.Pipeline.TargetDir,
			Endpoint:            cfg.Webhook.ArchiveEndpoint,
			AllowEndpointHeader: cfg.Webhook.AllowEndpointHeader,
			RefExpression:       rt.RefExpression,
			Verifier:            httpx.NewSignatureVerifier(cfg.Webhook.Secret),
			EnforceSignature:    cfg.Webhook.EnforceSignature,
			MaxBodyBytes:        cfg.HTTP.MaxBodyBytes,
			Logger:              rt.Logger,
		},
		Status: &httpx.StatusHandlers{Queue: rt.Queue},
		Logger: rt.Logger,
	})
}

// NewHTTPServer applies the configured address and timeouts to handler.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	addr := cfg.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":5000"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// RunServer serves ingress and runs the worker until ctx is cancelled, then stops
// accepting requests, closes the queue and waits for the job in progress.
func RunServer(ctx context.Context, rt *Runtime, ln net.Listener) error {
	if rt == nil {
		return errors.New("runtime is required")
	}
	logger := rt.Logger
	w, err := rt.NewWorker(nil)
	if err != nil {
		return err
	}
	server := NewHTTPServer(rt.Config.HTTP, NewHTTPHandler(rt))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		var serveErr error
		if ln != nil {
			serveErr = server.Serve(ln)
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			return serveErr
		}
		return nil
	})
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return shutdownHTTPServer(server, rt.Queue, logger)
	})
	return g.Wait()
}

// shutdownHTTPServer stops ingress before the queue closes so no accepted job is lost to a closed queue.
func shutdownHTTPServer(server *http.Server, queue *service.JobQueue, logger *slog.Logger) error {
	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if queue != nil {
		queue.Close()
	}
	if err != nil {
		return err
	}
	logger.Info("HTTP server stopped")
	return nil
}
