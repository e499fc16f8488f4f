package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krau/agrotagger/config"
	"github.com/krau/agrotagger/onnx"
	"github.com/krau/agrotagger/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the classification and raster HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(parent context.Context) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	slog.Info("Starting AgroTagger")

	if err := onnx.Init(); err != nil {
		return err
	}
	defer onnx.Destroy()

	cfg := config.C()
	app, err := server.Init(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	gin.SetMode(gin.ReleaseMode)
	r := server.NewRouter(server.Options{
		Token:          cfg.Token,
		MaxUploadBytes: cfg.MaxUploadMB << 20,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}, app.Endpoints, app.Layers)

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(r, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Listening on", slog.String("address", addr), slog.Int("layers", len(app.Layers.Names())))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}
