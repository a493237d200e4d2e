package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ducminhle1904/gap-atr-backtest/internal/logger"
	"go.uber.org/zap"
)

// Mux routes /metrics and /health to the recorder
func (r *Recorder) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	mux.Handle("/health", r.health)
	return mux
}

// Serve exposes the recorder on addr until ctx is cancelled
func (r *Recorder) Serve(ctx context.Context, addr string, log *zap.Logger) error {
	log = logger.OrNop(log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
