package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/rivalgrid/tictactoe-arena/internal/entity"
)

type statsReader interface {
	Summary(ctx context.Context) (*entity.StatsSummary, error)
}

type Server struct {
	logger *slog.Logger
	stats  statsReader
}

func New(logger *slog.Logger, stats statsReader) *Server {
	return &Server{
		logger: logger,
		stats:  stats,
	}
}

func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", that.pingHandler)
	mux.HandleFunc("/stats", that.statsHandler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

func (that *Server) pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "statsHandler")

	summary, err := that.stats.Summary(r.Context())
	if err != nil {
		log.Error("failed to read stats summary", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(summary); err != nil {
		log.Error("failed to encode stats summary", "error", err)
	}
}
