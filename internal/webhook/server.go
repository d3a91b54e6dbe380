// Copyright 2025 SirSeer, LLC
//
// Licensed under the Business Source License 1.1 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://mariadb.com/bsl11
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// Handler receives a verified payload.
type Handler func(ctx context.Context, header http.Header, body []byte) error

// Config configures a Server.
type Config struct {
	Addr            string
	Secret          string
	ExtraHeaders    []string
	ShutdownTimeout time.Duration
	// OnEvent is called for every verified request. Nil only logs.
	OnEvent Handler
}

// Server serves POST /webhook.
type Server struct {
	router *chi.Mux
	logger *zerolog.Logger
	server *http.Server
	cfg    Config
}

// NewServer wires the router and its middleware.
func NewServer(logger zerolog.Logger, cfg Config) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{logger: &logger, cfg: cfg}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(&logger))
	router.Use(middleware.Recoverer)
	router.Post("/webhook", s.handleWebhook)

	s.router = router
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("starting webhook server")
		serverErrors <- s.server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info().Msg("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("graceful shutdown failed")
			return s.server.Close()
		}
		return nil
	}
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return
	}

	ok, err := VerifyRequest(s.cfg.Secret, r.Header, body, s.cfg.ExtraHeaders...)
	if err != nil {
		logger.Warn().Err(err).Msg("rejected webhook")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !ok {
		logger.Warn().Msg("webhook signature mismatch")
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "invalid signature"})
		return
	}

	if s.cfg.OnEvent != nil {
		if err := s.cfg.OnEvent(r.Context(), r.Header, body); err != nil {
			logger.Error().Err(err).Msg("webhook handler failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "handler failed"})
			return
		}
	}
	logger.Info().Int("bytes", len(body)).Msg("verified webhook")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func requestLogger(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			reqLogger := logger.With().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", req.RemoteAddr).
				Str("request_id", middleware.GetReqID(req.Context())).
				Logger()
			next.ServeHTTP(w, req.WithContext(reqLogger.WithContext(req.Context())))
		})
	}
}
