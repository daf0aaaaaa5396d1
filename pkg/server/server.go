// Package server exposes the Slack interaction webhook and the operational endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/zoff-tech/reviewbot/schema"
)

const maxBodyBytes = 1 << 20

// InboxEnqueuer stores a verified interaction payload for asynchronous processing.
type InboxEnqueuer interface {
	Enqueue(ctx context.Context, t schema.InteractionType, payload string) (bool, error)
}

// Pinger reports database reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	signingSecret string
	inbox         InboxEnqueuer
	db            Pinger
	logger        *zap.Logger
}

func New(signingSecret string, inbox InboxEnqueuer, db Pinger, logger *zap.Logger) *Server {
	return &Server{
		signingSecret: signingSecret,
		inbox:         inbox,
		db:            db,
		logger:        logger.Named("server"),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/slack/interactions", s.handleInteraction)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleInteraction only verifies and stores the payload. Handlers run from the inbox.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	if err := s.verify(r.Header, body); err != nil {
		logger.Warn("rejected interaction with bad signature", zap.Error(err))
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	payload := form.Get("payload")
	if payload == "" {
		http.Error(w, "missing payload", http.StatusBadRequest)
		return
	}

	var head struct {
		Type slack.InteractionType `json:"type"`
	}
	if err := json.Unmarshal([]byte(payload), &head); err != nil {
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	var t schema.InteractionType
	switch head.Type {
	case slack.InteractionTypeBlockActions:
		t = schema.InteractionBlockActions
	case slack.InteractionTypeViewSubmission:
		t = schema.InteractionViewSubmission
	default:
		logger.Debug("ignoring interaction type", zap.String("type", string(head.Type)))
		w.WriteHeader(http.StatusOK)
		return
	}

	inserted, err := s.inbox.Enqueue(r.Context(), t, payload)
	if err != nil {
		logger.Error("failed to enqueue interaction", zap.String("type", string(t)), zap.Error(err))
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}
	if !inserted {
		logger.Debug("duplicate interaction", zap.String("type", string(t)))
	}

	w.WriteHeader(http.StatusOK)
}

func (s *Server) verify(header http.Header, body []byte) error {
	sv, err := slack.NewSecretsVerifier(header, s.signingSecret)
	if err != nil {
		return err
	}
	if _, err := sv.Write(body); err != nil {
		return err
	}
	if err := sv.Ensure(); err != nil {
		return fmt.Errorf("signature mismatch: %w", err)
	}
	return nil
}
