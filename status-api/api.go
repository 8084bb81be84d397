package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"mentorlounge/shared/auth"
	"mentorlounge/shared/message"
)

// Publisher is the producer side of the plan topics.
type Publisher interface {
	SendMessage(topic string, key string, value interface{}) error
}

type StatusAPI struct {
	store     PlanStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewStatusAPI(store PlanStore, publisher Publisher, logger *slog.Logger) *StatusAPI {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusAPI{store: store, publisher: publisher, logger: logger, now: time.Now}
}

// Router wires the plan-build routes. A nil signer disables authentication.
func (api *StatusAPI) Router(signer *auth.Signer) *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware)
	if signer != nil {
		r.Use(signer.Middleware)
	}

	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.HandleFunc("/api/plan-builds", api.ListPlanBuilds).Methods(http.MethodGet)
	r.HandleFunc("/api/plan-builds", api.StartPlanBuild).Methods(http.MethodPost)
	r.HandleFunc("/api/plan-builds/{sessionId}", api.GetPlanBuild).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (api *StatusAPI) GetPlanBuild(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	build, err := api.store.Get(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Plan build not found", http.StatusNotFound)
			return
		}
		api.logger.Error("failed to retrieve plan build", "session_id", sessionID, "error", err)
		http.Error(w, "Failed to retrieve plan build", http.StatusInternalServerError)
		return
	}

	events, err := api.store.Events(r.Context(), sessionID)
	if err != nil {
		api.logger.Warn("failed to get events", "session_id", sessionID, "error", err)
	}

	writeJSON(w, http.StatusOK, message.PlanBuildStatusResponse{
		SessionID:   build.SessionID,
		Status:      build.Status,
		Message:     build.Message,
		ResultID:    build.ResultID,
		ResultTitle: build.ResultTitle,
		Events:      events,
		UpdatedAt:   build.UpdatedAt,
	})
}

func (api *StatusAPI) ListPlanBuilds(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	builds, err := api.store.Recent(r.Context(), limit)
	if err != nil {
		api.logger.Error("failed to list plan builds", "error", err)
		builds = []*PlanBuild{}
	}
	writeJSON(w, http.StatusOK, builds)
}

func (api *StatusAPI) StartPlanBuild(w http.ResponseWriter, r *http.Request) {
	var req message.StartPlanBuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		http.Error(w, "Topic is required", http.StatusBadRequest)
		return
	}

	userID := ""
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		userID = claims.Subject
	}

	now := api.now().UTC()
	build := PlanBuild{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Topic:     req.Topic,
		Goal:      req.Goal,
		Status:    "queued",
		Message:   "Plan build queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := api.store.Create(r.Context(), build); err != nil {
		api.logger.Error("failed to store plan build", "session_id", build.SessionID, "error", err)
		http.Error(w, "Failed to start plan build", http.StatusInternalServerError)
		return
	}

	if api.publisher != nil {
		request := message.PlanRequestMessage{
			SessionID: build.SessionID,
			UserID:    userID,
			Topic:     build.Topic,
			Goal:      build.Goal,
			CreatedAt: now,
		}
		if err := api.publisher.SendMessage(message.TopicPlanRequests, build.SessionID, request); err != nil {
			api.logger.Error("failed to publish plan request", "session_id", build.SessionID, "error", err)
			http.Error(w, "Failed to start plan build", http.StatusInternalServerError)
			return
		}
		queued := message.PlanStatusMessage{SessionID: build.SessionID, Status: build.Status, Message: build.Message, UpdatedAt: now}
		if err := api.publisher.SendMessage(message.TopicPlanStatus, build.SessionID, queued); err != nil {
			api.logger.Warn("failed to publish queued status", "session_id", build.SessionID, "error", err)
		}
	}

	api.logger.Info("plan build started", "session_id", build.SessionID, "user_id", userID)
	writeJSON(w, http.StatusAccepted, message.StartPlanBuildResponse{
		SessionID: build.SessionID,
		Message:   build.Message,
	})
}

// ProcessEvent folds one plan event from the brokers into the store.
func (api *StatusAPI) ProcessEvent(ctx context.Context, payload []byte) error {
	ev, err := message.Decode(payload)
	if err != nil {
		return err
	}

	switch e := ev.(type) {
	case message.PlanStatusMessage:
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = api.now().UTC()
		}
		return api.store.UpdateStatus(ctx, e)
	case message.PlanProgressMessage:
		if e.Timestamp.IsZero() {
			e.Timestamp = api.now().UTC()
		}
		return api.store.AppendEvent(ctx, e)
	case message.PlanCompletionMessage:
		if e.CompletedAt.IsZero() {
			e.CompletedAt = api.now().UTC()
		}
		api.logger.Info("plan build completed", "session_id", e.SessionID, "status", e.Status, "result_id", e.ResultID)
		return api.store.Complete(ctx, e)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
