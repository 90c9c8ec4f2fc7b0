package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"gateway-monitor/internal/audit"
	"gateway-monitor/internal/auth"
	"gateway-monitor/internal/monitoring/application"
	monitoring "gateway-monitor/internal/monitoring/domain"
	"gateway-monitor/internal/monitoring/interfaces"
)

// Handler provides monitoring HTTP endpoints.
type Handler struct {
	service *application.Service
	auditor audit.Logger
}

// NewHandler constructs a handler. The auditor may be nil.
func NewHandler(service *application.Service, auditor audit.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("monitoring handler: nil service")
	}
	return &Handler{service: service, auditor: auditor}, nil
}

// ServeHTTP handles /api/v1 monitoring routes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/subscriptions":
		h.handleSubscriptions(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/users/") && strings.HasSuffix(r.URL.Path, "/threshold"):
		h.handleThreshold(w, r)
	case r.URL.Path == "/api/v1/status":
		h.handleStatus(w, r)
	case r.URL.Path == "/api/v1/stats":
		h.handleStats(w, r)
	case r.URL.Path == "/api/v1/exports/stats.xlsx":
		h.handleExportXLSX(w, r)
	case r.URL.Path == "/api/v1/exports/stats.pdf":
		h.handleExportPDF(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type subscribeRequest struct {
	UserID    int64  `json:"user_id"`
	GatewayID string `json:"gateway_id"`
}

type subscribeResponse struct {
	Subscribed bool               `json:"subscribed"`
	Gateway    monitoring.Gateway `json:"gateway"`
}

func (h *Handler) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID, err := parseUserIDQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		subs, err := h.service.Subscriptions(r.Context(), userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, subs)

	case http.MethodPost:
		var req subscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.UserID == 0 || req.GatewayID == "" {
			http.Error(w, "user_id and gateway_id are required", http.StatusBadRequest)
			return
		}
		gateway, err := h.service.Subscribe(r.Context(), req.UserID, req.GatewayID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		h.logAudit(r, "subscribe", "subscription", req.GatewayID, req)
		writeJSON(w, http.StatusCreated, subscribeResponse{Subscribed: true, Gateway: gateway})

	case http.MethodDelete:
		userID, err := parseUserIDQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gatewayID := r.URL.Query().Get("gateway_id")
		if gatewayID == "" {
			http.Error(w, "gateway_id is required", http.StatusBadRequest)
			return
		}
		if err := h.service.Unsubscribe(r.Context(), userID, gatewayID); err != nil {
			respondServiceError(w, err)
			return
		}
		h.logAudit(r, "unsubscribe", "subscription", gatewayID, subscribeRequest{UserID: userID, GatewayID: gatewayID})
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type thresholdRequest struct {
	Minutes int `json:"minutes"`
}

type thresholdResponse struct {
	UserID  int64 `json:"user_id"`
	Minutes int   `json:"minutes"`
}

func (h *Handler) handleThreshold(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "threshold" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID == 0 {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		minutes, err := h.service.Threshold(r.Context(), userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, thresholdResponse{UserID: userID, Minutes: minutes})

	case http.MethodPut:
		var req thresholdRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := h.service.SetThreshold(r.Context(), userID, req.Minutes); err != nil {
			respondServiceError(w, err)
			return
		}
		h.logAudit(r, "set_threshold", "user_settings", parts[0], req)
		writeJSON(w, http.StatusOK, thresholdResponse{UserID: userID, Minutes: req.Minutes})

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	userID, err := parseUserIDQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	statuses, err := h.service.Status(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := interfaces.BuildStatsXLSX(stats, h.service.GeneratedAt())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="stats.xlsx"`)
	_, _ = w.Write(data)
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := interfaces.BuildStatsPDF(stats, h.service.GeneratedAt())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="stats.pdf"`)
	_, _ = w.Write(data)
}

func (h *Handler) logAudit(r *http.Request, action, resourceType, resourceID string, payload any) {
	if h.auditor == nil {
		return
	}
	metadata, _ := json.Marshal(payload)
	entry := audit.Entry{
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     metadata,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	_ = h.auditor.Log(r.Context(), entry)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, monitoring.ErrAlreadySubscribed):
		http.Error(w, "already subscribed", http.StatusConflict)
	case errors.Is(err, monitoring.ErrUnknownGateway):
		http.Error(w, "unknown gateway", http.StatusNotFound)
	case errors.Is(err, monitoring.ErrNotSubscribed):
		http.Error(w, "not subscribed", http.StatusNotFound)
	case errors.Is(err, monitoring.ErrThresholdOutOfRange):
		http.Error(w, "threshold must be between 1 and 60 minutes", http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func parseUserIDQuery(r *http.Request) (int64, error) {
	value := r.URL.Query().Get("user_id")
	if value == "" {
		return 0, errors.New("user_id is required")
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil || userID == 0 {
		return 0, errors.New("user_id must be a non-zero integer")
	}
	return userID, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
