package command

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/internal/ranking"
	"github.com/ovaphlow/pitchfork/service-hackbot-go/pkg/utilities"
)

// maxCommandBody caps a command request body.
const maxCommandBody = 64 << 10

// Handler exposes the command table and the read-only ranking queries over HTTP.
type Handler struct {
	table   *Table
	ranking *ranking.Service
	logger  *zap.SugaredLogger
}

func NewHandler(table *Table, rk *ranking.Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{table: table, ranking: rk, logger: logger}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason Reason `json:"reason"`
}

// Run dispatches one command for the authenticated caller.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.Caller(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Reason: ReasonForbidden})
		return
	}
	var req Request
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid command payload", "err", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload too large", Reason: ReasonBadArgument})
			return
		}
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payload", Reason: ReasonBadArgument})
		return
	}
	req.Caller = caller
	reply, err := h.table.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, req.Name, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reply)
}

// Leaderboard serves GET ?page=N.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	page := 1
	if v := r.URL.Query().Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "page must be an integer", Reason: ReasonBadArgument})
			return
		}
		page = n
	}
	entries, err := h.ranking.Board(r.Context(), page)
	if err != nil {
		h.writeError(w, "top", err)
		return
	}
	h.writeJSON(w, http.StatusOK, BoardReply{Page: page, Entries: entries})
}

// Participant serves GET /participants/{id}.
func (h *Handler) Participant(w http.ResponseWriter, r *http.Request) {
	id, err := utilities.ParseUserID(r.PathValue("id"))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Reason: ReasonBadArgument})
		return
	}
	entry, err := h.ranking.Profile(r.Context(), id)
	if err != nil {
		h.writeError(w, "profile", err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) writeError(w http.ResponseWriter, name string, err error) {
	reason := ReasonFor(err)
	if reason.Expected() {
		h.logger.Debugw("command failed", "command", name, "reason", reason, "err", err)
	} else {
		h.logger.Warnw("command failed", "command", name, "reason", reason, "err", err)
	}
	msg := err.Error()
	if !reason.Expected() {
		msg = "something went wrong, try again later"
	}
	h.writeJSON(w, statusFor(reason), ErrorResponse{Error: msg, Reason: reason})
}

func statusFor(r Reason) int {
	switch r {
	case ReasonNotRegistered, ReasonUnknownCode, ReasonNotFoundTarget, ReasonUnknownCommand:
		return http.StatusNotFound
	case ReasonAlreadyRedeemed:
		return http.StatusConflict
	case ReasonForbidden:
		return http.StatusForbidden
	case ReasonBadArgument:
		return http.StatusBadRequest
	case ReasonOutOfRange:
		return http.StatusUnprocessableEntity
	case ReasonNotConfigured:
		return http.StatusNotImplemented
	case ReasonStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
