package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/telemeet/conference-mapper/internal/mapstore"
	"github.com/telemeet/conference-mapper/internal/mapstore/model"
	"go.uber.org/zap"
)

// MapperHandler serves /conferenceMapper: resolving a conference
// identifier to its room code (creating the mapping on first sight),
// and resolving a room code back to its identifier.
type MapperHandler struct {
	store  mapstore.ConferenceStore
	logger *zap.Logger
}

// NewMapperHandler creates a new conference mapper handler.
func NewMapperHandler(store mapstore.ConferenceStore, logger *zap.Logger) *MapperHandler {
	return &MapperHandler{
		store:  store,
		logger: logger.Named("mapper"),
	}
}

// RegisterRoutes registers the routes for this handler.
func (h *MapperHandler) RegisterRoutes(router *mux.Router, logger *zap.Logger) {
	router.HandleFunc("/conferenceMapper", h.handleConferenceMapper).Methods("GET")
}

type mappingResponse struct {
	Message    string `json:"message"`
	ID         int64  `json:"id,omitempty"`
	Conference string `json:"conference,omitempty"`
}

func (h *MapperHandler) handleConferenceMapper(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()

	if conference := query.Get("conference"); conference != "" {
		code, err := h.store.FindByConference(req.Context(), conference)
		if err != nil {
			h.logger.Error("room allocation failed",
				zap.String("conference", conference), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, mappingResponse{
				Message:    "ID allocation failed",
				Conference: conference,
			})
			return
		}
		writeJSON(w, http.StatusOK, mappingResponse{
			Message:    "Successfully retrieved conference mapping",
			ID:         code,
			Conference: conference,
		})
		return
	}

	if raw := query.Get("id"); raw != "" {
		code, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || code <= 0 {
			writeJSON(w, http.StatusBadRequest, mappingResponse{Message: "Invalid ID"})
			return
		}

		conference, err := h.store.FindByCode(req.Context(), code)
		if errors.Is(err, model.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, mappingResponse{Message: "Room ID not found"})
			return
		}
		if err != nil {
			h.logger.Error("room lookup failed", zap.Int64("id", code), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, mappingResponse{Message: "Room ID lookup failed"})
			return
		}
		writeJSON(w, http.StatusOK, mappingResponse{
			Message:    "Successfully retrieved conference mapping",
			ID:         code,
			Conference: conference,
		})
		return
	}

	writeJSON(w, http.StatusBadRequest, mappingResponse{Message: "No conference or ID provided."})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
