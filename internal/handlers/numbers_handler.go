package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PhoneNumbersHandler serves the static dial-in number table on
// /phoneNumberList. The table is pure configuration; there is no logic
// behind it.
type PhoneNumbersHandler struct {
	numbers map[string][]string
}

// NewPhoneNumbersHandler creates a handler serving the given
// region-to-numbers table.
func NewPhoneNumbersHandler(numbers map[string][]string) *PhoneNumbersHandler {
	return &PhoneNumbersHandler{numbers: numbers}
}

// RegisterRoutes registers the routes for this handler.
func (h *PhoneNumbersHandler) RegisterRoutes(router *mux.Router, logger *zap.Logger) {
	router.HandleFunc("/phoneNumberList", h.handleList).Methods("GET")
}

type phoneNumbersResponse struct {
	Message        string              `json:"message"`
	Numbers        map[string][]string `json:"numbers"`
	NumbersEnabled bool                `json:"numbersEnabled"`
}

func (h *PhoneNumbersHandler) handleList(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, phoneNumbersResponse{
		Message:        "Phone numbers available.",
		Numbers:        h.numbers,
		NumbersEnabled: true,
	})
}
