package matching

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/swellmates/swellmates-backend/internal/common/utils"
)

type Handler struct {
	service  Service
	validate *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) RunMatch(w http.ResponseWriter, r *http.Request) {
	var dto RunMatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := h.validate.Struct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.RunMatch(r.Context(), &dto)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingDestinationCountry), errors.Is(err, ErrChatIDRequired):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRequesterNotFound):
			utils.RespondWithError(w, http.StatusNotFound, err.Error())
		case IsRetryable(err):
			utils.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to run match")
		}
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetChatMatches(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatId"]

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}

	resp, err := h.service.GetMatchesForChat(r.Context(), chatID, limit, offset)
	if err != nil {
		if errors.Is(err, ErrChatIDRequired) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		if IsRetryable(err) {
			utils.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get matches")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *Handler) ResetChat(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatId"]

	if err := h.service.ResetChat(r.Context(), chatID); err != nil {
		if errors.Is(err, ErrChatIDRequired) {
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to reset chat matches")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
