package matching

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-matchmaker/internal/auth"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/logging"
	"github.com/imadgeboyega/kiekky-matchmaker/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Discover(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	params := DiscoverParams{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid page_size")
			return
		}
		params.PageSize = size
	}
	if err := utils.ValidateStruct(params); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.service.GetPotentialMatches(r.Context(), userID, params.PageSize, params.Cursor)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to load potential matches")
		return
	}

	utils.RespondWithData(w, http.StatusOK, page)
}

func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	userID, targetID, ok := h.pairFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.LikeUser(r.Context(), userID, targetID)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to like user")
		return
	}

	utils.RespondWithData(w, http.StatusOK, LikeResponse{
		IsNewMutualMatch: result.IsNewMutualMatch,
		Match:            result.Match,
	})
}

func (h *Handler) Skip(w http.ResponseWriter, r *http.Request) {
	userID, targetID, ok := h.pairFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.SkipUser(r.Context(), userID, targetID); err != nil {
		h.respondWithServiceError(w, r, err, "Failed to skip user")
		return
	}

	utils.RespondWithMessage(w, http.StatusOK, "User skipped")
}

func (h *Handler) Dislike(w http.ResponseWriter, r *http.Request) {
	userID, targetID, ok := h.pairFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.DislikeUser(r.Context(), userID, targetID); err != nil {
		h.respondWithServiceError(w, r, err, "Failed to dislike user")
		return
	}

	utils.RespondWithMessage(w, http.StatusOK, "User disliked")
}

func (h *Handler) Unmatch(w http.ResponseWriter, r *http.Request) {
	userID, targetID, ok := h.pairFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.UnmatchUser(r.Context(), userID, targetID); err != nil {
		h.respondWithServiceError(w, r, err, "Failed to unmatch user")
		return
	}

	utils.RespondWithMessage(w, http.StatusOK, "User unmatched")
}

func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	matches, err := h.service.GetMatches(r.Context(), userID)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to get matches")
		return
	}

	utils.RespondWithData(w, http.StatusOK, newMatchListResponse(matches))
}

func (h *Handler) GetReceivedLikes(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	likes, err := h.service.GetReceivedLikes(r.Context(), userID)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to get received likes")
		return
	}

	utils.RespondWithData(w, http.StatusOK, newMatchListResponse(likes))
}

func (h *Handler) pairFromRequest(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return 0, 0, false
	}

	targetID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || targetID <= 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return 0, 0, false
	}

	return userID, targetID, true
}

// respondWithServiceError maps engine errors to HTTP status codes.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrValidation):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrTransientStore):
		logging.Ctx(r.Context()).Error().Err(err).Msg(fallback)
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Service temporarily unavailable, please retry")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg(fallback)
		utils.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}
