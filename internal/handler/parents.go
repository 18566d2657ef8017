package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yacciiyao/yoo-growth-buddy/internal/profile"
	"github.com/yacciiyao/yoo-growth-buddy/internal/store"
	"github.com/yacciiyao/yoo-growth-buddy/pkg/utils"
)

// ParentsHandler 家长侧档案接口。
type ParentsHandler struct {
	profiles *profile.Service
}

func NewParentsHandler(profiles *profile.Service) *ParentsHandler {
	return &ParentsHandler{profiles: profiles}
}

// RegisterRoutes 注册家长相关路由。
func (h *ParentsHandler) RegisterRoutes(r chi.Router) {
	r.Post("/parents/setup", h.handleSetup)
	r.Get("/parents/children/{childID}", h.handleGetChild)
	r.Patch("/parents/children/{childID}", h.handleUpdateChild)
}

func (h *ParentsHandler) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req profile.SetupRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.profiles.Setup(r.Context(), req)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, resp)
}

func (h *ParentsHandler) handleGetChild(w http.ResponseWriter, r *http.Request) {
	childID, ok := parseIDParam(w, r, "childID")
	if !ok {
		return
	}

	p, err := h.profiles.GetChildProfile(r.Context(), childID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "child not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load child profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func (h *ParentsHandler) handleUpdateChild(w http.ResponseWriter, r *http.Request) {
	childID, ok := parseIDParam(w, r, "childID")
	if !ok {
		return
	}

	var req profile.UpdateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.profiles.UpdateChildProfile(r.Context(), childID, req)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "child not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to update child profile")
		return
	}
	utils.RespondJSON(w, http.StatusOK, p)
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
