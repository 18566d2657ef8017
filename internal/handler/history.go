package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yacciiyao/yoo-growth-buddy/internal/domain"
	"github.com/yacciiyao/yoo-growth-buddy/internal/storage"
	"github.com/yacciiyao/yoo-growth-buddy/internal/store"
	"github.com/yacciiyao/yoo-growth-buddy/internal/voice"
	"github.com/yacciiyao/yoo-growth-buddy/pkg/utils"
)

// HistoryHandler 家长查看聊天历史的接口。
type HistoryHandler struct {
	voiceSvc *voice.Service
	store    store.Store
	blobs    storage.BlobStore
}

func NewHistoryHandler(voiceSvc *voice.Service, st store.Store, blobs storage.BlobStore) *HistoryHandler {
	return &HistoryHandler{voiceSvc: voiceSvc, store: st, blobs: blobs}
}

// RegisterRoutes 注册历史查询路由。
func (h *HistoryHandler) RegisterRoutes(r chi.Router) {
	r.Get("/history/children/{childID}/sessions", h.handleListSessions)
	r.Get("/history/sessions/{sessionID}/turns", h.handleListTurns)
	r.Post("/history/sessions/{sessionID}/end", h.handleEndSession)
}

// SessionSummary 会话摘要视图。
type SessionSummary struct {
	SessionID int64  `json:"sessionId"`
	Title     string `json:"title"`
	StartedAt int64  `json:"startedAt"`
	EndedAt   int64  `json:"endedAt,omitempty"`
	TurnCount int    `json:"turnCount"`
	HasRisk   bool   `json:"hasRisk"`
}

// TurnView 轮次视图，音频给出可访问的 URL。
type TurnView struct {
	TurnID        int64  `json:"turnId"`
	Seq           int    `json:"seq"`
	UserText      string `json:"userText"`
	ReplyText     string `json:"replyText"`
	UserAudioURL  string `json:"userAudioUrl,omitempty"`
	ReplyAudioURL string `json:"replyAudioUrl,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
	RiskFlag      bool   `json:"riskFlag"`
	RiskSource    string `json:"riskSource,omitempty"`
}

func (h *HistoryHandler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	childID, ok := parseIDParam(w, r, "childID")
	if !ok {
		return
	}

	if _, err := h.store.FindChildByID(r.Context(), childID); errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "child not found")
		return
	} else if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load child")
		return
	}

	sessions, err := h.store.ListSessionsByChild(r.Context(), childID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		count, err := h.store.CountTurns(r.Context(), sess.ID)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to count turns")
			return
		}
		hasRisk, err := h.store.SessionHasRisk(r.Context(), sess.ID)
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to check session risk")
			return
		}
		summaries = append(summaries, SessionSummary{
			SessionID: sess.ID,
			Title:     sess.Title,
			StartedAt: sess.StartedAt,
			EndedAt:   sess.EndedAt,
			TurnCount: count,
			HasRisk:   hasRisk,
		})
	}
	utils.RespondJSON(w, http.StatusOK, summaries)
}

func (h *HistoryHandler) handleListTurns(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseIDParam(w, r, "sessionID")
	if !ok {
		return
	}

	session, err := h.store.GetSession(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	turns, err := h.store.ListTurns(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list turns")
		return
	}

	views := make([]TurnView, 0, len(turns))
	for _, t := range turns {
		view := TurnView{
			TurnID:     t.ID,
			Seq:        t.Seq,
			UserText:   t.UserText,
			ReplyText:  t.ReplyText,
			CreatedAt:  t.CreatedAt,
			RiskFlag:   t.RiskFlag,
			RiskSource: t.RiskSource,
		}
		if t.UserAudioKey != "" {
			view.UserAudioURL = h.blobs.URLFor(t.UserAudioKey)
		}
		if t.ReplyAudioKey != "" {
			view.ReplyAudioURL = h.blobs.URLFor(t.ReplyAudioKey)
		}
		views = append(views, view)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"sessionId": session.ID,
		"title":     session.Title,
		"startedAt": session.StartedAt,
		"endedAt":   session.EndedAt,
		"turns":     views,
	})
}

func (h *HistoryHandler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := parseIDParam(w, r, "sessionID")
	if !ok {
		return
	}

	session, err := h.voiceSvc.EndSession(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to end session")
		return
	}
	utils.RespondJSON(w, http.StatusOK, sessionToJSON(session))
}

func sessionToJSON(s *domain.ChatSession) map[string]any {
	return map[string]any{
		"sessionId": s.ID,
		"childId":   s.ChildID,
		"title":     s.Title,
		"startedAt": s.StartedAt,
		"endedAt":   s.EndedAt,
	}
}
