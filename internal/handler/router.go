package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yacciiyao/yoo-growth-buddy/internal/profile"
	"github.com/yacciiyao/yoo-growth-buddy/internal/storage"
	"github.com/yacciiyao/yoo-growth-buddy/internal/store"
	"github.com/yacciiyao/yoo-growth-buddy/internal/voice"
	"github.com/yacciiyao/yoo-growth-buddy/pkg/utils"
)

// NewRouter 组装 HTTP 路由：家长档案接口 + 历史查询接口 + 运维端点。
func NewRouter(profileSvc *profile.Service, voiceSvc *voice.Service, st store.Store, blobs storage.BlobStore) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	parentsHandler := NewParentsHandler(profileSvc)
	historyHandler := NewHistoryHandler(voiceSvc, st, blobs)

	r.Route("/api", func(api chi.Router) {
		parentsHandler.RegisterRoutes(api)
		historyHandler.RegisterRoutes(api)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
