package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/parley-im/parley/internal/core/service"
)

type Handler struct {
	Gateway *service.Gateway

	upgrader websocket.Upgrader
}

func NewHandler(gateway *service.Gateway, allowedOrigin string) *Handler {
	return &Handler{
		Gateway:  gateway,
		upgrader: newUpgrader(allowedOrigin),
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Healthz)
	r.Get("/ws", h.ServeWS)

	return r
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
