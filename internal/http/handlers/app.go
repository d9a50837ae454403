package handlers

import (
	"encoding/json"
	"net/http"

	"pixelpop/server/internal/infra"
	"pixelpop/server/internal/queue"
)

// App is the handler container: every route hangs off it and shares the queue
// manager and logger.
type App struct {
	Queue  *queue.Manager
	Logger infra.Logger
}

// NewApp builds the handler container.
func NewApp(manager *queue.Manager, logger infra.Logger) *App {
	return &App{Queue: manager, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
