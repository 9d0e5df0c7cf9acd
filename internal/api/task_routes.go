package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/scheduler"
)

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeJSON(w, http.StatusOK, map[string]scheduler.Result{})
		return
	}
	writeJSON(w, http.StatusOK, s.tasks.LastResults())
}

// handleRunTask starts a task outside its schedule. The run continues after
// the response; its result shows up under /v1/tasks. Tasks that only run on
// their schedule answer 409.
func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}

	name := chi.URLParam(r, "name")
	err := s.tasks.Trigger(name)
	switch {
	case err == nil:
	case errors.Is(err, scheduler.ErrUnknownTask):
		writeError(w, http.StatusNotFound, "unknown task")
		return
	case errors.Is(err, scheduler.ErrNotManual):
		writeError(w, http.StatusConflict, "task only runs on its schedule")
		return
	case errors.Is(err, scheduler.ErrNotRunning):
		writeError(w, http.StatusServiceUnavailable, "scheduler stopped")
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("task.manual_started",
		zap.String("task", name),
		zap.String("requestId", requestIDFrom(r.Context())))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"task":   name,
		"status": "started",
	})
}
