package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kjannette/moverbot/internal/models"
)

const healthProbeTimeout = 5 * time.Second

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Services  healthServices `json:"services"`
}

type healthServices struct {
	Exchange  models.ExchangeHealth `json:"exchange"`
	Scheduler string                `json:"scheduler"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	exchange := s.src.Diagnose(ctx)

	sched := "disabled"
	if s.tasks != nil {
		sched = "stopped"
		if s.tasks.Running() {
			sched = "running"
		}
	}

	status := "ok"
	if exchange != models.ExchangeOK || sched == "stopped" {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  healthServices{Exchange: exchange, Scheduler: sched},
	})
}
