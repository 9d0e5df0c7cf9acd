package api

import (
	"net/http"

	"github.com/kjannette/moverbot/internal/models"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Status())
}

func (s *Server) handleMovers(w http.ResponseWriter, r *http.Request) {
	movers := s.src.TopMovers(parseLimit(r, s.topN))
	if movers == nil {
		movers = []models.ChangeEvent{}
	}
	writeJSON(w, http.StatusOK, movers)
}

func (s *Server) handleExclusions(w http.ResponseWriter, r *http.Request) {
	list := s.src.ExclusionList()
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(list),
		"symbols": list,
	})
}

func (s *Server) handleLastCycle(w http.ResponseWriter, r *http.Request) {
	rep, ok := s.src.LastCycle()
	if !ok {
		writeError(w, http.StatusNotFound, "no poll cycle has run yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
