package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type priceJSON struct {
	Symbol string  `json:"symbol"`
	T      int64   `json:"t"`
	P      float64 `json:"p"`
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	records := s.src.Prices()
	out := make([]priceJSON, len(records))
	for i, p := range records {
		out[i] = priceJSON{Symbol: p.Symbol, T: p.ObservedAt.UnixMilli(), P: p.Price.InexactFloat64()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	p, ok := s.src.Price(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "symbol not tracked")
		return
	}
	writeJSON(w, http.StatusOK, priceJSON{Symbol: p.Symbol, T: p.ObservedAt.UnixMilli(), P: p.Price.InexactFloat64()})
}
