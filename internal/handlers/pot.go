package handlers

import (
	"net/http"
	"strconv"

	"mathblog/internal/geometry"
)

type PotHandler struct {
	Err *ErrorHandler
}

// Calculate serves GET /pot?top=&base=&height=.
func (h *PotHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		p   geometry.Pot
		err error
	)
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"top", &p.DiameterTop},
		{"base", &p.DiameterBase},
		{"height", &p.Height},
	} {
		*f.dst, err = strconv.ParseFloat(q.Get(f.name), 64)
		if err != nil {
			h.Err.Render(w, http.StatusBadRequest, "invalid "+f.name)
			return
		}
	}

	report, err := p.Report()
	if err != nil {
		h.Err.Render(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}
