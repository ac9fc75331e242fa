package http

import (
	"net/http"
	"strings"

	"bmeutil/internal/core"
	applog "bmeutil/internal/log"
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the reference tables are in memory.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("reference data not loaded"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleInitialData(w http.ResponseWriter, r *http.Request) {
	equipment, err := s.svc.InitialEquipmentMap(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, initialDataResponse{BMEMap: equipment})
}

func (s *Server) handleDeviceData(w http.ResponseWriter, r *http.Request) {
	resp, err := s.svc.BuildDeviceResponse(r.Context(), r.PathValue("aeTitle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleMissingAETitle(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, core.Invalidf("no AE title provided"))
}

func (s *Server) handleDeviceSummary(w http.ResponseWriter, r *http.Request) {
	aeTitle := r.PathValue("aeTitle")
	service := strings.TrimSpace(r.URL.Query().Get("service"))

	months, err := s.svc.MonthlySummary(r.Context(), aeTitle, service)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summaryResponse{
		AETitle: core.NormalizeID(aeTitle),
		Service: service,
		Months:  months,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reload(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Reload requested over HTTP",
		applog.FieldOperation, applog.OpReload)
	writeJSON(w, r, http.StatusOK, statusResponse{Status: "reloaded"})
}
