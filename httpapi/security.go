package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/nutritrack/authcore/middleware"
)

// cspReportBody is the legacy report-uri payload.
type cspReportBody struct {
	Report struct {
		DocumentURI        string `json:"document-uri"`
		ViolatedDirective  string `json:"violated-directive"`
		EffectiveDirective string `json:"effective-directive"`
		BlockedURI         string `json:"blocked-uri"`
		SourceFile         string `json:"source-file"`
		LineNumber         int    `json:"line-number"`
	} `json:"csp-report"`
}

func (h *Handler) cspReport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var rep cspReportBody
	if err := json.NewDecoder(r.Body).Decode(&rep); err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, map[string]string{"status": "error"})
		return
	}

	h.engine.RecordCSPViolation()
	h.logger.Warn("csp violation",
		zap.String("document_uri", rep.Report.DocumentURI),
		zap.String("violated_directive", rep.Report.ViolatedDirective),
		zap.String("effective_directive", rep.Report.EffectiveDirective),
		zap.String("blocked_uri", rep.Report.BlockedURI),
		zap.String("source_file", rep.Report.SourceFile),
		zap.Int("line", rep.Report.LineNumber),
	)
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

type healthResponse struct {
	Status         string `json:"status"`
	StoreAvailable bool   `json:"store_available"`
	StoreLatencyMS int64  `json:"store_latency_ms"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	hs := h.engine.Health(r.Context())
	resp := healthResponse{
		Status:         "ok",
		StoreAvailable: hs.StoreAvailable,
		StoreLatencyMS: hs.StoreLatency.Milliseconds(),
	}
	status := http.StatusOK
	if !hs.StoreAvailable {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	middleware.WriteJSON(w, status, resp)
}
