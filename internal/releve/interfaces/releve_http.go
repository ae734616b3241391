package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"garderie-cloud/internal/auth"
	"garderie-cloud/internal/observability/metrics"
	"garderie-cloud/internal/releve/application"
	releve "garderie-cloud/internal/releve/domain"
)

// ReleveHandler handles the RL-24 transmission APIs.
type ReleveHandler struct {
	service       *application.BatchService
	transmissions releve.TransmissionRepository
}

// NewReleveHandler constructs a handler.
func NewReleveHandler(service *application.BatchService, transmissions releve.TransmissionRepository) (*ReleveHandler, error) {
	if service == nil {
		return nil, errors.New("releve handler: nil service")
	}
	if transmissions == nil {
		return nil, errors.New("releve handler: nil transmission repository")
	}
	return &ReleveHandler{service: service, transmissions: transmissions}, nil
}

// ServeHTTP handles routes under /api/v1/rl24.
func (h *ReleveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/api/v1/rl24/preview" && r.Method == http.MethodPost {
		h.handlePreview(w, r)
		return
	}
	if path == "/api/v1/rl24/process" && r.Method == http.MethodPost {
		h.handleProcess(w, r)
		return
	}
	if strings.HasPrefix(path, "/api/v1/rl24/transmissions/") {
		rest := strings.TrimPrefix(path, "/api/v1/rl24/transmissions/")
		h.handleByID(w, r, rest)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ReleveHandler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchoolYearID string `json:"school_year_id"`
		TaxYear      int    `json:"tax_year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	preview, err := h.service.Preview(r.Context(), req.SchoolYearID, req.TaxYear)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(preview)
}

func (h *ReleveHandler) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SchoolYearID string `json:"school_year_id"`
		TaxYear      int    `json:"tax_year"`
		DryRun       bool   `json:"dry_run"`
		Verbose      bool   `json:"verbose"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	initiator := auth.SubjectFromContext(r.Context())
	opts := application.Options{DryRun: req.DryRun, Verbose: req.Verbose}
	result, err := h.service.ProcessBatch(r.Context(), req.SchoolYearID, req.TaxYear, initiator, opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (h *ReleveHandler) handleByID(w http.ResponseWriter, r *http.Request, rest string) {
	if rest == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) == 1 && r.Method == http.MethodGet {
		h.handleGet(w, r, id)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "regenerate":
			if r.Method == http.MethodPost {
				h.handleRegenerate(w, r, id)
				return
			}
		case "paper.pdf":
			if r.Method == http.MethodGet {
				h.handlePaperPDF(w, r, id)
				return
			}
		case "audit.xlsx":
			if r.Method == http.MethodGet {
				h.handleAuditXLSX(w, r, id)
				return
			}
		}
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *ReleveHandler) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	tx, slips, err := h.load(r, id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := struct {
		Transmission *releve.Transmission `json:"transmission"`
		Slips        []releve.Slip        `json:"slips"`
	}{Transmission: tx, Slips: slips}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *ReleveHandler) handleRegenerate(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.service.RegenerateXML(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}

func (h *ReleveHandler) handlePaperPDF(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObservePaperExport("pdf", result, time.Since(start))
	}()

	tx, slips, err := h.load(r, id)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildPaperSummaryPDF(tx, slips)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export pdf error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ReleveHandler) handleAuditXLSX(w http.ResponseWriter, r *http.Request, id string) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObservePaperExport("xlsx", result, time.Since(start))
	}()

	tx, slips, err := h.load(r, id)
	if err != nil {
		result = metrics.ResultError
		respondServiceError(w, err)
		return
	}
	data, err := BuildAuditWorkbookXLSX(tx, slips)
	if err != nil {
		result = metrics.ResultError
		http.Error(w, "export xlsx error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *ReleveHandler) load(r *http.Request, id string) (*releve.Transmission, []releve.Slip, error) {
	tx, err := h.transmissions.GetByID(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	slips, err := h.transmissions.ListSlips(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if slips == nil {
		slips = []releve.Slip{}
	}
	return tx, slips, nil
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, releve.ErrTransmissionNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, releve.ErrTransmissionImmutable) {
		http.Error(w, "conflict", http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}
