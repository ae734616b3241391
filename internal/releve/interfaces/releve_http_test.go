package interfaces

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"garderie-cloud/internal/releve/application"
	releve "garderie-cloud/internal/releve/domain"
	"garderie-cloud/internal/releve/infrastructure/memory"
	"garderie-cloud/internal/releve/xmlgen"
)

type httpFixture struct {
	handler       *ReleveHandler
	transmissions *memory.TransmissionRepository
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()

	cfg := application.Config{
		ProviderName: "Garderie Les Petits Pas",
		ProviderNEQ:  "1234567890",
		ProviderAddress: application.AddressConfig{
			Line1:      "123 Rue Principale",
			City:       "Montreal",
			Province:   "QC",
			PostalCode: "H2X 1Y4",
		},
		PreparerID: "123456",
		OutputRoot: t.TempDir(),
	}

	records := []releve.EligibilityRecord{
		{
			ID:             "elig-1",
			TaxYear:        2025,
			ParentName:     "Marie Tremblay",
			ParentSIN:      "046454286",
			ChildName:      "Lea Tremblay",
			ChildBirthDate: time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC),
			ChildKey:       "child-1",
			ServiceStart:   time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC),
			ServiceEnd:     time.Date(2025, 12, 19, 0, 0, 0, 0, time.UTC),
			ApprovalStatus: releve.ApprovalApproved,
		},
	}

	transmissions := memory.NewTransmissionRepository()
	eligibility := memory.NewEligibilityRepository(records...)
	sequences := memory.NewSequenceRepository()
	allocator, err := application.NewSequenceAllocator(sequences, cfg.OutputRoot)
	if err != nil {
		t.Fatalf("allocator: %v", err)
	}
	service, err := application.NewBatchService(
		cfg, transmissions, eligibility, allocator,
		xmlgen.NewGenerator(), xmlgen.NewValidator(),
		nil, nil, log.New(io.Discard, "", 0),
	)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	handler, err := NewReleveHandler(service, transmissions)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	return &httpFixture{handler: handler, transmissions: transmissions}
}

func (fx *httpFixture) post(t *testing.T, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	resp := httptest.NewRecorder()
	fx.handler.ServeHTTP(resp, req)
	return resp
}

func (fx *httpFixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	fx.handler.ServeHTTP(resp, req)
	return resp
}

func TestReleveHandler_PreviewAndProcess(t *testing.T) {
	fx := newHTTPFixture(t)

	resp := fx.post(t, "/api/v1/rl24/preview", `{"school_year_id":"sy-2024-2025","tax_year":2025}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("preview: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var preview application.Preview
	if err := json.Unmarshal(resp.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if !preview.CanProceed {
		t.Fatalf("expected preview to allow processing: %+v", preview)
	}
	if preview.ApprovedCount != 1 {
		t.Fatalf("expected 1 approved record, got %d", preview.ApprovedCount)
	}

	resp = fx.post(t, "/api/v1/rl24/process", `{"school_year_id":"sy-2024-2025","tax_year":2025}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("process: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var result application.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected successful run: %+v", result)
	}
	if result.Stats.Generated != 1 {
		t.Fatalf("expected 1 slip generated, got %d", result.Stats.Generated)
	}

	// Fetch the transmission with its slips.
	resp = fx.get(t, "/api/v1/rl24/transmissions/"+result.TransmissionID)
	if resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.Code)
	}
	var detail struct {
		Transmission *releve.Transmission `json:"transmission"`
		Slips        []releve.Slip        `json:"slips"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if len(detail.Slips) != 1 {
		t.Fatalf("expected 1 slip, got %d", len(detail.Slips))
	}

	// Exports.
	resp = fx.get(t, "/api/v1/rl24/transmissions/"+result.TransmissionID+"/paper.pdf")
	if resp.Code != http.StatusOK {
		t.Fatalf("paper.pdf: expected 200, got %d", resp.Code)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected PDF payload")
	}
	resp = fx.get(t, "/api/v1/rl24/transmissions/"+result.TransmissionID+"/audit.xlsx")
	if resp.Code != http.StatusOK {
		t.Fatalf("audit.xlsx: expected 200, got %d", resp.Code)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected XLSX payload")
	}

	// Regeneration keeps the same transmission.
	resp = fx.post(t, "/api/v1/rl24/transmissions/"+result.TransmissionID+"/regenerate", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("regenerate: expected 200, got %d", resp.Code)
	}
	var regen application.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &regen); err != nil {
		t.Fatalf("decode regen: %v", err)
	}
	if !regen.Success || regen.TransmissionID != result.TransmissionID {
		t.Fatalf("unexpected regen result: %+v", regen)
	}
}

func TestReleveHandler_BadJSON(t *testing.T) {
	fx := newHTTPFixture(t)
	resp := fx.post(t, "/api/v1/rl24/process", `{`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestReleveHandler_UnknownTransmission(t *testing.T) {
	fx := newHTTPFixture(t)
	resp := fx.get(t, "/api/v1/rl24/transmissions/rl24-missing")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestReleveHandler_UnknownRoute(t *testing.T) {
	fx := newHTTPFixture(t)
	resp := fx.get(t, "/api/v1/rl24/nope")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
