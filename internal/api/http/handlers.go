package apihttp

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

const timeLayout = time.RFC3339

// TransmissionsHandler serves transmission listing queries.
type TransmissionsHandler struct {
	db *sql.DB
}

// NewTransmissionsHandler constructs a TransmissionsHandler.
func NewTransmissionsHandler(db *sql.DB) *TransmissionsHandler {
	return &TransmissionsHandler{db: db}
}

// ServeHTTP handles GET /api/v1/rl24/transmissions.
func (h *TransmissionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	taxYear, err := parseYearQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status := r.URL.Query().Get("status")

	rows, err := queryTransmissions(r.Context(), h.db, taxYear, status)
	if err != nil {
		http.Error(w, "query transmissions error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rows)
}

// ExportTransmissionsCSVHandler serves transmission CSV exports.
type ExportTransmissionsCSVHandler struct {
	db *sql.DB
}

// NewExportTransmissionsCSVHandler constructs a ExportTransmissionsCSVHandler.
func NewExportTransmissionsCSVHandler(db *sql.DB) *ExportTransmissionsCSVHandler {
	return &ExportTransmissionsCSVHandler{db: db}
}

// ServeHTTP handles GET /api/v1/exports/transmissions.csv.
func (h *ExportTransmissionsCSVHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.db == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}

	taxYear, err := parseYearQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	status := r.URL.Query().Get("status")

	rows, err := queryTransmissions(r.Context(), h.db, taxYear, status)
	if err != nil {
		http.Error(w, "query transmissions error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{
		"id",
		"school_year_id",
		"tax_year",
		"sequence",
		"preparer_id",
		"slip_count",
		"participant_count",
		"total_days",
		"total_paid",
		"total_eligible",
		"total_contribution",
		"total_net",
		"file_path",
		"validation_passed",
		"status",
		"created_at",
		"updated_at",
	})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.ID,
			row.SchoolYearID,
			formatInt(row.TaxYear),
			formatInt(row.Sequence),
			row.PreparerID,
			formatInt(row.SlipCount),
			formatInt(row.ParticipantCount),
			formatInt(row.TotalDays),
			formatFloat(row.TotalPaid),
			formatFloat(row.TotalEligible),
			formatFloat(row.TotalContribution),
			formatFloat(row.TotalNet),
			row.FilePath,
			strconv.FormatBool(row.ValidationPassed),
			row.Status,
			formatTime(row.CreatedAt),
			formatTime(row.UpdatedAt),
		})
	}
	writer.Flush()
}

type transmissionRow struct {
	ID                string    `json:"id"`
	SchoolYearID      string    `json:"school_year_id"`
	TaxYear           int       `json:"tax_year"`
	Sequence          int       `json:"sequence"`
	PreparerID        string    `json:"preparer_id"`
	SlipCount         int       `json:"slip_count"`
	ParticipantCount  int       `json:"participant_count"`
	TotalDays         int       `json:"total_days"`
	TotalPaid         float64   `json:"total_paid"`
	TotalEligible     float64   `json:"total_eligible"`
	TotalContribution float64   `json:"total_contribution"`
	TotalNet          float64   `json:"total_net"`
	FilePath          string    `json:"file_path"`
	ValidationPassed  bool      `json:"validation_passed"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func queryTransmissions(ctx context.Context, db *sql.DB, taxYear int, status string) ([]transmissionRow, error) {
	query := `
SELECT
	id,
	school_year_id,
	tax_year,
	sequence,
	preparer_id,
	slip_count,
	participant_count,
	total_days,
	total_paid,
	total_eligible,
	total_contribution,
	total_net,
	file_path,
	validation_passed,
	status,
	created_at,
	updated_at
FROM rl24_transmissions
WHERE tax_year = $1`
	args := []any{taxYear}
	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}
	query += " ORDER BY sequence ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []transmissionRow
	for rows.Next() {
		var row transmissionRow
		if err := rows.Scan(
			&row.ID,
			&row.SchoolYearID,
			&row.TaxYear,
			&row.Sequence,
			&row.PreparerID,
			&row.SlipCount,
			&row.ParticipantCount,
			&row.TotalDays,
			&row.TotalPaid,
			&row.TotalEligible,
			&row.TotalContribution,
			&row.TotalNet,
			&row.FilePath,
			&row.ValidationPassed,
			&row.Status,
			&row.CreatedAt,
			&row.UpdatedAt,
		); err != nil {
			return nil, err
		}
		row.CreatedAt = row.CreatedAt.UTC()
		row.UpdatedAt = row.UpdatedAt.UTC()
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseYearQuery(r *http.Request) (int, error) {
	value := r.URL.Query().Get("tax_year")
	if value == "" {
		return 0, errRequired("tax_year")
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return 0, errRequired("tax_year")
	}
	return year, nil
}

type errRequired string

func (e errRequired) Error() string { return string(e) + " is required and must be an integer" }

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(timeLayout)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatInt(value int) string {
	return strconv.Itoa(value)
}
