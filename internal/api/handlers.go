package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mmrzaf/tablefill/internal/app"
	"github.com/mmrzaf/tablefill/internal/domain"
	"github.com/mmrzaf/tablefill/internal/exec"
	"github.com/mmrzaf/tablefill/internal/infra/repos/schemas"
	"github.com/mmrzaf/tablefill/internal/infra/repos/targets"
	"github.com/mmrzaf/tablefill/internal/validation"
)

const maxPreviewRows = 1000

// previewResponse keeps values in insert column order.
type previewResponse struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type Handler struct {
	schemaRepo *schemas.FileRepository
	targetRepo targets.Repository
	saved      *targets.SQLiteRepository
	service    *app.PopulateService
	validator  *validation.Validator
}

// NewHandler reads targets through targetRepo and writes them to saved.
func NewHandler(schemaRepo *schemas.FileRepository, targetRepo targets.Repository, saved *targets.SQLiteRepository, service *app.PopulateService) *Handler {
	return &Handler{
		schemaRepo: schemaRepo,
		targetRepo: targetRepo,
		saved:      saved,
		service:    service,
		validator:  validation.NewValidator(nil),
	}
}

func (h *Handler) ListSchemas(w http.ResponseWriter, r *http.Request) {
	list, err := h.schemaRepo.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

// Targets CRUD with DSN redacted on output

func (h *Handler) ListTargets(w http.ResponseWriter, r *http.Request) {
	list, err := h.targetRepo.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, targets.RedactTargets(list))
}

func (h *Handler) GetTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := h.targetRepo.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, targets.RedactTarget(t))
}

func (h *Handler) CreateTarget(w http.ResponseWriter, r *http.Request) {
	var t domain.TargetConfig
	if err := decodeJSONStrict(r, &t); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := h.validator.ValidateTarget(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.saved.Create(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(targets.RedactTarget(&t))
}

func (h *Handler) UpdateTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var t domain.TargetConfig
	if err := decodeJSONStrict(r, &t); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if t.ID != "" && t.ID != id {
		http.Error(w, "id mismatch", http.StatusBadRequest)
		return
	}
	t.ID = id
	if err := h.validator.ValidateTarget(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.saved.Update(&t); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, targets.RedactTarget(&t))
}

func (h *Handler) DeleteTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.saved.Delete(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TestTarget(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, err := h.targetRepo.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	res, err := app.CheckTarget(r.Context(), t)
	if res == nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if res.TargetID == "" {
		res.TargetID = t.Name
	}
	if err := h.saved.RecordCheck(res); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) ListTargetChecks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if t, err := h.targetRepo.Get(id); err == nil && t.ID != "" {
		id = t.ID
	}
	list, err := h.saved.ListChecks(id, queryInt(r, "limit", 20, 500))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, list)
}

// Tables

func (h *Handler) InspectTable(w http.ResponseWriter, r *http.Request) {
	var req domain.PopulateRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	table, err := h.service.ResolveTable(r.Context(), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, table)
}

// Preview takes a populate request and answers with generated rows. Rows
// defaults to 5. Columns the datastore fills are left out.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req domain.PopulateRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	n := req.Rows
	if n <= 0 {
		n = 5
	}
	if n > maxPreviewRows {
		http.Error(w, "too many preview rows", http.StatusBadRequest)
		return
	}
	var seed int64
	if req.Seed != nil {
		seed = *req.Seed
	}

	table, err := h.service.ResolveTable(r.Context(), &req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rows, err := h.service.PreviewRows(table, int(n), seed)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	out := previewResponse{Columns: []string{}, Rows: make([][]any, 0, len(rows))}
	if len(rows) > 0 {
		out.Columns = rows[0].Columns
	}
	for _, row := range rows {
		out.Rows = append(out.Rows, row.Values)
	}
	writeJSON(w, out)
}

// Runs

// Populate runs synchronously. A run that started and failed is answered
// with its record and 422.
func (h *Handler) Populate(w http.ResponseWriter, r *http.Request) {
	var req domain.PopulateRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	run, err := h.service.Populate(r.Context(), &req)
	if run == nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusCreated
	if err != nil {
		status = http.StatusUnprocessableEntity
		if errors.Is(err, exec.ErrNothingToInsert) {
			status = http.StatusBadRequest
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(run)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.service.ListRuns(queryInt(r, "limit", 50, 1000), r.URL.Query().Get("status"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.service.GetRun(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, run)
}

func queryInt(r *http.Request, key string, def, max int) int {
	if q := r.URL.Query().Get(key); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSONStrict(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}
