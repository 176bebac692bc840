package report

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"bugbounty-tracker/internal/api"
	"bugbounty-tracker/internal/metrics"
)

type Handler struct {
	Service     *Service
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Development bool
}

func NewHandler(s *Service, logger *zap.Logger, m *metrics.Metrics, development bool) *Handler {
	return &Handler{
		Service:     s,
		Logger:      logger,
		Metrics:     m,
		Development: development,
	}
}

// Register mounts the bug report API on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/bugs", h.HandleList)
	mux.HandleFunc("GET /api/bugs/statistics/summary", h.HandleStats)
	mux.HandleFunc("GET /api/bugs/{id}", h.HandleGet)
	mux.HandleFunc("POST /api/bugs", h.HandleCreate)
	mux.HandleFunc("PATCH /api/bugs/{id}", h.HandleUpdateStatus)
	mux.HandleFunc("DELETE /api/bugs/{id}", h.HandleDelete)
}

// HandleList handles GET /api/bugs
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, err := h.Service.List(r.Context(), ParseFilter(r.URL.Query()))
	if err != nil {
		api.ServerError(w, r, h.Logger, h.Development, "Error fetching bug reports", err)
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"data":       page.Reports,
		"pagination": page.Pagination,
	})
}

// HandleGet handles GET /api/bugs/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		api.Error(w, http.StatusNotFound, "Bug report not found")
		return
	}
	if err != nil {
		api.ServerError(w, r, h.Logger, h.Development, "Error fetching bug report", err)
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    rep,
	})
}

// HandleCreate handles POST /api/bugs
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCreateInput(r)
	if err != nil {
		h.badBody(w, err)
		return
	}

	rep, err := h.Service.Create(r.Context(), in)
	var verr *ValidationError
	if errors.As(err, &verr) {
		api.JSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "Validation failed",
			"errors":  verr.Fields,
		})
		return
	}
	if err != nil {
		api.ServerError(w, r, h.Logger, h.Development, "Error submitting bug report", err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.ReportsSubmitted.WithLabelValues(string(rep.Severity)).Inc()
	}
	api.JSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Bug report submitted successfully",
		"data":    rep,
	})
}

// HandleUpdateStatus handles PATCH /api/bugs/{id}
func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status Status `json:"status"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		h.badBody(w, err)
		return
	}

	rep, err := h.Service.UpdateStatus(r.Context(), r.PathValue("id"), Status(strings.TrimSpace(string(req.Status))))
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		api.Error(w, http.StatusBadRequest, verr.Fields[0].Message)
		return
	case errors.Is(err, ErrNotFound):
		api.Error(w, http.StatusNotFound, "Bug report not found")
		return
	case err != nil:
		api.ServerError(w, r, h.Logger, h.Development, "Error updating bug report", err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.ReportStatusChanges.WithLabelValues(string(rep.Status)).Inc()
	}
	api.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Bug status updated successfully",
		"data":    rep,
	})
}

// HandleDelete handles DELETE /api/bugs/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	err := h.Service.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		api.Error(w, http.StatusNotFound, "Bug report not found")
		return
	}
	if err != nil {
		api.ServerError(w, r, h.Logger, h.Development, "Error deleting bug report", err)
		return
	}

	if h.Metrics != nil {
		h.Metrics.ReportsDeleted.Inc()
	}
	api.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Bug report deleted successfully",
	})
}

// HandleStats handles GET /api/bugs/statistics/summary
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.Stats(r.Context())
	if err != nil {
		api.ServerError(w, r, h.Logger, h.Development, "Error fetching statistics", err)
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    st,
	})
}

func (h *Handler) badBody(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Error(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	api.JSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// decodeCreateInput accepts JSON or a urlencoded form.
func decodeCreateInput(r *http.Request) (CreateInput, error) {
	var in CreateInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return in, err
		}
		return FormInput(r.PostForm), nil
	}
	err := decodeJSON(r.Body, &in)
	return in, err
}

// FormInput builds a CreateInput from submitted form fields.
func FormInput(form map[string][]string) CreateInput {
	get := func(k string) string {
		if v := form[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	in := CreateInput{
		Title:         get("title"),
		Description:   get("description"),
		Severity:      Severity(get("severity")),
		CompanyName:   get("companyName"),
		ReporterEmail: get("reporterEmail"),
	}
	in.BountyAmount.SetString(get("bountyAmount"))
	return in
}

// decodeJSON decodes a single JSON object. An empty body decodes as {}.
func decodeJSON(body io.Reader, v interface{}) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}
