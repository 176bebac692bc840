// Package ui 提供服务端渲染的提交表单和报告列表页面。
// 页面 (父组件) 负责从 report.Service 拉取数据; 表单提交后重定向回首页, 列表总是显示服务端确认过的数据。
package ui

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"bugbounty-tracker/internal/metrics"
	"bugbounty-tracker/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type Handler struct {
	Service *report.Service
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	tmpl    *template.Template
}

// pageData 是首页模板的数据
type pageData struct {
	Form       Form
	Cards      []Card
	Stats      *report.Stats
	Filter     report.Filter
	Total      int64
	Submitted  bool
	Severities []report.Severity
	Statuses   []report.Status
}

func NewHandler(s *report.Service, logger *zap.Logger, m *metrics.Metrics) (*Handler, error) {
	funcs := template.FuncMap{
		"bounty": func(v float64) string { return FormatBounty(&v) },
	}
	tmpl, err := template.New("ui").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse ui templates")
	}
	return &Handler{Service: s, Logger: logger, Metrics: m, tmpl: tmpl}, nil
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HandleIndex)
	mux.HandleFunc("POST /reports", h.HandleSubmit)
	static, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
}

// HandleIndex handles GET /
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Form:      NewForm(),
		Submitted: r.URL.Query().Get("submitted") != "",
	}
	h.render(w, r, http.StatusOK, data)
}

// HandleSubmit handles POST /reports
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	form := FormFromValues(r.PostForm)

	rep, err := h.Service.Create(r.Context(), form.Value())
	var verr *report.ValidationError
	if errors.As(err, &verr) {
		form.SetErrors(verr)
		h.render(w, r, http.StatusBadRequest, pageData{Form: form})
		return
	}
	if err != nil {
		h.Logger.Error("submit bug report from form", zap.Error(err))
		http.Error(w, "Error submitting bug report", http.StatusInternalServerError)
		return
	}

	if h.Metrics != nil {
		h.Metrics.ReportsSubmitted.WithLabelValues(string(rep.Severity)).Inc()
	}
	http.Redirect(w, r, "/?submitted=1", http.StatusSeeOther)
}

// render 拉取列表和统计后渲染整页
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Filter = report.ParseFilter(r.URL.Query())
	data.Severities = report.Severities()
	data.Statuses = report.Statuses()

	page, err := h.Service.List(r.Context(), data.Filter)
	if err != nil {
		h.Logger.Error("list bug reports for page", zap.Error(err))
		http.Error(w, "Error fetching bug reports", http.StatusInternalServerError)
		return
	}
	stats, err := h.Service.Stats(r.Context())
	if err != nil {
		h.Logger.Error("load statistics for page", zap.Error(err))
		http.Error(w, "Error fetching statistics", http.StatusInternalServerError)
		return
	}
	data.Cards = Cards(page.Reports)
	data.Total = page.Pagination.Total
	data.Stats = stats

	var buf bytes.Buffer
	if err := h.tmpl.ExecuteTemplate(&buf, "page", data); err != nil {
		h.Logger.Error("render page", zap.Error(err))
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
