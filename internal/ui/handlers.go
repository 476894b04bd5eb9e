// Package ui serves a small HTML front end for browsing and creating
// stored graphs.
package ui

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/me/cwlviz/internal/config"
	"github.com/me/cwlviz/internal/dotgraph"
	"github.com/me/cwlviz/internal/render"
	"github.com/me/cwlviz/internal/store"
	"github.com/me/cwlviz/pkg/model"
)

// UI handles the web user interface.
type UI struct {
	store    store.GraphStore
	renderer *render.Service
	defaults config.RenderConfig
	logger   *slog.Logger
}

// New creates a new UI handler.
func New(st store.GraphStore, renderer *render.Service, defaults config.RenderConfig, logger *slog.Logger) *UI {
	return &UI{
		store:    st,
		renderer: renderer,
		defaults: defaults,
		logger:   logger.With("component", "ui"),
	}
}

const pageSize = 25

// HandleGraphList renders the stored graph list.
func (ui *UI) HandleGraphList(w http.ResponseWriter, r *http.Request) {
	opts := model.ListOptions{Limit: pageSize, Name: r.URL.Query().Get("name")}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		opts.Offset = v
	}
	opts.Clamp()

	graphs, total, err := ui.store.ListGraphs(r.Context(), opts)
	if err != nil {
		ui.renderError(w, "Failed to load graphs", err)
		return
	}

	data := map[string]any{
		"Title":      "Graphs - cwlviz",
		"Graphs":     graphs,
		"Name":       opts.Name,
		"Pagination": buildPagination(opts, total),
	}
	ui.render(w, http.StatusOK, "graphs/list", data)
}

// HandleGraphDetail renders a single graph with its DOT source.
func (ui *UI) HandleGraphDetail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	g, err := ui.store.GetGraph(r.Context(), id)
	if err != nil {
		ui.renderError(w, "Failed to load graph", err)
		return
	}
	if g == nil {
		ui.renderNotFound(w, "Graph not found")
		return
	}

	data := map[string]any{
		"Title": g.Name + " - cwlviz",
		"Graph": g,
	}
	ui.render(w, http.StatusOK, "graphs/detail", data)
}

// HandleGraphCreate renders the form for pasting a CWL document.
func (ui *UI) HandleGraphCreate(w http.ResponseWriter, r *http.Request) {
	ui.renderForm(w, http.StatusOK, createForm{
		RankDir:   strings.ToUpper(ui.defaults.RankDir),
		FileNodes: ui.defaults.FileNodes,
	})
}

type createForm struct {
	CWL       string
	RankDir   string
	FileNodes bool
	Validate  bool
	Error     string
	Details   []model.FieldError
}

// HandleGraphCreatePost renders the submitted document and stores the
// result, reusing an existing graph with the same content hash.
func (ui *UI) HandleGraphCreatePost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		ui.renderForm(w, http.StatusBadRequest, createForm{Error: "Invalid request"})
		return
	}

	form := createForm{
		CWL:       r.FormValue("cwl"),
		RankDir:   strings.ToUpper(r.FormValue("rankdir")),
		FileNodes: r.FormValue("file_nodes") != "",
		Validate:  r.FormValue("validate") != "",
	}
	if form.RankDir == "" {
		form.RankDir = strings.ToUpper(ui.defaults.RankDir)
	}
	if !config.ValidRankDir(form.RankDir) {
		form.Error = "Unsupported direction " + strconv.Quote(form.RankDir)
		ui.renderForm(w, http.StatusUnprocessableEntity, form)
		return
	}

	data := []byte(form.CWL)
	opts := render.Options{
		Options:  dotgraph.Options{RankDir: form.RankDir, FileNodes: form.FileNodes},
		Validate: form.Validate,
	}

	existing, err := ui.store.GetGraphByHash(r.Context(), render.ContentHash(data, opts.Options))
	if err != nil {
		ui.renderError(w, "Failed to look up graph", err)
		return
	}
	if existing != nil {
		http.Redirect(w, r, graphURL(existing.ID), http.StatusSeeOther)
		return
	}

	res, err := ui.renderer.Render(data, "", opts)
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			ui.renderError(w, "Failed to render graph", err)
			return
		}
		form.Error = apiErr.Message
		form.Details = apiErr.Details
		ui.renderForm(w, http.StatusUnprocessableEntity, form)
		return
	}

	g := render.NewGraph(res, data, opts)
	if err := ui.store.CreateGraph(r.Context(), g); err != nil {
		ui.renderError(w, "Failed to store graph", err)
		return
	}
	ui.logger.Info("graph created", "id", g.ID, "name", g.Name)
	http.Redirect(w, r, graphURL(g.ID), http.StatusSeeOther)
}

// HandleGraphDelete removes a graph and returns to the list.
func (ui *UI) HandleGraphDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := ui.store.DeleteGraph(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ui.renderNotFound(w, "Graph not found")
			return
		}
		ui.renderError(w, "Failed to delete graph", err)
		return
	}
	http.Redirect(w, r, "/ui/", http.StatusSeeOther)
}

func graphURL(id string) string {
	return "/ui/graphs/" + id
}

type pagination struct {
	Total   int
	From    int
	To      int
	Prev    int
	Next    int
	HasPrev bool
	HasNext bool
	NameArg string
}

func buildPagination(opts model.ListOptions, total int) pagination {
	p := pagination{
		Total:   total,
		From:    opts.Offset + 1,
		To:      min(opts.Offset+opts.Limit, total),
		Prev:    max(opts.Offset-opts.Limit, 0),
		Next:    opts.Offset + opts.Limit,
		HasPrev: opts.Offset > 0,
		HasNext: opts.Offset+opts.Limit < total,
		NameArg: opts.Name,
	}
	if total == 0 {
		p.From = 0
	}
	return p
}

func (ui *UI) renderForm(w http.ResponseWriter, status int, form createForm) {
	data := map[string]any{
		"Title":      "New graph - cwlviz",
		"Form":       form,
		"Directions": []string{"LR", "TB", "RL", "BT"},
	}
	ui.render(w, status, "graphs/new", data)
}

func (ui *UI) render(w http.ResponseWriter, status int, template string, data map[string]any) {
	var buf bytes.Buffer
	if err := renderTemplate(&buf, template, data); err != nil {
		ui.logger.Error("template render failed", "template", template, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (ui *UI) renderError(w http.ResponseWriter, message string, err error) {
	ui.logger.Error(message, "error", err)
	data := map[string]any{
		"Title":   "Error - cwlviz",
		"Message": message,
	}
	ui.render(w, http.StatusInternalServerError, "error", data)
}

func (ui *UI) renderNotFound(w http.ResponseWriter, message string) {
	data := map[string]any{
		"Title":   "Not found - cwlviz",
		"Message": message,
	}
	ui.render(w, http.StatusNotFound, "error", data)
}
