package server

import (
	"encoding/json"
	"errors"
	"fmt"
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

// renderRequest is the body of POST /render and POST /graphs.
type renderRequest struct {
	CWL       string `json:"cwl"`
	RankDir   string `json:"rankdir"`
	FileNodes *bool  `json:"file_nodes"`
	Validate  bool   `json:"validate"`
}

type renderResponse struct {
	Name        string          `json:"name"`
	CWLVersion  string          `json:"cwl_version"`
	Class       string          `json:"class"`
	ContentHash string          `json:"content_hash"`
	StepOrder   []string        `json:"step_order"`
	Warnings    []string        `json:"warnings"`
	Graph       *dotgraph.Graph `json:"graph"`
	DOT         string          `json:"dot"`
}

// decodeRenderRequest reads the request body and fills in server defaults.
func (s *Server) decodeRenderRequest(w http.ResponseWriter, r *http.Request) ([]byte, render.Options, *model.APIError) {
	var req renderRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, render.Options{}, &model.APIError{
			Code:    model.ErrBadRequest,
			Message: "Invalid JSON body: " + err.Error(),
		}
	}
	if strings.TrimSpace(req.CWL) == "" {
		return nil, render.Options{}, model.NewValidationError("Invalid request",
			model.FieldError{Field: "cwl", Message: "required"})
	}

	opts := render.Options{
		Options: dotgraph.Options{
			RankDir:   s.config.Render.RankDir,
			FileNodes: s.config.Render.FileNodes,
		},
		Validate: req.Validate,
	}
	if req.RankDir != "" {
		if !config.ValidRankDir(req.RankDir) {
			return nil, render.Options{}, model.NewValidationError("Invalid request",
				model.FieldError{Field: "rankdir", Message: fmt.Sprintf("unsupported value %q", req.RankDir)})
		}
		opts.RankDir = strings.ToUpper(req.RankDir)
	}
	if req.FileNodes != nil {
		opts.FileNodes = *req.FileNodes
	}
	return []byte(req.CWL), opts, nil
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	data, opts, apiErr := s.decodeRenderRequest(w, r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	// Documents posted over HTTP may not reference files on the server.
	res, err := s.renderer.Render(data, "", opts)
	if err != nil {
		respondRenderError(w, reqID, err)
		return
	}
	respondOK(w, reqID, renderResponse{
		Name:        res.Name,
		CWLVersion:  res.CWLVersion,
		Class:       res.Class,
		ContentHash: res.Hash,
		StepOrder:   res.StepOrder,
		Warnings:    res.Warnings,
		Graph:       res.Graph,
		DOT:         res.DOT,
	})
}

// requireStore answers with an error when the server runs without a store.
func (s *Server) requireStore(w http.ResponseWriter, reqID string) bool {
	if s.store != nil {
		return true
	}
	respondError(w, reqID, http.StatusServiceUnavailable, &model.APIError{
		Code:    model.ErrInternal,
		Message: "graph store is not configured",
	})
	return false
}

func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	data, opts, apiErr := s.decodeRenderRequest(w, r)
	if apiErr != nil {
		respondError(w, reqID, http.StatusBadRequest, apiErr)
		return
	}

	hash := render.ContentHash(data, opts.Options)
	existing, err := s.store.GetGraphByHash(r.Context(), hash)
	if err != nil {
		s.internalError(w, reqID, "lookup graph by hash", err)
		return
	}
	if existing != nil {
		s.logger.Debug("graph cache hit", "id", existing.ID, "hash", hash)
		respondOK(w, reqID, existing)
		return
	}

	res, err := s.renderer.Render(data, "", opts)
	if err != nil {
		respondRenderError(w, reqID, err)
		return
	}

	g := render.NewGraph(res, data, opts)
	if err := s.store.CreateGraph(r.Context(), g); err != nil {
		s.internalError(w, reqID, "store graph", err)
		return
	}
	s.logger.Info("graph created", "id", g.ID, "name", g.Name, "nodes", g.NodeCount, "arrows", g.ArrowCount)
	respondCreated(w, reqID, g)
}

func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	opts := model.DefaultListOptions()
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		opts.Offset = v
	}
	opts.Name = q.Get("name")
	opts.Clamp()

	graphs, total, err := s.store.ListGraphs(r.Context(), opts)
	if err != nil {
		s.internalError(w, reqID, "list graphs", err)
		return
	}
	if graphs == nil {
		graphs = []*model.Graph{}
	}
	respondList(w, reqID, graphs, opts.Page(total, len(graphs)))
}

// loadGraph fetches the graph named by the {id} URL parameter, answering
// 404 itself when there is none.
func (s *Server) loadGraph(w http.ResponseWriter, r *http.Request, reqID string) (*model.Graph, bool) {
	if !s.requireStore(w, reqID) {
		return nil, false
	}
	id := chi.URLParam(r, "id")
	g, err := s.store.GetGraph(r.Context(), id)
	if err != nil {
		s.internalError(w, reqID, "get graph", err)
		return nil, false
	}
	if g == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("Graph", id))
		return nil, false
	}
	return g, true
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if g, ok := s.loadGraph(w, r, reqID); ok {
		respondOK(w, reqID, g)
	}
}

func (s *Server) handleGetGraphDOT(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	g, ok := s.loadGraph(w, r, reqID)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", g.Name+".dot"))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(g.DOT))
}

func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.store.DeleteGraph(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("Graph", id))
			return
		}
		s.internalError(w, reqID, "delete graph", err)
		return
	}
	respondOK(w, reqID, map[string]any{"id": id, "deleted": true})
}

func (s *Server) internalError(w http.ResponseWriter, reqID, op string, err error) {
	s.logger.Error(op, "error", err, "request_id", reqID)
	respondError(w, reqID, http.StatusInternalServerError, &model.APIError{
		Code:    model.ErrInternal,
		Message: op + " failed",
	})
}
