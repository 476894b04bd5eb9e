// Package render runs the full pipeline from CWL source to graph: parse,
// optional validation, graph generation and step ordering.
package render

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/me/cwlviz/internal/dotgraph"
	"github.com/me/cwlviz/internal/parser"
	"github.com/me/cwlviz/pkg/model"
)

// Options controls one render.
type Options struct {
	dotgraph.Options
	// Validate rejects documents with structural errors before drawing.
	Validate bool
}

// Result is a rendered workflow.
type Result struct {
	Name       string
	CWLVersion string
	Class      string
	Graph      *dotgraph.Graph
	DOT        string
	StepOrder  []string
	Warnings   []string
	Hash       string
}

// JSON returns the graph together with the document metadata.
func (r *Result) JSON() ([]byte, error) {
	return json.MarshalIndent(struct {
		*dotgraph.Graph
		CWLVersion string   `json:"cwl_version"`
		Class      string   `json:"class"`
		StepOrder  []string `json:"step_order"`
		Hash       string   `json:"content_hash"`
	}{r.Graph, r.CWLVersion, r.Class, r.StepOrder, r.Hash}, "", "  ")
}

// Service renders CWL documents. It holds no per-run state and is safe for
// concurrent use.
type Service struct {
	logger    *slog.Logger
	engine    *slog.Logger
	parser    *parser.Parser
	validator *parser.Validator
}

// New creates a Service.
func New(logger *slog.Logger) *Service {
	return &Service{
		logger:    logger.With("component", "render"),
		engine:    logger,
		parser:    parser.New(logger),
		validator: parser.NewValidator(logger),
	}
}

// RenderFile renders the CWL document at path. Relative run references are
// loaded from the document's directory.
func (s *Service) RenderFile(path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	doc, err := s.parser.ParseFile(path)
	if err != nil {
		return nil, model.NewParseError(err)
	}
	return s.render(doc, ContentHash(data, opts.Options), opts)
}

// Render renders a document held in memory. An empty baseDir disables
// loading of referenced files.
func (s *Service) Render(data []byte, baseDir string, opts Options) (*Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, model.NewParseError(errors.New("empty document"))
	}
	if baseDir != "" {
		abs, err := filepath.Abs(baseDir)
		if err != nil {
			return nil, fmt.Errorf("resolve base directory: %w", err)
		}
		baseDir = abs
	}
	doc, err := s.parser.Parse(data, baseDir)
	if err != nil {
		return nil, model.NewParseError(err)
	}
	return s.render(doc, ContentHash(data, opts.Options), opts)
}

// Validate parses and validates a document without drawing it.
func (s *Service) Validate(path string) (*parser.Document, error) {
	doc, err := s.parser.ParseFile(path)
	if err != nil {
		return nil, model.NewParseError(err)
	}
	if apiErr := s.validator.Validate(doc); apiErr != nil {
		return doc, apiErr
	}
	return doc, nil
}

func (s *Service) render(doc *parser.Document, hash string, opts Options) (*Result, error) {
	if opts.Validate {
		if apiErr := s.validator.Validate(doc); apiErr != nil {
			return nil, apiErr
		}
	}

	g := dotgraph.Generate(doc.Workflow, s.engine, opts.Options)

	res := &Result{
		Name:       g.Name,
		CWLVersion: doc.CWLVersion,
		Class:      doc.OriginalClass,
		Graph:      g,
		Hash:       hash,
	}

	if dag, err := parser.BuildDAG(doc.Workflow); err != nil {
		g.Warnings = append(g.Warnings, "step order: "+err.Error())
		s.logger.Warn("step order unavailable", "workflow_id", g.Name, "error", err)
	} else {
		res.StepOrder = dag.Order
	}
	res.Warnings = g.Warnings

	var buf bytes.Buffer
	if err := g.WriteDOT(&buf); err != nil {
		return nil, fmt.Errorf("write DOT: %w", err)
	}
	res.DOT = buf.String()

	s.logger.Info("rendered workflow",
		"workflow_id", g.Name,
		"nodes", len(g.Nodes),
		"arrows", len(g.Arrows),
		"warnings", len(g.Warnings),
	)
	return res, nil
}

// ContentHash identifies a render: the SHA-256 of the source and of the
// options that change the output.
func ContentHash(data []byte, opts dotgraph.Options) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(opts.RankDir))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(opts.FileNodes)))
	return hex.EncodeToString(h.Sum(nil))
}

// NewGraph turns a render of raw into a record for the graph store.
func NewGraph(res *Result, raw []byte, opts Options) *model.Graph {
	return &model.Graph{
		ID:          "g_" + uuid.New().String(),
		Name:        res.Name,
		CWLVersion:  res.CWLVersion,
		Class:       res.Class,
		ContentHash: res.Hash,
		RankDir:     opts.RankDir,
		FileNodes:   opts.FileNodes,
		NodeCount:   len(res.Graph.Nodes),
		ArrowCount:  len(res.Graph.Arrows),
		StepOrder:   res.StepOrder,
		Warnings:    res.Warnings,
		DOT:         res.DOT,
		RawCWL:      string(raw),
		CreatedAt:   time.Now().UTC(),
	}
}
