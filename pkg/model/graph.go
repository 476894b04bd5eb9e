// Package model holds the records and API envelope shared by the server,
// the graph store and the CLI.
package model

import "time"

// Graph is a rendered CWL workflow kept by the server.
type Graph struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CWLVersion  string    `json:"cwl_version"`
	Class       string    `json:"class"` // class of the submitted document before wrapping
	ContentHash string    `json:"content_hash"`
	RankDir     string    `json:"rankdir"`
	FileNodes   bool      `json:"file_nodes"`
	NodeCount   int       `json:"node_count"`
	ArrowCount  int       `json:"arrow_count"`
	StepOrder   []string  `json:"step_order"`
	Warnings    []string  `json:"warnings"`
	DOT         string    `json:"dot,omitempty"`
	RawCWL      string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary returns a copy without the DOT body, for list views.
func (g *Graph) Summary() *Graph {
	s := *g
	s.DOT = ""
	return &s
}
