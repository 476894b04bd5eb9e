package dotgraph

import (
	"log/slog"
	"strings"

	"github.com/me/cwlviz/pkg/cwl"
)

// FileLiteralPrefix marks an identifier as a literal file value rather than a port.
const FileLiteralPrefix = "file://"

// IsFileLiteral reports whether id denotes a literal file value.
func IsFileLiteral(id string) bool {
	return strings.HasPrefix(id, FileLiteralPrefix)
}

// StripPath returns the last segment of id: the text after the final "/" or
// "#", whichever comes last. Identifiers without a separator are returned as is.
func StripPath(id string) string {
	i := strings.LastIndexAny(id, "/#")
	if i < 0 {
		return id
	}
	return id[i+1:]
}

// Resolver matches identifiers across workflow and embedded tool scopes.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a Resolver that reports match decisions at debug level.
func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// EndID returns toolID unchanged when one of the candidates carries exactly
// that id, and the short form StripPath(toolID) otherwise.
//
// Embedded tool ports are referenced by their full path in some documents and
// by their local name in others (a conditional step's control input is the
// usual case), so the short form is the fallback label.
func (r *Resolver) EndID(toolID string, candidates []cwl.Port) string {
	for _, c := range candidates {
		if c.ID == toolID {
			r.logger.Debug("[DEBUG_MATCH] Match found for tool_id: " + toolID)
			return toolID
		}
	}
	short := StripPath(toolID)
	if short == "" {
		short = toolID
	}
	r.logger.Debug("[DEBUG_NOMATCH] No match found for tool_id: "+toolID+", using short id: "+short,
		"candidates", len(candidates))
	return short
}

// Canonical resolves toolID to the declared id of the candidate it refers to.
// Exact matches win, then the first candidate whose short form equals the
// short form of toolID. Without any match the short form is returned.
func (r *Resolver) Canonical(toolID string, candidates []cwl.Port) string {
	id := r.EndID(toolID, candidates)
	for _, c := range candidates {
		if c.ID == id {
			return id
		}
	}
	for _, c := range candidates {
		if StripPath(c.ID) == id {
			return c.ID
		}
	}
	return id
}
