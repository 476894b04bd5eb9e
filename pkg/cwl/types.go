// Package cwl holds the CWL document model consumed by the graph generator.
package cwl

// Document represents a raw CWL document (single or $graph packed).
// These types are intentionally loose (map-based); typed parsing happens in
// internal/parser.
type Document map[string]any

// Class returns the CWL class (Workflow, CommandLineTool, ExpressionTool).
func (d Document) Class() string {
	if v, ok := d["class"].(string); ok {
		return v
	}
	return ""
}

// ID returns the document's id field without a leading "#".
func (d Document) ID() string {
	if v, ok := d["id"].(string); ok {
		return TrimFragment(v)
	}
	return ""
}

// CWLVersion returns the cwlVersion field.
func (d Document) CWLVersion() string {
	if v, ok := d["cwlVersion"].(string); ok {
		return v
	}
	return ""
}

// IsGraph returns true if this is a $graph packed document.
func (d Document) IsGraph() bool {
	_, ok := d["$graph"]
	return ok
}

// Graph returns the $graph entries if this is a packed document.
func (d Document) Graph() []Document {
	g, ok := d["$graph"].([]any)
	if !ok {
		return nil
	}
	var docs []Document
	for _, entry := range g {
		if m, ok := entry.(map[string]any); ok {
			docs = append(docs, Document(m))
		}
	}
	return docs
}

// Entry returns the $graph entry with the given id ("#x" and "x" both match).
func (d Document) Entry(id string) (Document, bool) {
	id = TrimFragment(id)
	for _, e := range d.Graph() {
		if e.ID() == id {
			return e, true
		}
	}
	return nil, false
}

// Main returns the entry point of a packed document: the entry with id
// "main", else the first Workflow entry, else the first entry.
func (d Document) Main() (Document, bool) {
	if e, ok := d.Entry("main"); ok {
		return e, true
	}
	entries := d.Graph()
	for _, e := range entries {
		if e.Class() == "Workflow" {
			return e, true
		}
	}
	if len(entries) > 0 {
		return entries[0], true
	}
	return nil, false
}
