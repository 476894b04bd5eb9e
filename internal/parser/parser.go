package parser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/me/cwlviz/pkg/cwl"
	"gopkg.in/yaml.v3"
)

// Parser converts raw CWL YAML or JSON into the typed workflow model.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser with the given logger.
func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "parser")}
}

// Document is a parsed CWL document ready for graph generation.
type Document struct {
	CWLVersion string
	// OriginalClass is the class of the entry point before any wrapping.
	OriginalClass string
	Workflow      *cwl.Workflow
}

// ParseFile reads and parses the CWL document at path. Relative run
// references and $import directives resolve against the file's directory.
func (p *Parser) ParseFile(path string) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %q: %w", path, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	l := p.newLoader()
	l.visiting[abs] = true
	return l.parse(data, abs)
}

// Parse parses a CWL document held in memory. baseDir is used for relative
// run references and $import; an empty baseDir disables file loading.
func (p *Parser) Parse(data []byte, baseDir string) (*Document, error) {
	l := p.newLoader()
	name := ""
	if baseDir != "" {
		name = filepath.Join(baseDir, "<inline>")
	}
	return l.parse(data, name)
}

// loader holds the state of one parse: the packed entries of the file being
// read and the run references currently being resolved.
type loader struct {
	p        *Parser
	file     string
	packed   cwl.Document
	visiting map[string]bool
}

func (p *Parser) newLoader() *loader {
	return &loader{p: p, visiting: make(map[string]bool)}
}

func (l *loader) parse(data []byte, file string) (*Document, error) {
	l.file = file
	raw, err := l.decode(data, file)
	if err != nil {
		return nil, err
	}
	doc := cwl.Document(raw)
	version := doc.CWLVersion()

	entry := doc
	if doc.IsGraph() {
		l.packed = doc
		main, ok := doc.Main()
		if !ok {
			return nil, fmt.Errorf("$graph contains no entries")
		}
		entry = main
		l.p.logger.Debug("packed document", "entries", len(doc.Graph()), "main", main.ID())
	}

	class := entry.Class()
	var wf *cwl.Workflow
	switch class {
	case "Workflow":
		wf, err = l.parseWorkflow(entry)
		if err != nil {
			return nil, fmt.Errorf("parse Workflow: %w", err)
		}
	case "CommandLineTool", "ExpressionTool", "Operation":
		wf, err = l.wrapToolAsWorkflow(entry)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", class, err)
		}
	case "":
		return nil, fmt.Errorf("missing class: document must be a Workflow, a tool or a packed $graph")
	default:
		return nil, fmt.Errorf("unsupported class %q", class)
	}

	if wf.CWLVersion == "" {
		wf.CWLVersion = version
	}
	return &Document{CWLVersion: version, OriginalClass: class, Workflow: wf}, nil
}

func (l *loader) decode(data []byte, file string) (map[string]any, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("empty document")
	}
	if file == "" {
		return raw, nil
	}
	resolved, err := ResolveImports(raw, filepath.Dir(file))
	if err != nil {
		return nil, fmt.Errorf("resolve imports: %w", err)
	}
	m, ok := resolved.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document must be a map, got %T", resolved)
	}
	return m, nil
}

// parseWorkflow parses a single CWL Workflow from a raw map.
func (l *loader) parseWorkflow(raw map[string]any) (*cwl.Workflow, error) {
	wf := &cwl.Workflow{
		ID:         cwl.TrimFragment(stringField(raw, "id")),
		Class:      stringField(raw, "class"),
		CWLVersion: stringField(raw, "cwlVersion"),
		Label:      stringField(raw, "label"),
		Doc:        docField(raw),
	}

	inputs, err := parsePorts(raw["inputs"])
	if err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	wf.Inputs = inputs

	outputs, err := parsePorts(raw["outputs"])
	if err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	wf.Outputs = outputs

	for _, e := range orderedEntries(raw["steps"]) {
		m, ok := e.value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("step %q: expected map, got %T", e.id, e.value)
		}
		step, err := l.parseStep(m, e.id)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", e.id, err)
		}
		wf.Steps = append(wf.Steps, step)
	}

	l.p.logger.Debug("parsed workflow", "id", wf.ID, "inputs", len(wf.Inputs),
		"outputs", len(wf.Outputs), "steps", len(wf.Steps))
	return wf, nil
}

// parseStep parses a single CWL workflow step from a raw map.
func (l *loader) parseStep(raw map[string]any, stepID string) (cwl.Step, error) {
	step := cwl.Step{
		ID:            cwl.TrimFragment(stepID),
		Scatter:       trimAll(stringOrSlice(raw["scatter"])),
		ScatterMethod: stringField(raw, "scatterMethod"),
		When:          stringField(raw, "when"),
	}

	for _, e := range orderedEntries(raw["in"]) {
		in := cwl.StepInput{ID: cwl.TrimFragment(e.id)}
		switch val := e.value.(type) {
		case string, []any:
			in.Sources = trimAll(stringOrSlice(val))
		case map[string]any:
			in.Sources = trimAll(stringOrSlice(val["source"]))
			in.ValueFrom = stringField(val, "valueFrom")
			in.Default = val["default"]
		case nil:
		default:
			return step, fmt.Errorf("input %q: unexpected type %T", e.id, e.value)
		}
		step.In = append(step.In, in)
	}

	if outs, ok := raw["out"].([]any); ok {
		for _, o := range outs {
			switch val := o.(type) {
			case string:
				step.Out = append(step.Out, cwl.TrimFragment(val))
			case map[string]any:
				step.Out = append(step.Out, cwl.TrimFragment(stringField(val, "id")))
			}
		}
	}

	run, err := l.resolveRun(raw["run"])
	if err != nil {
		return step, fmt.Errorf("run: %w", err)
	}
	step.Run = run
	return step, nil
}

// resolveRun turns a step's run field into an embedded tool. The field can
// be an inline process, a "#id" reference into the packed $graph, or a path
// relative to the current file (optionally with a "#id" fragment).
func (l *loader) resolveRun(v any) (cwl.EmbeddedTool, error) {
	switch val := v.(type) {
	case map[string]any:
		return l.embedded(val)
	case string:
		if strings.HasPrefix(val, "#") {
			return l.resolveFragment(val)
		}
		return l.resolveFile(val)
	case nil:
		return nil, fmt.Errorf("missing 'run'")
	default:
		return nil, fmt.Errorf("unexpected type %T", v)
	}
}

func (l *loader) resolveFragment(ref string) (cwl.EmbeddedTool, error) {
	if l.packed == nil {
		return nil, fmt.Errorf("reference %q outside a $graph document", ref)
	}
	entry, ok := l.packed.Entry(ref)
	if !ok {
		return nil, fmt.Errorf("reference %q not found in $graph", ref)
	}
	key := l.file + ref
	if l.visiting[key] {
		return nil, fmt.Errorf("circular run reference %q", ref)
	}
	l.visiting[key] = true
	defer delete(l.visiting, key)
	return l.embedded(entry)
}

func (l *loader) resolveFile(ref string) (cwl.EmbeddedTool, error) {
	if l.file == "" {
		return nil, fmt.Errorf("cannot load %q without a base directory", ref)
	}
	path, frag, _ := strings.Cut(ref, "#")
	path = strings.TrimPrefix(cwl.DecodeLocation(path), "file://")
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(l.file), path)
	}
	key := path
	if frag != "" {
		key += "#" + frag
	}
	if l.visiting[key] {
		return nil, fmt.Errorf("circular run reference %q", ref)
	}
	l.visiting[key] = true
	defer delete(l.visiting, key)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", ref, err)
	}
	raw, err := l.decode(data, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}

	// Nested files get their own $graph scope.
	savedFile, savedPacked := l.file, l.packed
	l.file, l.packed = path, nil
	defer func() { l.file, l.packed = savedFile, savedPacked }()

	doc := cwl.Document(raw)
	if doc.IsGraph() {
		l.packed = doc
		var entry cwl.Document
		var ok bool
		if frag != "" {
			entry, ok = doc.Entry(frag)
		} else {
			entry, ok = doc.Main()
		}
		if !ok {
			return nil, fmt.Errorf("%s: entry not found", ref)
		}
		doc = entry
	}
	l.p.logger.Debug("loaded run file", "path", path, "class", doc.Class())
	return l.embedded(doc)
}

// embedded parses a process object into the matching EmbeddedTool variant.
func (l *loader) embedded(raw map[string]any) (cwl.EmbeddedTool, error) {
	class := stringField(raw, "class")
	switch class {
	case "Workflow":
		wf, err := l.parseWorkflow(raw)
		if err != nil {
			return nil, err
		}
		return &cwl.SubWorkflow{Workflow: wf}, nil
	case "CommandLineTool", "ExpressionTool", "Operation":
		return parseTool(raw)
	default:
		return nil, fmt.Errorf("unsupported class %q", class)
	}
}

// parseTool parses the ports of a CommandLineTool, ExpressionTool or Operation.
func parseTool(raw map[string]any) (*cwl.LeafTool, error) {
	tool := &cwl.LeafTool{
		ID:    cwl.TrimFragment(stringField(raw, "id")),
		Class: stringField(raw, "class"),
		Label: stringField(raw, "label"),
		Doc:   docField(raw),
	}
	inputs, err := parsePorts(raw["inputs"])
	if err != nil {
		return nil, fmt.Errorf("inputs: %w", err)
	}
	outputs, err := parsePorts(raw["outputs"])
	if err != nil {
		return nil, fmt.Errorf("outputs: %w", err)
	}
	tool.Inputs, tool.Outputs = inputs, outputs
	return tool, nil
}

// wrapToolAsWorkflow wraps a bare tool in a synthetic single-step Workflow
// whose inputs and outputs mirror the tool's ports.
func (l *loader) wrapToolAsWorkflow(raw map[string]any) (*cwl.Workflow, error) {
	tool, err := parseTool(raw)
	if err != nil {
		return nil, err
	}
	if tool.ID == "" {
		tool.ID = "tool"
	}

	const stepID = "run_tool"
	wf := &cwl.Workflow{
		ID:         "main",
		Class:      "Workflow",
		CWLVersion: stringField(raw, "cwlVersion"),
		Label:      tool.Label,
		Doc:        tool.Doc,
	}
	step := cwl.Step{ID: stepID, Run: tool}
	for _, in := range tool.Inputs {
		id := shortID(in.ID)
		wf.Inputs = append(wf.Inputs, cwl.Port{ID: id, Type: in.Type, Label: in.Label})
		step.In = append(step.In, cwl.StepInput{ID: id, Sources: []string{id}})
	}
	for _, out := range tool.Outputs {
		id := shortID(out.ID)
		wf.Outputs = append(wf.Outputs, cwl.Port{ID: id, Type: out.Type, OutputSources: []string{stepID + "/" + id}})
		step.Out = append(step.Out, id)
	}
	wf.Steps = []cwl.Step{step}

	l.p.logger.Debug("auto-wrapped tool as workflow", "tool_id", tool.ID, "class", tool.Class)
	return wf, nil
}

// parsePorts parses map-style or array-style inputs/outputs.
func parsePorts(v any) ([]cwl.Port, error) {
	var ports []cwl.Port
	for _, e := range orderedEntries(v) {
		port := cwl.Port{ID: cwl.TrimFragment(e.id)}
		switch val := e.value.(type) {
		case string:
			port.Type = val
		case []any:
			port.Type = serializeCWLType(val)
		case map[string]any:
			port.Type = serializeCWLType(val["type"])
			port.Label = stringField(val, "label")
			port.OutputSources = trimAll(stringOrSlice(val["outputSource"]))
		case nil:
		default:
			return nil, fmt.Errorf("port %q: unexpected type %T", e.id, e.value)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

type entry struct {
	id    string
	value any
}

// orderedEntries normalizes array-style and map-style CWL lists. Array
// entries keep document order; map keys are sorted because YAML mappings
// carry no order.
func orderedEntries(v any) []entry {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]entry, 0, len(keys))
		for _, k := range keys {
			out = append(out, entry{id: k, value: val[k]})
		}
		return out
	case []any:
		var out []entry
		for _, item := range val {
			switch it := item.(type) {
			case map[string]any:
				if id, ok := it["id"].(string); ok {
					out = append(out, entry{id: id, value: it})
				}
			case string:
				out = append(out, entry{id: it})
			}
		}
		return out
	}
	return nil
}

// --- Helper functions ---

// serializeCWLType converts a complex CWL type (map or array) to a string tag.
// {type: array, items: File} becomes "File[]", ["null", "int"] becomes "int?".
func serializeCWLType(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any:
		base := stringField(t, "type")
		switch base {
		case "array":
			return serializeCWLType(t["items"]) + "[]"
		case "record", "enum":
			if name := stringField(t, "name"); name != "" {
				return base + ":" + shortID(name)
			}
		}
		return base
	case []any:
		for _, member := range t {
			if s, ok := member.(string); ok && s == "null" {
				continue
			}
			if inner := serializeCWLType(member); inner != "" {
				return inner + "?"
			}
		}
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// stringField safely extracts a string from a map.
func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	// Handle YAML type coercion (e.g., label: 42 parsed as int).
	return fmt.Sprintf("%v", v)
}

// docField returns doc, joining the list form CWL also allows.
func docField(m map[string]any) string {
	if lines, ok := m["doc"].([]any); ok {
		parts := make([]string, 0, len(lines))
		for _, line := range lines {
			parts = append(parts, fmt.Sprintf("%v", line))
		}
		return strings.Join(parts, "\n")
	}
	return stringField(m, "doc")
}

// stringOrSlice accepts a single string or a list of strings.
// YAML decoder produces []any, not []string.
func stringOrSlice(v any) []string {
	switch s := v.(type) {
	case string:
		if s == "" {
			return nil
		}
		return []string{s}
	case []any:
		var result []string
		for _, item := range s {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return nil
}

func trimAll(ids []string) []string {
	for i, id := range ids {
		ids[i] = cwl.TrimFragment(id)
	}
	return ids
}

// shortID drops the document and step prefix of a packed id.
func shortID(id string) string {
	if i := strings.LastIndexAny(id, "/#"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// ResolveImports recursively resolves $import directives in a CWL document.
// It loads referenced files and replaces the $import directive with the file contents.
func ResolveImports(v any, baseDir string) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if importPath, ok := val["$import"].(string); ok && len(val) == 1 {
			fullPath := importPath
			if !filepath.IsAbs(importPath) {
				fullPath = filepath.Join(baseDir, importPath)
			}

			data, err := os.ReadFile(fullPath)
			if err != nil {
				return nil, fmt.Errorf("read import %q: %w", importPath, err)
			}

			var imported any
			if err := yaml.Unmarshal(data, &imported); err != nil {
				return nil, fmt.Errorf("parse import %q: %w", importPath, err)
			}

			return ResolveImports(imported, filepath.Dir(fullPath))
		}

		result := make(map[string]any, len(val))
		for k, v := range val {
			resolved, err := ResolveImports(v, baseDir)
			if err != nil {
				return nil, err
			}
			result[k] = resolved
		}
		return result, nil

	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			resolved, err := ResolveImports(item, baseDir)
			if err != nil {
				return nil, err
			}
			result[i] = resolved
		}
		return result, nil

	default:
		return v, nil
	}
}
