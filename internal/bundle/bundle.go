// Package bundle packs a CWL workflow and every file its steps run into a
// single $graph document, so it can be rendered where the referenced files
// are not available (the server never reads the local filesystem).
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/cwlviz/internal/parser"
)

// Result holds the output of bundling a workflow.
type Result struct {
	Packed []byte // The packed $graph YAML document
	Name   string // Workflow name (derived from filename)
}

// Bundle reads a CWL file, resolves $import directives and all run:
// references relative to the file that contains them, and produces a
// packed $graph document with the workflow as "#main". Packed documents and
// bare tools have nothing to inline and are returned unchanged.
func Bundle(workflowPath string) (*Result, error) {
	absPath, err := filepath.Abs(workflowPath)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	name := nameFromPath(workflowPath)

	doc, err := load(data, absPath)
	if err != nil {
		return nil, err
	}

	if _, ok := doc["$graph"]; ok {
		return &Result{Packed: data, Name: name}, nil
	}

	switch class, _ := doc["class"].(string); class {
	case "Workflow":
	case "CommandLineTool", "ExpressionTool", "Operation":
		out, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("marshal tool: %w", err)
		}
		return &Result{Packed: out, Name: name}, nil
	default:
		return nil, fmt.Errorf("expected class Workflow or a tool class, got %q", class)
	}

	p := &packer{
		ids:      map[string]string{},
		used:     map[string]bool{"main": true},
		visiting: map[string]bool{absPath: true},
	}
	if err := p.packSteps(doc, filepath.Dir(absPath)); err != nil {
		return nil, err
	}

	version := doc["cwlVersion"]
	delete(doc, "cwlVersion")
	doc["id"] = "main"
	p.graph = append(p.graph, doc)

	out, err := yaml.Marshal(map[string]any{
		"cwlVersion": version,
		"$graph":     p.graph,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal packed document: %w", err)
	}
	return &Result{Packed: out, Name: name}, nil
}

// packer accumulates the $graph entries of one bundle.
type packer struct {
	graph    []any
	ids      map[string]string // absolute path -> assigned id
	used     map[string]bool
	visiting map[string]bool
}

// packSteps rewrites every file run: reference of doc's steps to a "#id"
// fragment, packing the referenced file first.
func (p *packer) packSteps(doc map[string]any, dir string) error {
	for _, step := range steps(doc["steps"]) {
		runRef, ok := step["run"].(string)
		if !ok || strings.HasPrefix(runRef, "#") {
			continue
		}
		if strings.Contains(runRef, "#") {
			return fmt.Errorf("run %q: fragments into other files are not supported", runRef)
		}
		path := runRef
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		id, err := p.add(path, runRef)
		if err != nil {
			return err
		}
		step["run"] = "#" + id
	}
	return nil
}

// add packs the process at path and returns its id. Each file is packed
// once however many steps run it.
func (p *packer) add(path, ref string) (string, error) {
	if id, ok := p.ids[path]; ok {
		return id, nil
	}
	if p.visiting[path] {
		return "", fmt.Errorf("circular run reference %q", ref)
	}
	p.visiting[path] = true
	defer delete(p.visiting, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read tool %q: %w", ref, err)
	}
	doc, err := load(data, path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", ref, err)
	}
	if _, ok := doc["$graph"]; ok {
		return "", fmt.Errorf("%s: nested $graph documents are not supported", ref)
	}
	if doc["class"] == "Workflow" {
		if err := p.packSteps(doc, filepath.Dir(path)); err != nil {
			return "", err
		}
	}

	id := p.uniqueID(nameFromPath(path))
	doc["id"] = id
	delete(doc, "cwlVersion")
	p.ids[path] = id
	p.graph = append(p.graph, doc)
	return id, nil
}

func (p *packer) uniqueID(base string) string {
	id := base
	for i := 2; p.used[id]; i++ {
		id = fmt.Sprintf("%s-%d", base, i)
	}
	p.used[id] = true
	return id
}

// load decodes a CWL file and inlines its $import directives.
func load(data []byte, path string) (map[string]any, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	resolved, err := parser.ResolveImports(raw, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	doc, ok := resolved.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a mapping at top level, got %T", resolved)
	}
	return doc, nil
}

// steps returns the step objects of a map-style or array-style steps field,
// map keys in sorted order.
func steps(v any) []map[string]any {
	var out []map[string]any
	switch s := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if m, ok := s[k].(map[string]any); ok {
				out = append(out, m)
			}
		}
	case []any:
		for _, step := range s {
			if m, ok := step.(map[string]any); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// nameFromPath derives a workflow name from its file path.
func nameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
