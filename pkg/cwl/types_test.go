package cwl

import "testing"

func TestDocument_Class(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{"workflow", Document{"class": "Workflow"}, "Workflow"},
		{"tool", Document{"class": "CommandLineTool"}, "CommandLineTool"},
		{"missing", Document{}, ""},
		{"wrong type", Document{"class": 42}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.Class(); got != tt.want {
				t.Errorf("Class() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocument_ID(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{"present", Document{"id": "main"}, "main"},
		{"fragment", Document{"id": "#main"}, "main"},
		{"missing", Document{}, ""},
		{"wrong type", Document{"id": 123}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.ID(); got != tt.want {
				t.Errorf("ID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocument_CWLVersion(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want string
	}{
		{"v1.2", Document{"cwlVersion": "v1.2"}, "v1.2"},
		{"missing", Document{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.CWLVersion(); got != tt.want {
				t.Errorf("CWLVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocument_IsGraph(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want bool
	}{
		{"graph present", Document{"$graph": []any{}}, true},
		{"no graph", Document{"class": "Workflow"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.IsGraph(); got != tt.want {
				t.Errorf("IsGraph() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDocument_Graph(t *testing.T) {
	t.Run("valid graph", func(t *testing.T) {
		doc := Document{
			"$graph": []any{
				map[string]any{"id": "tool1", "class": "CommandLineTool"},
				map[string]any{"id": "main", "class": "Workflow"},
			},
		}
		g := doc.Graph()
		if len(g) != 2 {
			t.Fatalf("Graph() returned %d entries, want 2", len(g))
		}
		if g[0].ID() != "tool1" {
			t.Errorf("Graph()[0].ID() = %q, want %q", g[0].ID(), "tool1")
		}
		if g[1].Class() != "Workflow" {
			t.Errorf("Graph()[1].Class() = %q, want %q", g[1].Class(), "Workflow")
		}
	})

	t.Run("no graph", func(t *testing.T) {
		doc := Document{"class": "Workflow"}
		if g := doc.Graph(); g != nil {
			t.Errorf("Graph() = %v, want nil", g)
		}
	})

	t.Run("wrong type", func(t *testing.T) {
		doc := Document{"$graph": "not a slice"}
		if g := doc.Graph(); g != nil {
			t.Errorf("Graph() = %v, want nil", g)
		}
	})

	t.Run("skips non-map entries", func(t *testing.T) {
		doc := Document{
			"$graph": []any{
				map[string]any{"id": "tool1"},
				"not a map",
				42,
			},
		}
		g := doc.Graph()
		if len(g) != 1 {
			t.Fatalf("Graph() returned %d entries, want 1", len(g))
		}
	})
}

func TestDocument_EntryAndMain(t *testing.T) {
	packed := Document{
		"$graph": []any{
			map[string]any{"id": "#tool1", "class": "CommandLineTool"},
			map[string]any{"id": "#sub", "class": "Workflow"},
			map[string]any{"id": "#main", "class": "Workflow"},
		},
	}

	if e, ok := packed.Entry("#tool1"); !ok || e.Class() != "CommandLineTool" {
		t.Errorf("Entry(#tool1) = %v, %v", e, ok)
	}
	if _, ok := packed.Entry("tool1"); !ok {
		t.Error("Entry(tool1) should match without the fragment marker")
	}
	if _, ok := packed.Entry("missing"); ok {
		t.Error("Entry(missing) should not match")
	}

	main, ok := packed.Main()
	if !ok || main.ID() != "main" {
		t.Errorf("Main() = %q, want main", main.ID())
	}

	noMain := Document{
		"$graph": []any{
			map[string]any{"id": "#tool1", "class": "CommandLineTool"},
			map[string]any{"id": "#wf", "class": "Workflow"},
		},
	}
	if m, _ := noMain.Main(); m.ID() != "wf" {
		t.Errorf("Main() without #main = %q, want wf", m.ID())
	}

	if _, ok := (Document{"$graph": []any{}}).Main(); ok {
		t.Error("Main() of empty graph should report false")
	}
}

func TestDecodeLocation(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"item %231.txt", "item #1.txt"},
		{"file:///data/reads%20r1.fq", "file:///data/reads r1.fq"},
		{"https://example.org/a%20b", "https://example.org/a%20b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := DecodeLocation(tt.in); got != tt.want {
			t.Errorf("DecodeLocation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStep_SubWorkflow(t *testing.T) {
	inner := &Workflow{ID: "inner"}
	nested := Step{ID: "s1", Run: &SubWorkflow{Workflow: inner}}
	leaf := Step{ID: "s2", Run: &LeafTool{ID: "tool"}}

	if nested.SubWorkflow() != inner {
		t.Error("SubWorkflow() should return the nested workflow")
	}
	if leaf.SubWorkflow() != nil {
		t.Error("SubWorkflow() should be nil for a leaf tool")
	}
	if (&Step{ID: "s3"}).SubWorkflow() != nil {
		t.Error("SubWorkflow() should be nil without a run")
	}
	if nested.Run.Kind() != ToolKindWorkflow || leaf.Run.Kind() != ToolKindLeaf {
		t.Errorf("Kind() = %v/%v", nested.Run.Kind(), leaf.Run.Kind())
	}
}
