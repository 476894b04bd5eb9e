package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/me/cwlviz/pkg/cwl"
)

// step builds a leaf step reading the given sources through input "x".
func step(id string, sources ...string) cwl.Step {
	return cwl.Step{
		ID:  id,
		In:  []cwl.StepInput{{ID: "x", Sources: sources}},
		Out: []string{"out"},
		Run: &cwl.LeafTool{ID: "t"},
	}
}

func makeWorkflow(steps ...cwl.Step) *cwl.Workflow {
	return &cwl.Workflow{ID: "main", Class: "Workflow", Steps: steps}
}

func TestBuildDAG_LinearPipeline(t *testing.T) {
	// annotate is declared first but depends on assemble.
	wf := makeWorkflow(
		step("annotate", "assemble/contigs"),
		step("assemble", "reads_r1"),
	)

	dag, err := BuildDAG(wf)
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}

	if !reflect.DeepEqual(dag.Order, []string{"assemble", "annotate"}) {
		t.Errorf("Order = %v, want [assemble annotate]", dag.Order)
	}
	if deps := dag.Edges["annotate"]; len(deps) != 1 || deps[0] != "assemble" {
		t.Errorf("annotate deps = %v, want [assemble]", deps)
	}
	if deps := dag.Edges["assemble"]; len(deps) != 0 {
		t.Errorf("assemble deps = %v, want []", deps)
	}
}

func TestBuildDAG_ParallelStepsKeepDocumentOrder(t *testing.T) {
	wf := makeWorkflow(
		step("step_b", "wf_input"),
		step("step_a", "wf_input"),
	)

	dag, err := BuildDAG(wf)
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}
	if !reflect.DeepEqual(dag.Order, []string{"step_b", "step_a"}) {
		t.Errorf("Order = %v, want [step_b step_a]", dag.Order)
	}
	if len(dag.Edges) != 0 {
		t.Errorf("Edges = %v, want none", dag.Edges)
	}
}

func TestBuildDAG_DiamondShape(t *testing.T) {
	// a -> b, a -> c, b -> d, c -> d
	wf := makeWorkflow(
		step("a", "input"),
		step("b", "a/out"),
		step("c", "a/out"),
		step("d", "b/out", "c/out"),
	)

	dag, err := BuildDAG(wf)
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}
	if !reflect.DeepEqual(dag.Order, []string{"a", "b", "c", "d"}) {
		t.Errorf("Order = %v, want [a b c d]", dag.Order)
	}
	if !reflect.DeepEqual(dag.Edges["d"], []string{"b", "c"}) {
		t.Errorf("d deps = %v, want [b c]", dag.Edges["d"])
	}
}

func TestBuildDAG_DuplicateSourcesCountOnce(t *testing.T) {
	s := step("b", "a/out")
	s.In = append(s.In, cwl.StepInput{ID: "y", Sources: []string{"a/other"}})
	wf := makeWorkflow(step("a", "input"), s)

	dag, err := BuildDAG(wf)
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}
	if !reflect.DeepEqual(dag.Edges["b"], []string{"a"}) {
		t.Errorf("b deps = %v, want [a]", dag.Edges["b"])
	}
}

func TestBuildDAG_PackedIDs(t *testing.T) {
	wf := makeWorkflow(
		step("main/sort", "main/align/bam"),
		step("main/align", "main/reads"),
	)

	dag, err := BuildDAG(wf)
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}
	if !reflect.DeepEqual(dag.Order, []string{"main/align", "main/sort"}) {
		t.Errorf("Order = %v, want [main/align main/sort]", dag.Order)
	}
}

func TestBuildDAG_CycleDetected(t *testing.T) {
	wf := makeWorkflow(
		step("a", "b/out"),
		step("b", "a/out"),
	)

	_, err := BuildDAG(wf)
	if err == nil {
		t.Fatal("expected cycle error")
	}
	if !strings.Contains(err.Error(), "cycle involving steps: a, b") {
		t.Errorf("error = %q, want to name a and b", err.Error())
	}
}

func TestBuildDAG_SelfLoop(t *testing.T) {
	_, err := BuildDAG(makeWorkflow(step("a", "a/out")))
	if err == nil {
		t.Fatal("expected self-loop error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error = %q, want to contain 'cycle'", err.Error())
	}
}

func TestBuildDAG_Empty(t *testing.T) {
	dag, err := BuildDAG(makeWorkflow())
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}
	if len(dag.Order) != 0 {
		t.Errorf("Order = %v, want empty", dag.Order)
	}
}

func TestBuildDAG_ParsedWorkflow(t *testing.T) {
	p := testParser()
	doc, err := p.ParseFile(testdataPath("workflows/pipeline.cwl"))
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	dag, err := BuildDAG(doc.Workflow)
	if err != nil {
		t.Fatalf("BuildDAG: %v", err)
	}
	if !reflect.DeepEqual(dag.Order, []string{"trim", "align", "report"}) {
		t.Errorf("Order = %v, want [trim align report]", dag.Order)
	}
}
