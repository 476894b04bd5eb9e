package dotgraph

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/cwlviz/pkg/cwl"
)

// singleStepWorkflow has one input feeding step1/in1 through valueFrom and
// one output fed by step1/out.
func singleStepWorkflow(inputID, outputID string) *cwl.Workflow {
	return &cwl.Workflow{
		ID:      "test_workflow",
		Inputs:  []cwl.Port{{ID: inputID}},
		Outputs: []cwl.Port{{ID: outputID, OutputSources: []string{"step1/out"}}},
		Steps: []cwl.Step{{
			ID: "step1",
			In: []cwl.StepInput{{
				ID:        "in1",
				Sources:   []string{inputID},
				ValueFrom: "$(inputs.input1)",
			}},
			Out: []string{"out"},
			Run: &cwl.LeafTool{
				Inputs:  []cwl.Port{{ID: "in1"}},
				Outputs: []cwl.Port{{ID: "out"}},
			},
		}},
	}
}

func runWorkflowDot(t *testing.T, wf *cwl.Workflow, opts Options) (*GenerationContext, string) {
	t.Helper()
	var buf bytes.Buffer
	c := NewGenerationContext(debugLogger(&buf), opts)
	c.WorkflowDot(wf, 1, "test_workflow_id")
	return c, buf.String()
}

func arrowsContaining(c *GenerationContext, substr string) int {
	n := 0
	for _, a := range c.Arrows() {
		if strings.Contains(a.String(), substr) {
			n++
		}
	}
	return n
}

func TestWorkflowDot_FileSourceWarns(t *testing.T) {
	c, output := runWorkflowDot(t, singleStepWorkflow("file://input/path", "out"), DefaultOptions())

	assert.Contains(t, output, "[WARNING_ARROW] source_num is None for file-based source: file://input/path")
	assert.NotContains(t, output, "target_num is None")
	assert.Equal(t, []string{"[WARNING_ARROW] source_num is None for file-based source: file://input/path"}, c.Warnings())

	_, ok := c.Registry().Lookup("test_workflow_id", "file://input/path")
	assert.False(t, ok)

	// The output still resolves normally.
	assert.Equal(t, []string{
		`value_from_node_0_2 -> step_0_0 [headlabel="in1"];`,
		`step_0_0 -> output_0_1 [taillabel="out"];`,
	}, c.Graph("g").ArrowStrings())
}

func TestWorkflowDot_FileTargetWarns(t *testing.T) {
	c, output := runWorkflowDot(t, singleStepWorkflow("in", "file://output/path"), DefaultOptions())

	assert.Contains(t, output, "[WARNING_ARROW] target_num is None for file-based target: file://output/path")
	assert.NotContains(t, output, "source_num is None")
	assert.Equal(t, 0, arrowsContaining(c, "file://output/path"))
	assert.Len(t, c.Arrows(), 2)
}

func TestWorkflowDot_NoWarningsForNonFilePorts(t *testing.T) {
	c, output := runWorkflowDot(t, singleStepWorkflow("in", "out"), DefaultOptions())

	assert.NotContains(t, output, "[WARNING_ARROW] source_num is None")
	assert.NotContains(t, output, "[WARNING_ARROW] target_num is None")
	assert.Empty(t, c.Warnings())

	// inputs, then steps, then outputs, then synthetic nodes
	assert.Equal(t, []string{
		`input_0_0 -> value_from_node_0_3;`,
		`value_from_node_0_3 -> step_0_1 [headlabel="in1"];`,
		`step_0_1 -> output_0_2 [taillabel="out"];`,
	}, c.Graph("g").ArrowStrings())
	assert.Contains(t, output, "[DEBUG_ARROW] Generated arrow: input_0_0 -> value_from_node_0_3;")
	assert.Contains(t, output, "[DEBUG_MATCH] Match found for tool_id: in1")
}

func TestWorkflowDot_SkipsUnresolvedFileEndpoints(t *testing.T) {
	c, output := runWorkflowDot(t, singleStepWorkflow("file://input/path", "file://output/path"), DefaultOptions())

	assert.Contains(t, output, "[WARNING_ARROW] source_num is None for file-based source: file://input/path")
	assert.Contains(t, output, "[WARNING_ARROW] target_num is None for file-based target: file://output/path")

	require.Len(t, c.Arrows(), 1)
	assert.Equal(t, 1, arrowsContaining(c, "value_from_node"))
	assert.Equal(t, 0, arrowsContaining(c, "file://input/path"))
	assert.Equal(t, 0, arrowsContaining(c, "file://output/path"))
	assert.Equal(t, `value_from_node_0_1 -> step_0_0 [headlabel="in1"];`, c.Arrows()[0].String())
}

func TestWorkflowDot_PlainBinding(t *testing.T) {
	wf := singleStepWorkflow("in", "out")
	wf.Steps[0].In[0].ValueFrom = ""

	c, output := runWorkflowDot(t, wf, DefaultOptions())

	assert.NotContains(t, output, "source_num is None")
	assert.NotEmpty(t, c.Arrows())
	assert.Equal(t, `input_0_0 -> step_0_1 [headlabel="in1"];`, c.Arrows()[0].String())
	assert.Equal(t, 0, arrowsContaining(c, "value_from_node"))
}

func TestWorkflowDot_FileNodes(t *testing.T) {
	c, output := runWorkflowDot(t, singleStepWorkflow("file://input/path", "file://output/path"),
		Options{RankDir: "LR", FileNodes: true})

	assert.NotContains(t, output, "[WARNING_ARROW]")
	assert.Empty(t, c.Warnings())
	assert.Equal(t, []string{
		`file_0_0 -> value_from_node_0_3;`,
		`value_from_node_0_3 -> step_0_1 [headlabel="in1"];`,
		`step_0_1 -> file_0_2 [taillabel="out"];`,
	}, c.Graph("g").ArrowStrings())
}

func TestWorkflowDot_DeclareFile(t *testing.T) {
	var buf bytes.Buffer
	c := NewGenerationContext(debugLogger(&buf), DefaultOptions())

	n := c.DeclareFile("test_workflow_id", "file://input/path")
	assert.Equal(t, NodeFile, n.Kind)
	assert.Equal(t, 0, n.Num)

	c.WorkflowDot(singleStepWorkflow("file://input/path", "out"), 1, "test_workflow_id")

	assert.NotContains(t, buf.String(), "source_num is None")
	assert.Equal(t, 1, arrowsContaining(c, "file_0_0 -> value_from_node"))
}

func TestWorkflowDot_RestoresIndentLevel(t *testing.T) {
	c := NewGenerationContext(testLogger(), DefaultOptions())
	c.WorkflowDot(nestedWorkflow(), 3, "main")
	assert.Equal(t, 0, c.IndentLevel())
}

func TestWorkflowDot_InvalidExpressionWarns(t *testing.T) {
	wf := singleStepWorkflow("in", "out")
	wf.Steps[0].In[0].ValueFrom = "$(inputs.input1 +)"
	wf.Steps[0].When = "$(inputs.run)"

	c, _ := runWorkflowDot(t, wf, DefaultOptions())

	require.Len(t, c.Warnings(), 1)
	assert.True(t, strings.HasPrefix(c.Warnings()[0], "[WARNING_EXPR] step1/in1 valueFrom:"))
	// The edge pair is drawn anyway.
	assert.Equal(t, 2, arrowsContaining(c, "value_from_node"))
}

// nestedWorkflow is main(reads) -> align[sub: fastq -> sort -> bam] -> report, result.
func nestedWorkflow() *cwl.Workflow {
	sub := &cwl.Workflow{
		ID:      "align.cwl",
		Inputs:  []cwl.Port{{ID: "fastq"}},
		Outputs: []cwl.Port{{ID: "bam", OutputSources: []string{"sort/sorted"}}},
		Steps: []cwl.Step{{
			ID:  "sort",
			In:  []cwl.StepInput{{ID: "in", Sources: []string{"fastq"}}},
			Out: []string{"sorted"},
			Run: &cwl.LeafTool{
				Inputs:  []cwl.Port{{ID: "in"}},
				Outputs: []cwl.Port{{ID: "sorted"}},
			},
		}},
	}
	return &cwl.Workflow{
		ID:      "main",
		Inputs:  []cwl.Port{{ID: "reads"}},
		Outputs: []cwl.Port{{ID: "result", OutputSources: []string{"align/bam"}}},
		Steps: []cwl.Step{
			{
				ID:  "align",
				In:  []cwl.StepInput{{ID: "fastq", Sources: []string{"reads"}}},
				Out: []string{"bam"},
				Run: &cwl.SubWorkflow{Workflow: sub},
			},
			{
				ID:  "report",
				In:  []cwl.StepInput{{ID: "bam", Sources: []string{"align/bam"}}},
				Out: []string{"html"},
				Run: &cwl.LeafTool{
					Inputs:  []cwl.Port{{ID: "bam"}},
					Outputs: []cwl.Port{{ID: "html"}},
				},
			},
		},
	}
}

func subWorkflowWithFilePorts() *cwl.Workflow {
	sub := &cwl.Workflow{
		ID:      "inner",
		Inputs:  []cwl.Port{{ID: "file://input/path"}},
		Outputs: []cwl.Port{{ID: "file://output/path", OutputSources: []string{"file://input/path"}}},
	}
	return &cwl.Workflow{
		ID:      "main",
		Inputs:  []cwl.Port{{ID: "reads"}},
		Outputs: []cwl.Port{{ID: "result", OutputSources: []string{"inner/path"}}},
		Steps: []cwl.Step{{
			ID:  "inner",
			In:  []cwl.StepInput{{ID: "path", Sources: []string{"reads"}}},
			Out: []string{"path"},
			Run: &cwl.SubWorkflow{Workflow: sub},
		}},
	}
}

func TestGenerate_SubWorkflowFilePortsWarn(t *testing.T) {
	g := Generate(subWorkflowWithFilePorts(), testLogger(), DefaultOptions())

	assert.Empty(t, g.Arrows)
	assert.Equal(t, []string{
		"[WARNING_ARROW] target_num is None for file-based target: file://input/path",
		"[WARNING_ARROW] source_num is None for file-based source: file://input/path",
		"[WARNING_ARROW] target_num is None for file-based target: file://output/path",
		"[WARNING_ARROW] source_num is None for file-based source: file://output/path",
	}, g.Warnings)
}

func TestGenerate_SubWorkflowFilePortsAsNodes(t *testing.T) {
	g := Generate(subWorkflowWithFilePorts(), testLogger(), Options{RankDir: "LR", FileNodes: true})

	assert.Empty(t, g.Warnings)
	assert.Equal(t, []string{
		"input_0_0 -> file_1_0;",
		"file_1_0 -> file_1_1;",
		"file_1_1 -> output_0_1;",
	}, g.ArrowStrings())
}

func TestGenerate_ValueFromTooltipListsInputs(t *testing.T) {
	g := Generate(singleStepWorkflow("input1", "out"), testLogger(), DefaultOptions())

	var vf *Node
	for _, n := range g.Nodes {
		if n.Kind == NodeValueFrom {
			vf = n
		}
	}
	require.NotNil(t, vf)
	assert.Equal(t, "$(inputs.input1)\nreads: input1", vf.Tooltip)
}

func TestGenerate_NestedSubWorkflow(t *testing.T) {
	g := Generate(nestedWorkflow(), testLogger(), DefaultOptions())

	assert.Empty(t, g.Warnings)
	assert.Equal(t, []string{
		`input_0_0 -> input_1_0;`,
		`input_1_0 -> step_1_1 [headlabel="in"];`,
		`step_1_1 -> output_1_2 [taillabel="sorted"];`,
		`output_1_2 -> step_0_1 [headlabel="bam"];`,
		`output_1_2 -> output_0_2;`,
	}, g.ArrowStrings())

	scopes := make(map[string]int)
	for _, n := range g.Nodes {
		scopes[n.Scope]++
	}
	assert.Equal(t, map[string]int{"main": 3, "main/align": 3}, scopes)
}

func TestGenerate_SiblingSubWorkflowsDoNotCollide(t *testing.T) {
	wf := nestedWorkflow()
	second := wf.Steps[0]
	second.ID = "align2"
	wf.Steps = append(wf.Steps, second)

	var buf bytes.Buffer
	c := NewGenerationContext(debugLogger(&buf), DefaultOptions())
	c.WorkflowDot(wf, 0, "main")

	r := c.Registry()
	n1, ok1 := r.Lookup("main/align", "fastq")
	n2, ok2 := r.Lookup("main/align2", "fastq")
	require.True(t, ok1)
	require.True(t, ok2)
	assert.Equal(t, n1, n2)
	assert.NotEqual(t, r.Scope("main/align"), r.Scope("main/align2"))
}

func TestGenerate_MultipleSources(t *testing.T) {
	wf := &cwl.Workflow{
		ID:     "merge",
		Inputs: []cwl.Port{{ID: "a"}, {ID: "b"}},
		Steps: []cwl.Step{{
			ID:  "cat",
			In:  []cwl.StepInput{{ID: "files", Sources: []string{"a", "b"}}},
			Out: []string{"out"},
			Run: &cwl.LeafTool{Inputs: []cwl.Port{{ID: "files"}}, Outputs: []cwl.Port{{ID: "out"}}},
		}},
	}

	g := Generate(wf, testLogger(), DefaultOptions())

	assert.Equal(t, []string{
		`input_0_0 -> step_0_2 [headlabel="files"];`,
		`input_0_1 -> step_0_2 [headlabel="files"];`,
	}, g.ArrowStrings())
}

func TestGenerate_ConditionalAndScatterSteps(t *testing.T) {
	wf := singleStepWorkflow("in", "out")
	wf.Steps[0].In[0].ValueFrom = ""
	wf.Steps[0].When = "$(inputs.in1 != null)"
	wf.Steps[0].Scatter = []string{"#main/step1/in1"}
	wf.Steps[0].ScatterMethod = "dotproduct"

	g := Generate(wf, testLogger(), DefaultOptions())

	var step *Node
	for _, n := range g.Nodes {
		if n.Kind == NodeStep {
			step = n
		}
	}
	require.NotNil(t, step)
	assert.True(t, step.Conditional)
	assert.True(t, step.Scatter)
	assert.Equal(t, "when: $(inputs.in1 != null)\nscatter: in1 (dotproduct)", step.Tooltip)
	assert.Empty(t, g.Warnings)
}

func TestGenerate_UnknownSourceBecomesImplicitNode(t *testing.T) {
	wf := singleStepWorkflow("in", "out")
	wf.Outputs[0].OutputSources = []string{"ghost/result"}

	g := Generate(wf, testLogger(), DefaultOptions())

	var implicit []*Node
	for _, n := range g.Nodes {
		if n.Kind == NodeImplicit {
			implicit = append(implicit, n)
		}
	}
	require.Len(t, implicit, 1)
	assert.Equal(t, "result", implicit[0].Label)
	assert.Contains(t, g.ArrowStrings(), fmt.Sprintf("%s -> output_0_2;", implicit[0].Name))
}

func TestGenerationContext_Reset(t *testing.T) {
	c := NewGenerationContext(testLogger(), DefaultOptions())
	c.WorkflowDot(singleStepWorkflow("file://input/path", "out"), 1, "test_workflow_id")
	require.NotEmpty(t, c.Arrows())
	require.NotEmpty(t, c.Warnings())

	c.Reset()

	assert.Empty(t, c.Arrows())
	assert.Empty(t, c.Warnings())
	assert.Empty(t, c.Registry().Scopes())

	c.WorkflowDot(singleStepWorkflow("in", "out"), 1, "test_workflow_id")
	assert.Empty(t, c.Warnings())
	assert.Len(t, c.Arrows(), 3)
}

func TestGenerate_IndependentRunsConcurrently(t *testing.T) {
	want := Generate(nestedWorkflow(), testLogger(), DefaultOptions()).ArrowStrings()

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Generate(nestedWorkflow(), testLogger(), DefaultOptions()).ArrowStrings()
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, want, got, "run %d", i)
	}
}

func TestGraph_WriteDOT(t *testing.T) {
	wf := nestedWorkflow()
	wf.Steps[0].When = "$(inputs.fastq != null)"
	g := Generate(wf, testLogger(), DefaultOptions())

	var buf bytes.Buffer
	require.NoError(t, g.WriteDOT(&buf))
	dot := buf.String()

	assert.True(t, strings.HasPrefix(dot, "digraph \"main\" {\n"))
	assert.Contains(t, dot, "  rankdir=LR;\n")
	assert.Contains(t, dot, `  input_0_0 [label="reads" shape=ellipse`)
	// Nested clusters start at the same depth as the root's nodes.
	assert.Contains(t, dot, "\n  subgraph cluster_1 {\n")
	assert.Contains(t, dot, "\n    label=\"align\";\n")
	assert.Contains(t, dot, "\n    style=\"rounded,dashed\";\n")
	assert.Contains(t, dot, "\n    step_1_1 [label=\"sort\" shape=box")
	assert.Contains(t, dot, "\n  }\n")
	assert.NotContains(t, dot, "\n    subgraph cluster_1")
	assert.Contains(t, dot, "  output_1_2 -> output_0_2;\n")
	assert.NotContains(t, dot, "cluster_0")
	assert.True(t, strings.HasSuffix(dot, "}\n"))
}

func TestArrow_String(t *testing.T) {
	assert.Equal(t, "a -> b;", Arrow{From: "a", To: "b"}.String())
	assert.Equal(t, `a -> b [taillabel="x" headlabel="y"];`, Arrow{From: "a", To: "b", TailLabel: "x", HeadLabel: "y"}.String())
	assert.Equal(t, `a -> b [headlabel="say \"hi\""];`, Arrow{From: "a", To: "b", HeadLabel: `say "hi"`}.String())
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}
