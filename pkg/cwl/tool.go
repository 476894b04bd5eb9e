package cwl

// ToolKind discriminates the two shapes a step's embedded tool can take.
type ToolKind int

const (
	// ToolKindLeaf is a CommandLineTool, ExpressionTool or Operation.
	ToolKindLeaf ToolKind = iota
	// ToolKindWorkflow is a nested Workflow.
	ToolKindWorkflow
)

func (k ToolKind) String() string {
	switch k {
	case ToolKindLeaf:
		return "leaf"
	case ToolKindWorkflow:
		return "workflow"
	default:
		return "unknown"
	}
}

// EmbeddedTool is the process a step runs: either a *LeafTool or a *SubWorkflow.
type EmbeddedTool interface {
	Kind() ToolKind
	ToolID() string
	ToolInputs() []Port
	ToolOutputs() []Port
}

// LeafTool is a process without steps of its own.
// See https://www.commonwl.org/v1.2/CommandLineTool.html
type LeafTool struct {
	ID      string
	Class   string // "CommandLineTool", "ExpressionTool" or "Operation"
	Label   string
	Doc     string
	Inputs  []Port
	Outputs []Port
}

func (t *LeafTool) Kind() ToolKind      { return ToolKindLeaf }
func (t *LeafTool) ToolID() string      { return t.ID }
func (t *LeafTool) ToolInputs() []Port  { return t.Inputs }
func (t *LeafTool) ToolOutputs() []Port { return t.Outputs }

// SubWorkflow wraps a nested Workflow run by a step.
type SubWorkflow struct {
	Workflow *Workflow
}

func (t *SubWorkflow) Kind() ToolKind      { return ToolKindWorkflow }
func (t *SubWorkflow) ToolID() string      { return t.Workflow.ID }
func (t *SubWorkflow) ToolInputs() []Port  { return t.Workflow.Inputs }
func (t *SubWorkflow) ToolOutputs() []Port { return t.Workflow.Outputs }
