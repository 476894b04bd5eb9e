package cwl

// Workflow is a typed representation of a CWL Workflow document.
// Inputs, outputs and steps keep the order in which the parser produced them;
// graph numbering follows that order.
type Workflow struct {
	ID         string
	Class      string
	CWLVersion string
	Label      string
	Doc        string
	Inputs     []Port
	Outputs    []Port
	Steps      []Step
}

// Port is a workflow or tool input/output parameter.
// OutputSources is only populated for workflow-level outputs.
type Port struct {
	ID            string
	Type          string
	Label         string
	OutputSources []string
}

// Step is a CWL workflow step.
type Step struct {
	ID            string
	In            []StepInput
	Out           []string
	Run           EmbeddedTool
	Scatter       []string
	ScatterMethod string // "dotproduct", "nested_crossproduct", or "flat_crossproduct"
	When          string
}

// StepInput is a normalized CWL step input.
// Handles both shorthand ("read1: reads_r1") and expanded form.
type StepInput struct {
	ID        string
	Sources   []string
	ValueFrom string
	Default   any
}

// Input returns the workflow input with the given id.
func (w *Workflow) Input(id string) (Port, bool) {
	return findPort(w.Inputs, id)
}

// Output returns the workflow output with the given id.
func (w *Workflow) Output(id string) (Port, bool) {
	return findPort(w.Outputs, id)
}

// Step returns a pointer to the step with the given id, or nil.
func (w *Workflow) Step(id string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// SubWorkflow returns the nested workflow run by this step, or nil for leaf tools.
func (s *Step) SubWorkflow() *Workflow {
	if s.Run == nil || s.Run.Kind() != ToolKindWorkflow {
		return nil
	}
	return s.Run.(*SubWorkflow).Workflow
}

func findPort(ports []Port, id string) (Port, bool) {
	for _, p := range ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}
