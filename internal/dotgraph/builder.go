// Package dotgraph turns a parsed CWL workflow into a node-and-edge graph.
//
// A GenerationContext owns all mutable state of one run: the node Registry,
// the ordered arrow sequence and the collected warnings. Endpoints that cannot
// be resolved are reported and skipped; traversal always runs to completion.
package dotgraph

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/me/cwlviz/internal/cwlexpr"
	"github.com/me/cwlviz/pkg/cwl"
)

// DefaultWorkflowID names the root scope of a workflow without an id.
const DefaultWorkflowID = "main"

// Options tunes graph generation.
type Options struct {
	// RankDir is the Graphviz rankdir attribute ("LR", "TB", ...).
	RankDir string
	// FileNodes declares file-literal workflow ports as nodes instead of
	// leaving them unresolved.
	FileNodes bool
}

// DefaultOptions returns left-to-right layout without file nodes.
func DefaultOptions() Options {
	return Options{RankDir: "LR"}
}

type nodeKey struct {
	scope string
	key   string
}

// GenerationContext carries the state of one graph generation run.
// It is not safe for concurrent use; give every run its own context.
type GenerationContext struct {
	logger   *slog.Logger
	resolver *Resolver
	registry *Registry
	opts     Options

	arrows      []Arrow
	warnings    []string
	indentLevel int

	nodes      []*Node
	nodeIndex  map[nodeKey]*Node
	clusters   map[string]*cluster
	roots      []*cluster
	stack      []*cluster
	registered map[string]bool
}

// NewGenerationContext creates an empty context.
func NewGenerationContext(logger *slog.Logger, opts Options) *GenerationContext {
	logger = logger.With("component", "dotgraph")
	c := &GenerationContext{
		logger:   logger,
		resolver: NewResolver(logger),
		registry: NewRegistry(),
		opts:     opts,
	}
	c.Reset()
	return c
}

// Reset clears the registry, arrows, warnings and node declarations so the
// context can serve another independent run. Never call it mid-traversal.
func (c *GenerationContext) Reset() {
	c.registry.Reset()
	c.arrows = nil
	c.warnings = nil
	c.indentLevel = 0
	c.nodes = nil
	c.nodeIndex = make(map[nodeKey]*Node)
	c.clusters = make(map[string]*cluster)
	c.roots = nil
	c.stack = nil
	c.registered = make(map[string]bool)
}

// Registry exposes the node numbering of the current run.
func (c *GenerationContext) Registry() *Registry { return c.registry }

// Arrows returns the edges drawn so far, in traversal order.
func (c *GenerationContext) Arrows() []Arrow { return c.arrows }

// Warnings returns the warning diagnostics emitted so far.
func (c *GenerationContext) Warnings() []string { return c.warnings }

// IndentLevel returns the current nesting level.
func (c *GenerationContext) IndentLevel() int { return c.indentLevel }

// Generate renders wf in a fresh context and returns the resulting graph.
func Generate(wf *cwl.Workflow, logger *slog.Logger, opts Options) *Graph {
	c := NewGenerationContext(logger, opts)
	id := wf.ID
	if id == "" {
		id = DefaultWorkflowID
	}
	c.WorkflowDot(wf, 0, id)
	return c.Graph(id)
}

// Graph snapshots the current run.
func (c *GenerationContext) Graph(name string) *Graph {
	g := &Graph{
		Name:     name,
		RankDir:  c.opts.RankDir,
		Nodes:    append([]*Node(nil), c.nodes...),
		Arrows:   append([]Arrow(nil), c.arrows...),
		Warnings: append([]string(nil), c.warnings...),
	}
	g.roots = append(g.roots, c.roots...)
	// Scopes registered but never entered still need to be rendered.
	for _, scope := range c.registry.Scopes() {
		if cl, ok := c.clusters[scope]; ok && cl.parent == nil && !containsCluster(g.roots, cl) {
			g.roots = append(g.roots, cl)
		}
	}
	return g
}

// WorkflowDot walks wf (scope workflowID, nesting level level), declares its
// nodes and appends its edges. Nested sub-workflows are visited recursively
// at level+1 in the scope "<workflowID>/<stepID>".
func (c *GenerationContext) WorkflowDot(wf *cwl.Workflow, level int, workflowID string) {
	saved := c.indentLevel
	c.indentLevel = level
	defer func() { c.indentLevel = saved }()

	cl := c.clusterFor(workflowID)
	cl.level = level
	if cl.parent == nil && len(c.stack) > 0 {
		parent := c.stack[len(c.stack)-1]
		cl.parent = parent
		parent.children = append(parent.children, cl)
	} else if cl.parent == nil && !containsCluster(c.roots, cl) {
		c.roots = append(c.roots, cl)
	}
	c.stack = append(c.stack, cl)
	defer func() { c.stack = c.stack[:len(c.stack)-1] }()

	c.logger.Debug("enter workflow", "workflow_id", workflowID, "level", level, "steps", len(wf.Steps))

	c.registerScope(wf, workflowID)

	for i := range wf.Steps {
		step := &wf.Steps[i]
		c.drawStepBindings(wf, step, workflowID)

		if sub := step.SubWorkflow(); sub != nil {
			child := childScope(workflowID, step.ID)
			c.WorkflowDot(sub, level+1, child)
			c.clusterFor(child).conditional = step.When != ""
		} else {
			c.registerLeaf(step, workflowID)
		}
	}

	c.drawOutputEdges(wf, workflowID)
	c.logger.Debug("exit workflow", "workflow_id", workflowID, "nodes", c.registry.Len(workflowID))
}

// DeclareFile explicitly creates a node for a file-literal identifier so that
// edges touching it can be drawn.
func (c *GenerationContext) DeclareFile(workflowID, id string) *Node {
	return c.declare(workflowID, id, NodeFile, cwl.DecodeLocation(id))
}

// registerScope numbers the nodes of a scope: inputs, then leaf steps in
// document order, then outputs. Repeated calls are no-ops.
func (c *GenerationContext) registerScope(wf *cwl.Workflow, scope string) {
	if c.registered[scope] {
		return
	}
	c.registered[scope] = true

	cl := c.clusterFor(scope)
	cl.label = wf.Label
	if cl.label == "" {
		cl.label = StripPath(scope)
	}

	for _, p := range wf.Inputs {
		c.declarePort(scope, p, NodeInput)
	}
	for i := range wf.Steps {
		step := &wf.Steps[i]
		if step.SubWorkflow() == nil {
			c.declareStep(scope, step)
		}
	}
	for _, p := range wf.Outputs {
		c.declarePort(scope, p, NodeOutput)
	}
}

func (c *GenerationContext) declarePort(scope string, p cwl.Port, kind NodeKind) {
	if IsFileLiteral(p.ID) {
		if c.opts.FileNodes {
			c.DeclareFile(scope, p.ID)
		}
		return
	}
	label := p.Label
	if label == "" {
		label = StripPath(p.ID)
	}
	c.declare(scope, p.ID, kind, label)
}

func (c *GenerationContext) declareStep(scope string, step *cwl.Step) *Node {
	n := c.declare(scope, step.ID, NodeStep, StripPath(step.ID))
	var tips []string
	if step.When != "" {
		n.Conditional = true
		tips = append(tips, "when: "+step.When)
	}
	if len(step.Scatter) > 0 {
		n.Scatter = true
		names := make([]string, len(step.Scatter))
		for i, s := range step.Scatter {
			names[i] = StripPath(s)
		}
		tip := "scatter: " + strings.Join(names, ", ")
		if step.ScatterMethod != "" {
			tip += " (" + step.ScatterMethod + ")"
		}
		tips = append(tips, tip)
	}
	n.Tooltip = strings.Join(tips, "\n")
	return n
}

// registerLeaf makes sure a leaf step has its node.
func (c *GenerationContext) registerLeaf(step *cwl.Step, scope string) {
	c.declareStep(scope, step)
	if step.Run != nil {
		c.logger.Debug("leaf step", "workflow_id", scope, "step", step.ID,
			"tool", step.Run.ToolID(), "kind", step.Run.Kind(),
			"inputs", len(step.Run.ToolInputs()), "outputs", len(step.Run.ToolOutputs()))
	}
}

// endpoint is one resolved end of an arrow. id is the identifier the
// endpoint resolved to and is what gets reported when node is nil.
type endpoint struct {
	node  *Node
	id    string
	label string
}

// drawStepBindings draws the edges feeding every input binding of step.
func (c *GenerationContext) drawStepBindings(wf *cwl.Workflow, step *cwl.Step, scope string) {
	if step.When != "" {
		c.checkExpression(scope, step.ID+" when", step.When)
	}

	for _, in := range step.In {
		target := c.resolveTarget(step, in.ID, scope)

		if in.ValueFrom == "" {
			if len(in.Sources) == 0 {
				c.logger.Debug("binding without source", "workflow_id", scope, "step", step.ID, "input", in.ID)
			}
			for _, src := range in.Sources {
				c.drawArrow(scope, c.resolveSource(wf, src, scope), target)
			}
			continue
		}

		expr := c.checkExpression(scope, step.ID+"/"+in.ID+" valueFrom", in.ValueFrom)
		vfKey := step.ID + "/" + in.ID + "#" + string(NodeValueFrom)
		vf := c.declare(scope, vfKey, NodeValueFrom, string(NodeValueFrom))
		vf.Tooltip = in.ValueFrom
		if len(expr.Inputs) > 0 {
			vf.Tooltip += "\nreads: " + strings.Join(expr.Inputs, ", ")
		}

		for _, src := range in.Sources {
			c.drawArrow(scope, c.resolveSource(wf, src, scope), endpoint{node: vf, id: vfKey})
		}
		c.drawArrow(scope, endpoint{node: vf, id: vfKey}, target)
	}
}

// drawOutputEdges connects every workflow output to its outputSource.
func (c *GenerationContext) drawOutputEdges(wf *cwl.Workflow, scope string) {
	for _, out := range wf.Outputs {
		to := endpoint{node: c.nodeFor(scope, out.ID, NodeOutput), id: out.ID}
		for _, src := range out.OutputSources {
			c.drawArrow(scope, c.resolveSource(wf, src, scope), to)
		}
	}
}

// resolveSource finds the node producing src inside wf. The label is the
// producing port name when the node is a leaf step.
func (c *GenerationContext) resolveSource(wf *cwl.Workflow, src, scope string) endpoint {
	if IsFileLiteral(src) {
		return endpoint{node: c.lookup(scope, src), id: src}
	}

	if _, ok := wf.Input(src); ok {
		return endpoint{node: c.lookup(scope, src), id: src}
	}

	if i := strings.LastIndex(src, "/"); i > 0 {
		stepPart, outPart := src[:i], src[i+1:]
		if step := findStep(wf, stepPart); step != nil {
			if sub := step.SubWorkflow(); sub != nil {
				child := childScope(scope, step.ID)
				c.registerScope(sub, child)
				key := c.resolver.Canonical(outPart, sub.Outputs)
				return endpoint{node: c.nodeFor(child, key, NodeOutput), id: key}
			}
			port := outPart
			if step.Run != nil {
				port = c.resolver.EndID(outPart, step.Run.ToolOutputs())
			}
			return endpoint{node: c.declareStep(scope, step), id: src, label: StripPath(port)}
		}
	}

	short := StripPath(src)
	for _, p := range wf.Inputs {
		if !IsFileLiteral(p.ID) && StripPath(p.ID) == short {
			return endpoint{node: c.lookup(scope, p.ID), id: p.ID}
		}
	}

	c.logger.Debug("unresolved source, adding implicit node", "workflow_id", scope, "source", src)
	return endpoint{node: c.declare(scope, src, NodeImplicit, short), id: src}
}

// resolveTarget finds the node consuming input inID of step. The label is
// the consuming port name when the node is a leaf step.
func (c *GenerationContext) resolveTarget(step *cwl.Step, inID, scope string) endpoint {
	if IsFileLiteral(inID) {
		return endpoint{node: c.lookup(scope, inID), id: inID}
	}
	if sub := step.SubWorkflow(); sub != nil {
		child := childScope(scope, step.ID)
		c.registerScope(sub, child)
		key := c.resolver.Canonical(inID, sub.Inputs)
		return endpoint{node: c.nodeFor(child, key, NodeInput), id: key}
	}
	port := inID
	if step.Run != nil {
		port = c.resolver.EndID(inID, step.Run.ToolInputs())
	}
	return endpoint{node: c.declareStep(scope, step), id: inID, label: StripPath(port)}
}

// drawArrow appends the edge from -> to. A file-literal endpoint without a
// node is reported and the edge is skipped; nothing here stops traversal.
func (c *GenerationContext) drawArrow(scope string, from, to endpoint) {
	skip := false
	if from.node == nil && IsFileLiteral(from.id) {
		c.warn("[WARNING_ARROW] source_num is None for file-based source: "+from.id, "workflow_id", scope)
		skip = true
	}
	if to.node == nil && IsFileLiteral(to.id) {
		c.warn("[WARNING_ARROW] target_num is None for file-based target: "+to.id, "workflow_id", scope)
		skip = true
	}
	if skip {
		return
	}
	if from.node == nil || to.node == nil {
		c.logger.Debug("endpoint without node, skipping arrow", "workflow_id", scope, "source", from.id, "target", to.id)
		return
	}

	a := Arrow{From: from.node.Name, To: to.node.Name, TailLabel: from.label, HeadLabel: to.label}
	c.arrows = append(c.arrows, a)
	c.logger.Debug("[DEBUG_ARROW] Generated arrow: " + a.String())
}

func (c *GenerationContext) checkExpression(scope, where, expr string) *cwlexpr.Expression {
	e, err := cwlexpr.Inspect(expr)
	if err != nil {
		c.warn(fmt.Sprintf("[WARNING_EXPR] %s: %v", where, err), "workflow_id", scope)
	}
	return e
}

func (c *GenerationContext) warn(msg string, args ...any) {
	c.warnings = append(c.warnings, msg)
	c.logger.Warn(msg, args...)
}

// lookup returns the node of (scope, key) if one was declared.
func (c *GenerationContext) lookup(scope, key string) *Node {
	if _, ok := c.registry.Lookup(scope, key); !ok {
		return nil
	}
	return c.nodeIndex[nodeKey{scope, key}]
}

// nodeFor returns the node of (scope, key), declaring it when absent.
// File-literal keys are never declared implicitly.
func (c *GenerationContext) nodeFor(scope, key string, kind NodeKind) *Node {
	if n := c.lookup(scope, key); n != nil {
		return n
	}
	if IsFileLiteral(key) {
		return nil
	}
	return c.declare(scope, key, kind, StripPath(key))
}

func (c *GenerationContext) declare(scope, key string, kind NodeKind, label string) *Node {
	if n, ok := c.nodeIndex[nodeKey{scope, key}]; ok {
		return n
	}
	num := c.registry.Register(scope, key)
	n := &Node{
		Scope: scope,
		Key:   key,
		Num:   num,
		Name:  fmt.Sprintf("%s_%d_%d", kind, c.registry.Scope(scope), num),
		Kind:  kind,
		Label: label,
	}
	c.nodeIndex[nodeKey{scope, key}] = n
	c.nodes = append(c.nodes, n)
	cl := c.clusterFor(scope)
	cl.nodes = append(cl.nodes, n)
	return n
}

func (c *GenerationContext) clusterFor(scope string) *cluster {
	cl, ok := c.clusters[scope]
	if !ok {
		cl = &cluster{scope: scope, label: StripPath(scope), ordinal: c.registry.Scope(scope)}
		c.clusters[scope] = cl
	}
	return cl
}

// findStep matches ref against step ids, exactly first and then by short form.
func findStep(wf *cwl.Workflow, ref string) *cwl.Step {
	if s := wf.Step(ref); s != nil {
		return s
	}
	short := StripPath(ref)
	for i := range wf.Steps {
		if StripPath(wf.Steps[i].ID) == short {
			return &wf.Steps[i]
		}
	}
	return nil
}

func childScope(parent, stepID string) string {
	return parent + "/" + StripPath(stepID)
}

func containsCluster(list []*cluster, cl *cluster) bool {
	for _, x := range list {
		if x == cl {
			return true
		}
	}
	return false
}
