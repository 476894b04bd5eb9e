package dotgraph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// NodeKind classifies graph nodes.
type NodeKind string

const (
	NodeInput     NodeKind = "input"
	NodeOutput    NodeKind = "output"
	NodeStep      NodeKind = "step"
	NodeValueFrom NodeKind = "value_from_node"
	NodeFile      NodeKind = "file"
	// NodeImplicit stands in for a source that matched no declared port or step.
	NodeImplicit NodeKind = "implicit"
)

// Node is a graph vertex.
type Node struct {
	Scope       string   `json:"scope"`
	Key         string   `json:"key"`
	Num         int      `json:"num"`
	Name        string   `json:"name"`
	Kind        NodeKind `json:"kind"`
	Label       string   `json:"label"`
	Tooltip     string   `json:"tooltip,omitempty"`
	Conditional bool     `json:"conditional,omitempty"`
	Scatter     bool     `json:"scatter,omitempty"`
}

// Arrow is a directed edge between two resolved nodes.
type Arrow struct {
	From      string `json:"from"`
	To        string `json:"to"`
	TailLabel string `json:"tail_label,omitempty"`
	HeadLabel string `json:"head_label,omitempty"`
}

// String returns the DOT edge statement.
func (a Arrow) String() string {
	var attrs []string
	if a.TailLabel != "" {
		attrs = append(attrs, "taillabel="+quote(a.TailLabel))
	}
	if a.HeadLabel != "" {
		attrs = append(attrs, "headlabel="+quote(a.HeadLabel))
	}
	if len(attrs) == 0 {
		return fmt.Sprintf("%s -> %s;", a.From, a.To)
	}
	return fmt.Sprintf("%s -> %s [%s];", a.From, a.To, strings.Join(attrs, " "))
}

// cluster groups the nodes of one workflow scope.
type cluster struct {
	scope   string
	label   string
	level   int
	ordinal int
	// conditional marks a sub-workflow run by a step with a when clause.
	conditional bool
	parent      *cluster
	nodes       []*Node
	children    []*cluster
}

// Graph is the result of one generation run.
type Graph struct {
	Name     string   `json:"name"`
	RankDir  string   `json:"rankdir"`
	Nodes    []*Node  `json:"nodes"`
	Arrows   []Arrow  `json:"arrows"`
	Warnings []string `json:"warnings"`

	roots []*cluster
}

// ArrowStrings returns the rendered edge statements in traversal order.
func (g *Graph) ArrowStrings() []string {
	out := make([]string, len(g.Arrows))
	for i, a := range g.Arrows {
		out[i] = a.String()
	}
	return out
}

// JSON returns the indented JSON form of the graph.
func (g *Graph) JSON() ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// WriteDOT writes the graph in Graphviz DOT syntax.
func (g *Graph) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph %s {\n", quote(g.Name))
	if g.RankDir != "" {
		fmt.Fprintf(bw, "  rankdir=%s;\n", g.RankDir)
	}
	fmt.Fprintln(bw, `  node [fontname="Helvetica" fontsize=10];`)
	fmt.Fprintln(bw, `  edge [fontname="Helvetica" fontsize=8];`)
	for _, root := range g.roots {
		writeCluster(bw, root, root.level, true)
	}
	for _, a := range g.Arrows {
		fmt.Fprintf(bw, "  %s\n", a.String())
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func writeCluster(w *bufio.Writer, c *cluster, base int, flat bool) {
	// Flat roots write their nodes one level in; clusters nest from there.
	depth := c.level - base
	if !flat {
		depth--
	}
	depth = max(depth, 0)
	indent := strings.Repeat("  ", depth+1)
	inner := indent
	if !flat {
		fmt.Fprintf(w, "%ssubgraph cluster_%d {\n", indent, c.ordinal)
		inner = indent + "  "
		fmt.Fprintf(w, "%slabel=%s;\n", inner, quote(c.label))
		if c.conditional {
			fmt.Fprintf(w, "%sstyle=\"rounded,dashed\";\n", inner)
		} else {
			fmt.Fprintf(w, "%sstyle=rounded;\n", inner)
		}
	}
	for _, n := range c.nodes {
		fmt.Fprintf(w, "%s%s [%s];\n", inner, n.Name, nodeAttrs(n))
	}
	for _, child := range c.children {
		writeCluster(w, child, base, false)
	}
	if !flat {
		fmt.Fprintf(w, "%s}\n", indent)
	}
}

func nodeAttrs(n *Node) string {
	attrs := []string{"label=" + quote(n.Label)}
	switch n.Kind {
	case NodeInput, NodeOutput:
		attrs = append(attrs, "shape=ellipse", "style=filled", `fillcolor="#94DDF4"`)
	case NodeStep:
		style := "filled"
		if n.Conditional {
			style = "filled,dashed"
		}
		attrs = append(attrs, "shape=box", "style="+quote(style), `fillcolor="#F3CEA1"`)
		if n.Scatter {
			attrs = append(attrs, "peripheries=2")
		}
	case NodeValueFrom:
		attrs = append(attrs, "shape=note", "style=filled", `fillcolor="#EEEEEE"`)
	case NodeFile:
		attrs = append(attrs, "shape=folder")
	case NodeImplicit:
		attrs = append(attrs, "shape=ellipse", "style=dashed")
	}
	if n.Tooltip != "" {
		attrs = append(attrs, "tooltip="+quote(n.Tooltip))
	}
	return strings.Join(attrs, " ")
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func quote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
