package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/me/cwlviz/pkg/cwl"
)

// DAGResult holds the result of DAG analysis.
type DAGResult struct {
	// Edges maps each step ID to the step IDs it depends on (upstream).
	Edges map[string][]string
	// Order is a topological order of the steps.
	Order []string
}

// BuildDAG constructs the step dependency graph of wf from its source
// references and sorts it with Kahn's algorithm. Ties are broken by
// document order.
//
// Source "assemble/contigs" in a step's inputs creates an edge assemble -> step.
// Workflow inputs create no edges. Only wf's own steps are considered; nested
// sub-workflows are analyzed separately.
//
// Returns an error naming the steps involved if a cycle exists.
func BuildDAG(wf *cwl.Workflow) (*DAGResult, error) {
	index := make(map[string]int, len(wf.Steps))
	for i, step := range wf.Steps {
		index[step.ID] = i
	}

	// forward[A] = [B, C] means A must complete before B and C.
	// deps[B] = [A] means B depends on A.
	forward := make(map[string][]string, len(wf.Steps))
	deps := make(map[string][]string, len(wf.Steps))
	inDegree := make(map[string]int, len(wf.Steps))
	for _, step := range wf.Steps {
		inDegree[step.ID] = 0
	}

	for _, step := range wf.Steps {
		seen := make(map[string]bool)
		for _, si := range step.In {
			for _, source := range si.Sources {
				depID, ok := producingStep(source, index)
				if !ok || seen[depID] {
					continue
				}
				if depID == step.ID {
					return nil, fmt.Errorf("workflow contains a cycle involving steps: %s", step.ID)
				}
				seen[depID] = true
				forward[depID] = append(forward[depID], step.ID)
				deps[step.ID] = append(deps[step.ID], depID)
				inDegree[step.ID]++
			}
		}
	}

	for id := range deps {
		sort.Strings(deps[id])
	}

	byDocument := func(ids []string) {
		sort.Slice(ids, func(i, j int) bool { return index[ids[i]] < index[ids[j]] })
	}

	var queue []string
	for _, step := range wf.Steps {
		if inDegree[step.ID] == 0 {
			queue = append(queue, step.ID)
		}
	}

	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, succ := range forward[node] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
		byDocument(queue)
	}

	if len(order) != len(wf.Steps) {
		var cycleNodes []string
		for id, deg := range inDegree {
			if deg > 0 {
				cycleNodes = append(cycleNodes, id)
			}
		}
		sort.Strings(cycleNodes)
		return nil, fmt.Errorf("workflow contains a cycle involving steps: %s",
			strings.Join(cycleNodes, ", "))
	}

	return &DAGResult{
		Edges: deps,
		Order: order,
	}, nil
}

// producingStep returns the step a "step/output" source points at.
// Packed ids such as "main/step/output" are handled by trimming the last
// segment only.
func producingStep(source string, steps map[string]int) (string, bool) {
	i := strings.LastIndex(source, "/")
	if i <= 0 {
		return "", false
	}
	id := source[:i]
	if _, ok := steps[id]; ok {
		return id, true
	}
	return "", false
}
