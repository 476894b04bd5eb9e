package dotgraph

// NumberBase is the first number handed out in every workflow scope.
const NumberBase = 0

// Registry assigns stable node numbers per workflow scope.
// Numbers are handed out in first-registration order and never reassigned
// until Reset. A Registry belongs to one generation run and is not safe for
// concurrent use.
type Registry struct {
	scopes map[string]*scope
	order  []string
}

type scope struct {
	ordinal int
	ids     map[string]int
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{scopes: make(map[string]*scope)}
}

// Register returns the number of (workflowID, localID), assigning the next
// free number of the scope on first use.
func (r *Registry) Register(workflowID, localID string) int {
	s := r.scope(workflowID)
	if n, ok := s.ids[localID]; ok {
		return n
	}
	n := NumberBase + len(s.ids)
	s.ids[localID] = n
	return n
}

// Lookup returns the number of (workflowID, localID) if it was registered.
func (r *Registry) Lookup(workflowID, localID string) (int, bool) {
	s, ok := r.scopes[workflowID]
	if !ok {
		return 0, false
	}
	n, ok := s.ids[localID]
	return n, ok
}

// Scope returns the ordinal of workflowID among all scopes, in first-seen order.
func (r *Registry) Scope(workflowID string) int {
	return r.scope(workflowID).ordinal
}

// Len returns how many ids are registered in workflowID.
func (r *Registry) Len(workflowID string) int {
	if s, ok := r.scopes[workflowID]; ok {
		return len(s.ids)
	}
	return 0
}

// Scopes returns the workflow ids in first-seen order.
func (r *Registry) Scopes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Reset forgets every scope.
func (r *Registry) Reset() {
	r.scopes = make(map[string]*scope)
	r.order = nil
}

func (r *Registry) scope(workflowID string) *scope {
	s, ok := r.scopes[workflowID]
	if !ok {
		s = &scope{ordinal: len(r.order), ids: make(map[string]int)}
		r.scopes[workflowID] = s
		r.order = append(r.order, workflowID)
	}
	return s
}
