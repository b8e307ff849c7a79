// Package workflow holds the workflow execution core: the definition graph
// model, the definition validator, and the instance state machine. Everything
// in this package is pure computation; persistence and transport live in the
// application and infrastructure layers.
package workflow

// StepKind identifies the kind of a step in a definition graph
type StepKind string

const (
	StepKindStart    StepKind = "start"
	StepKindApproval StepKind = "approval"
	StepKindEnd      StepKind = "end"
)

// String returns the string representation of the step kind
func (k StepKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is one of the defined constants
func (k StepKind) IsValid() bool {
	switch k {
	case StepKindStart, StepKindApproval, StepKindEnd:
		return true
	default:
		return false
	}
}

// EndStatus is the terminal instance status an end step resolves to
type EndStatus string

const (
	EndStatusApproved EndStatus = "approved"
	EndStatusRejected EndStatus = "rejected"
)

// Trigger labels a transition out of an approval step
type Trigger string

const (
	// TriggerNone marks an unconditional transition (start steps)
	TriggerNone    Trigger = ""
	TriggerApprove Trigger = "approve"
	TriggerReject  Trigger = "reject"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// StepSpec describes one node of a definition graph
type StepSpec struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Kind StepKind `json:"kind"`
	// EndStatus is only meaningful when Kind == StepKindEnd
	EndStatus EndStatus `json:"end_status,omitempty"`
}

// TransitionSpec is a directed, optionally trigger-labeled edge between steps.
// Steps are referenced by id, never embedded.
type TransitionSpec struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Trigger Trigger `json:"trigger,omitempty"`
}

// Graph is the immutable definition graph: an arena of steps indexed by id
// plus transitions stored as id pairs. Construct with NewGraph; do not mutate
// after construction.
type Graph struct {
	Steps       []StepSpec       `json:"steps"`
	Transitions []TransitionSpec `json:"transitions"`

	index map[string]int
}

// NewGraph builds a graph from steps and transitions. Duplicate step ids are
// preserved (the validator reports them); the index keeps the first occurrence.
func NewGraph(steps []StepSpec, transitions []TransitionSpec) *Graph {
	g := &Graph{
		Steps:       steps,
		Transitions: transitions,
	}
	g.buildIndex()
	return g
}

func (g *Graph) buildIndex() {
	g.index = make(map[string]int, len(g.Steps))
	for i, s := range g.Steps {
		if _, ok := g.index[s.ID]; !ok {
			g.index[s.ID] = i
		}
	}
}

// Step returns the step with the given id
func (g *Graph) Step(id string) (StepSpec, bool) {
	if g.index == nil {
		g.buildIndex()
	}
	i, ok := g.index[id]
	if !ok {
		return StepSpec{}, false
	}
	return g.Steps[i], true
}

// Start returns the start step. The second return is false when the graph has
// no start step; the validator reports that as missing_start.
func (g *Graph) Start() (StepSpec, bool) {
	for _, s := range g.Steps {
		if s.Kind == StepKindStart {
			return s, true
		}
	}
	return StepSpec{}, false
}

// Outgoing returns all transitions leaving the given step, in definition order
func (g *Graph) Outgoing(stepID string) []TransitionSpec {
	var out []TransitionSpec
	for _, t := range g.Transitions {
		if t.From == stepID {
			out = append(out, t)
		}
	}
	return out
}

// Follow returns the target step of the trigger-labeled transition leaving
// stepID, if one exists
func (g *Graph) Follow(stepID string, trigger Trigger) (StepSpec, bool) {
	for _, t := range g.Transitions {
		if t.From == stepID && t.Trigger == trigger {
			return g.Step(t.To)
		}
	}
	return StepSpec{}, false
}

// ApprovalSteps returns the approval steps in traversal order from the start
// step, following transitions breadth-first. This order is the realization
// order at submit time.
func (g *Graph) ApprovalSteps() []StepSpec {
	start, ok := g.Start()
	if !ok {
		return nil
	}

	var approvals []StepSpec
	visited := map[string]bool{start.ID: true}
	queue := []string{start.ID}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		step, ok := g.Step(cur)
		if !ok {
			continue
		}
		if step.Kind == StepKindApproval {
			approvals = append(approvals, step)
		}
		for _, t := range g.Outgoing(cur) {
			if !visited[t.To] {
				visited[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}

	return approvals
}
