package workflow

import "fmt"

// Validation error codes. Stable, machine-readable; the editor uses StepID to
// highlight the offending node.
const (
	CodeMissingStart          = "missing_start"
	CodeMultipleStart         = "multiple_start"
	CodeDuplicateStepID       = "duplicate_step_id"
	CodeInvalidTransitionRef  = "invalid_transition_ref"
	CodeUnreachableStep       = "unreachable_step"
	CodeIncompleteTransitions = "incomplete_transitions"
	CodeMissingEndStep        = "missing_end_step"
	CodeNonTerminatingPath    = "non_terminating_path"
	CodeInvalidEndTransition  = "invalid_end_transition"
)

// ValidationError is one localized problem found in a definition graph
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	StepID  string `json:"step_id,omitempty"`
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.StepID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Validate checks a fully-constructed definition graph and returns every
// problem found, in rule order. An empty result means the graph is publishable.
// Validate is deterministic and side-effect-free; publish and editor-time
// validation both call it and must reject the same graphs.
func Validate(g *Graph) []ValidationError {
	var errs []ValidationError

	errs = append(errs, checkStartStep(g)...)
	errs = append(errs, checkDuplicateIDs(g)...)
	errs = append(errs, checkTransitionRefs(g)...)
	errs = append(errs, checkReachability(g)...)
	errs = append(errs, checkApprovalTransitions(g)...)
	errs = append(errs, checkEndSteps(g)...)
	errs = append(errs, checkTermination(g)...)

	return errs
}

// checkStartStep: exactly one start step
func checkStartStep(g *Graph) []ValidationError {
	count := 0
	for _, s := range g.Steps {
		if s.Kind == StepKindStart {
			count++
		}
	}
	switch count {
	case 0:
		return []ValidationError{{Code: CodeMissingStart, Message: "a start step is required"}}
	case 1:
		return nil
	default:
		return []ValidationError{{Code: CodeMultipleStart, Message: "only one start step is allowed"}}
	}
}

// checkDuplicateIDs: step ids must be unique
func checkDuplicateIDs(g *Graph) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(g.Steps))
	for _, s := range g.Steps {
		if seen[s.ID] {
			errs = append(errs, ValidationError{
				Code:    CodeDuplicateStepID,
				Message: fmt.Sprintf("step id %q is used more than once", s.ID),
				StepID:  s.ID,
			})
			continue
		}
		seen[s.ID] = true
	}
	return errs
}

// checkTransitionRefs: transitions must reference existing steps
func checkTransitionRefs(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, t := range g.Transitions {
		if _, ok := g.Step(t.From); !ok {
			errs = append(errs, ValidationError{
				Code:    CodeInvalidTransitionRef,
				Message: fmt.Sprintf("transition references unknown step %q", t.From),
				StepID:  t.From,
			})
		}
		if _, ok := g.Step(t.To); !ok {
			errs = append(errs, ValidationError{
				Code:    CodeInvalidTransitionRef,
				Message: fmt.Sprintf("transition references unknown step %q", t.To),
				StepID:  t.To,
			})
		}
	}
	return errs
}

// checkReachability: every step other than start must be reachable from start
func checkReachability(g *Graph) []ValidationError {
	start, ok := g.Start()
	if !ok {
		// No start step; checkStartStep already reported it and reachability
		// against a missing root would blame every step.
		return nil
	}

	visited := map[string]bool{start.ID: true}
	queue := []string{start.ID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range g.Outgoing(cur) {
			if !visited[t.To] {
				visited[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}

	var errs []ValidationError
	for _, s := range g.Steps {
		if !visited[s.ID] {
			errs = append(errs, ValidationError{
				Code:    CodeUnreachableStep,
				Message: fmt.Sprintf("step %q is not reachable from the start step", s.ID),
				StepID:  s.ID,
			})
		}
	}
	return errs
}

// checkApprovalTransitions: every approval step needs both an approve- and a
// reject-triggered outgoing transition
func checkApprovalTransitions(g *Graph) []ValidationError {
	var errs []ValidationError
	for _, s := range g.Steps {
		if s.Kind != StepKindApproval {
			continue
		}
		var hasApprove, hasReject bool
		for _, t := range g.Outgoing(s.ID) {
			switch t.Trigger {
			case TriggerApprove:
				hasApprove = true
			case TriggerReject:
				hasReject = true
			}
		}
		if !hasApprove || !hasReject {
			errs = append(errs, ValidationError{
				Code:    CodeIncompleteTransitions,
				Message: fmt.Sprintf("approval step %q must define both approve and reject transitions", s.ID),
				StepID:  s.ID,
			})
		}
	}
	return errs
}

// checkEndSteps: at least one end step exists, and end steps have no outgoing
// transitions
func checkEndSteps(g *Graph) []ValidationError {
	var errs []ValidationError
	endCount := 0
	for _, s := range g.Steps {
		if s.Kind != StepKindEnd {
			continue
		}
		endCount++
		if len(g.Outgoing(s.ID)) > 0 {
			errs = append(errs, ValidationError{
				Code:    CodeInvalidEndTransition,
				Message: fmt.Sprintf("end step %q must not have outgoing transitions", s.ID),
				StepID:  s.ID,
			})
		}
	}
	if endCount == 0 {
		errs = append(errs, ValidationError{Code: CodeMissingEndStep, Message: "an end step is required"})
	}
	return errs
}

// checkTermination: the graph must be acyclic and every reachable non-end step
// must be able to reach an end step. A cycle would let an instance loop
// through approvals forever without resolving.
func checkTermination(g *Graph) []ValidationError {
	adjacency := make(map[string][]string, len(g.Steps))
	for _, s := range g.Steps {
		adjacency[s.ID] = nil
	}
	for _, t := range g.Transitions {
		if _, ok := adjacency[t.From]; ok {
			adjacency[t.From] = append(adjacency[t.From], t.To)
		}
	}

	if hasCycle(adjacency) {
		return []ValidationError{{
			Code:    CodeNonTerminatingPath,
			Message: "the graph contains a cycle; every path must reach an end step",
		}}
	}

	// Acyclic: flag reachable steps from which no end step can be reached.
	canTerminate := make(map[string]bool, len(g.Steps))
	for _, s := range g.Steps {
		if s.Kind == StepKindEnd {
			canTerminate[s.ID] = true
		}
	}
	// Propagate backwards until stable; the graph is small, iteration is fine.
	for changed := true; changed; {
		changed = false
		for id, next := range adjacency {
			if canTerminate[id] {
				continue
			}
			for _, to := range next {
				if canTerminate[to] {
					canTerminate[id] = true
					changed = true
					break
				}
			}
		}
	}

	var errs []ValidationError
	for _, s := range g.Steps {
		if s.Kind == StepKindEnd {
			continue
		}
		if _, known := adjacency[s.ID]; !known {
			continue
		}
		if !canTerminate[s.ID] {
			errs = append(errs, ValidationError{
				Code:    CodeNonTerminatingPath,
				Message: fmt.Sprintf("no path from step %q reaches an end step", s.ID),
				StepID:  s.ID,
			})
		}
	}
	return errs
}

// hasCycle runs a three-color depth-first search over the adjacency list
func hasCycle(adjacency map[string][]string) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	colors := make(map[string]int, len(adjacency))

	var visit func(node string) bool
	visit = func(node string) bool {
		colors[node] = gray
		for _, next := range adjacency[node] {
			switch colors[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		colors[node] = black
		return false
	}

	for node := range adjacency {
		if colors[node] == white {
			if visit(node) {
				return true
			}
		}
	}
	return false
}
