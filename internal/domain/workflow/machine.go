package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Apply executes a single action against an instance and returns the resulting
// instance together with the events the transition produced. The input
// instance is never mutated: on success the returned instance is a modified
// clone with its version bumped by exactly one, and on failure the returned
// instance and events are nil.
//
// Apply is pure. It does not read clocks, generate side effects, or touch
// storage; the caller supplies the acting user and the current time.
func Apply(inst *Instance, g *Graph, act Action, actor string, now time.Time) (*Instance, []Event, error) {
	if inst.Status.IsTerminal() {
		return nil, nil, stateErrorf(StateCodeTerminal,
			"instance %s is %s and accepts no further actions", inst.ID, inst.Status)
	}

	next := inst.Clone()

	var (
		events []Event
		err    error
	)
	switch a := act.(type) {
	case Submit:
		events, err = applySubmit(next, g, a, actor, now)
	case Approve:
		events, err = applyDecision(next, g, a.StepID, a.Comment, StepDecisionApproved, actor, now)
	case Reject:
		events, err = applyDecision(next, g, a.StepID, a.Comment, StepDecisionRejected, actor, now)
	case RequestChanges:
		events, err = applyRequestChanges(next, a, actor, now)
	case Cancel:
		events, err = applyCancel(next, a, actor, now)
	case Resubmit:
		events, err = applyResubmit(next, a, actor, now)
	default:
		err = fmt.Errorf("unsupported action %q", act.Kind())
	}
	if err != nil {
		return nil, nil, err
	}

	next.Version = inst.Version + 1
	next.UpdatedAt = now
	return next, events, nil
}

func applySubmit(next *Instance, g *Graph, a Submit, actor string, now time.Time) ([]Event, error) {
	if next.Status != InstanceStatusDraft {
		return nil, stateErrorf(StateCodeNotDraft,
			"instance %s is %s, only drafts can be submitted", next.ID, next.Status)
	}

	approvals := g.ApprovalSteps()
	steps := make([]StepInstance, 0, len(approvals))
	for i, spec := range approvals {
		assignee, ok := a.Assignments[spec.ID]
		if !ok || assignee == "" {
			return nil, stateErrorf(StateCodeMissingAssignee,
				"approval step %q has no assignee", spec.ID)
		}
		si := StepInstance{
			ID:       uuid.NewString(),
			SpecID:   spec.ID,
			Name:     spec.Name,
			Version:  1,
			Status:   StepStatusPending,
			Assignee: assignee,
		}
		if i == 0 {
			si.Status = StepStatusActive
			si.StartedAt = timePtr(now)
		}
		steps = append(steps, si)
	}

	from := next.Status
	next.Steps = steps
	next.SubmittedAt = timePtr(now)
	next.Status = InstanceStatusInProgress
	if len(steps) > 0 {
		next.CurrentStepID = steps[0].SpecID
	}

	events := []Event{{
		Type:       EventWorkflowSubmitted,
		InstanceID: next.ID,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   next.Status,
		Timestamp:  now,
	}}

	// A published graph with no approval steps resolves on submission.
	if len(steps) == 0 {
		next.Status = InstanceStatusApproved
		next.CompletedAt = timePtr(now)
		events = append(events, Event{
			Type:       EventWorkflowCompleted,
			InstanceID: next.ID,
			Actor:      actor,
			FromStatus: InstanceStatusInProgress,
			ToStatus:   next.Status,
			Timestamp:  now,
		})
	}
	return events, nil
}

// applyDecision handles Approve and Reject, which share everything but the
// recorded decision and the transition trigger they follow.
func applyDecision(next *Instance, g *Graph, stepID, comment string, decision StepDecision, actor string, now time.Time) ([]Event, error) {
	step, err := activeStepForActor(next, stepID, actor)
	if err != nil {
		return nil, err
	}

	trigger := TriggerApprove
	eventType := EventStepApproved
	if decision == StepDecisionRejected {
		trigger = TriggerReject
		eventType = EventStepRejected
	}

	target, ok := g.Follow(step.SpecID, trigger)
	if !ok {
		return nil, stateErrorf(StateCodeNoTransition,
			"step %q has no %s transition", step.SpecID, trigger)
	}

	step.Status = StepStatusCompleted
	step.Decision = decision
	step.Comment = comment
	step.CompletedAt = timePtr(now)

	from := next.Status
	events := []Event{{
		Type:       eventType,
		InstanceID: next.ID,
		StepID:     step.ID,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   from,
		Timestamp:  now,
	}}

	switch target.Kind {
	case StepKindEnd:
		skipPendingSteps(next, now)
		next.CurrentStepID = ""
		next.CompletedAt = timePtr(now)

		completion := EventWorkflowCompleted
		next.Status = InstanceStatusApproved
		if target.EndStatus == EndStatusRejected {
			completion = EventWorkflowRejected
			next.Status = InstanceStatusRejected
		}
		events = append(events, Event{
			Type:       completion,
			InstanceID: next.ID,
			Actor:      actor,
			FromStatus: from,
			ToStatus:   next.Status,
			Timestamp:  now,
		})

	case StepKindApproval:
		successor := next.stepBySpecID(target.ID)
		if successor == nil || successor.Status != StepStatusPending {
			return nil, stateErrorf(StateCodeUnknownStep,
				"successor step %q was not realized as pending", target.ID)
		}
		successor.Status = StepStatusActive
		successor.StartedAt = timePtr(now)
		next.CurrentStepID = successor.SpecID

	default:
		return nil, stateErrorf(StateCodeNoTransition,
			"step %q transitions into %s step %q", step.SpecID, target.Kind, target.ID)
	}

	return events, nil
}

func applyRequestChanges(next *Instance, a RequestChanges, actor string, now time.Time) ([]Event, error) {
	step, err := activeStepForActor(next, a.StepID, actor)
	if err != nil {
		return nil, err
	}

	step.Status = StepStatusCompleted
	step.Decision = StepDecisionChangesRequested
	step.Comment = a.Comment
	step.CompletedAt = timePtr(now)

	from := next.Status
	next.Status = InstanceStatusChangesRequested

	return []Event{{
		Type:       EventStepChangesRequested,
		InstanceID: next.ID,
		StepID:     step.ID,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   next.Status,
		Timestamp:  now,
	}}, nil
}

func applyCancel(next *Instance, _ Cancel, actor string, now time.Time) ([]Event, error) {
	if actor != next.InitiatedBy {
		return nil, stateErrorf(StateCodeNotInitiator,
			"only the initiator may cancel instance %s", next.ID)
	}

	for i := range next.Steps {
		switch next.Steps[i].Status {
		case StepStatusActive:
			next.Steps[i].Status = StepStatusCompleted
			next.Steps[i].CompletedAt = timePtr(now)
		case StepStatusPending:
			next.Steps[i].Status = StepStatusSkipped
		}
	}

	from := next.Status
	next.Status = InstanceStatusCancelled
	next.CurrentStepID = ""
	next.CompletedAt = timePtr(now)

	return []Event{{
		Type:       EventWorkflowCancelled,
		InstanceID: next.ID,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   next.Status,
		Timestamp:  now,
	}}, nil
}

func applyResubmit(next *Instance, a Resubmit, actor string, now time.Time) ([]Event, error) {
	if next.Status != InstanceStatusChangesRequested {
		return nil, stateErrorf(StateCodeNotResubmittable,
			"instance %s is %s, only changes_requested instances can be resubmitted", next.ID, next.Status)
	}
	if actor != next.InitiatedBy {
		return nil, stateErrorf(StateCodeNotInitiator,
			"only the initiator may resubmit instance %s", next.ID)
	}

	prev := next.stepBySpecID(next.CurrentStepID)
	if prev == nil {
		return nil, stateErrorf(StateCodeUnknownStep,
			"current step %q was never realized", next.CurrentStepID)
	}

	// Re-realize the same spec as a fresh active step so the review trail
	// keeps every round.
	next.Steps = append(next.Steps, StepInstance{
		ID:        uuid.NewString(),
		SpecID:    prev.SpecID,
		Name:      prev.Name,
		Version:   prev.Version + 1,
		Status:    StepStatusActive,
		Assignee:  prev.Assignee,
		StartedAt: timePtr(now),
	})

	if a.FormData != nil {
		next.FormData = a.FormData
	}

	from := next.Status
	next.Status = InstanceStatusInProgress

	return []Event{{
		Type:       EventWorkflowResubmitted,
		InstanceID: next.ID,
		Actor:      actor,
		FromStatus: from,
		ToStatus:   next.Status,
		Timestamp:  now,
	}}, nil
}

// activeStepForActor resolves the targeted step and enforces that the
// instance is running, the step is active, and the actor is its assignee.
func activeStepForActor(next *Instance, stepID, actor string) (*StepInstance, error) {
	if next.Status != InstanceStatusInProgress {
		return nil, stateErrorf(StateCodeNotInProgress,
			"instance %s is %s, decisions require in_progress", next.ID, next.Status)
	}
	step := next.stepBySpecID(stepID)
	if step == nil {
		return nil, stateErrorf(StateCodeUnknownStep,
			"instance %s has no step %q", next.ID, stepID)
	}
	if step.Status != StepStatusActive {
		return nil, stateErrorf(StateCodeStepNotActive,
			"step %q is %s, only active steps accept decisions", stepID, step.Status)
	}
	if step.Assignee != actor {
		return nil, stateErrorf(StateCodeNotAssignee,
			"user %s is not the assignee of step %q", actor, stepID)
	}
	return step, nil
}

func skipPendingSteps(next *Instance, _ time.Time) {
	for i := range next.Steps {
		if next.Steps[i].Status == StepStatusPending {
			next.Steps[i].Status = StepStatusSkipped
		}
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
