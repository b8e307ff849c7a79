package workflow

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func draftInstance() *Instance {
	return NewInstance("tenant-1", "def-1", 42, "Office chairs", map[string]any{"amount": 120}, "alice", testNow)
}

func submittedInstance(t *testing.T, g *Graph) *Instance {
	t.Helper()
	inst, _, err := Apply(draftInstance(), g, Submit{Assignments: map[string]string{
		"manager": "bob",
		"finance": "carol",
	}}, "alice", testNow)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return inst
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, e := range events {
		types[i] = e.Type
	}
	return types
}

func TestApply_Submit(t *testing.T) {
	g := twoStageGraph()
	draft := draftInstance()

	next, events, err := Apply(draft, g, Submit{Assignments: map[string]string{
		"manager": "bob",
		"finance": "carol",
	}}, "alice", testNow)
	if err != nil {
		t.Fatalf("Apply(Submit) failed: %v", err)
	}

	if next.Status != InstanceStatusInProgress {
		t.Errorf("status = %v, want %v", next.Status, InstanceStatusInProgress)
	}
	if next.Version != draft.Version+1 {
		t.Errorf("version = %d, want %d", next.Version, draft.Version+1)
	}
	if len(next.Steps) != 2 {
		t.Fatalf("realized %d steps, want 2", len(next.Steps))
	}
	if next.Steps[0].SpecID != "manager" || next.Steps[0].Status != StepStatusActive {
		t.Errorf("first step = %s/%s, want manager/active", next.Steps[0].SpecID, next.Steps[0].Status)
	}
	if next.Steps[0].Assignee != "bob" {
		t.Errorf("first step assignee = %q, want %q", next.Steps[0].Assignee, "bob")
	}
	if next.Steps[1].SpecID != "finance" || next.Steps[1].Status != StepStatusPending {
		t.Errorf("second step = %s/%s, want finance/pending", next.Steps[1].SpecID, next.Steps[1].Status)
	}
	if next.CurrentStepID != "manager" {
		t.Errorf("current step = %q, want %q", next.CurrentStepID, "manager")
	}
	if next.SubmittedAt == nil {
		t.Error("SubmittedAt not set")
	}

	got := eventTypes(events)
	if len(got) != 1 || got[0] != EventWorkflowSubmitted {
		t.Errorf("events = %v, want [%s]", got, EventWorkflowSubmitted)
	}

	// The input snapshot must be untouched.
	if draft.Status != InstanceStatusDraft || len(draft.Steps) != 0 || draft.Version != 1 {
		t.Errorf("input instance mutated: status=%v steps=%d version=%d", draft.Status, len(draft.Steps), draft.Version)
	}
}

func TestApply_Submit_MissingAssignee(t *testing.T) {
	g := twoStageGraph()

	next, events, err := Apply(draftInstance(), g, Submit{Assignments: map[string]string{
		"manager": "bob",
	}}, "alice", testNow)
	if next != nil || events != nil {
		t.Error("failed Apply must return nil instance and events")
	}
	se, ok := AsStateError(err)
	if !ok || se.Code != StateCodeMissingAssignee {
		t.Errorf("err = %v, want StateError %s", err, StateCodeMissingAssignee)
	}
}

func TestApply_Submit_NotDraft(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	_, _, err := Apply(inst, g, Submit{Assignments: map[string]string{"manager": "bob", "finance": "carol"}}, "alice", testNow)
	se, ok := AsStateError(err)
	if !ok || se.Code != StateCodeNotDraft {
		t.Errorf("err = %v, want StateError %s", err, StateCodeNotDraft)
	}
}

func TestApply_Approve_AdvancesToNextStep(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	next, events, err := Apply(inst, g, Approve{StepID: "manager", Comment: "looks fine"}, "bob", testNow)
	if err != nil {
		t.Fatalf("Apply(Approve) failed: %v", err)
	}

	if next.Status != InstanceStatusInProgress {
		t.Errorf("status = %v, want %v", next.Status, InstanceStatusInProgress)
	}
	manager := next.stepBySpecID("manager")
	if manager.Status != StepStatusCompleted || manager.Decision != StepDecisionApproved {
		t.Errorf("manager step = %s/%s, want completed/approved", manager.Status, manager.Decision)
	}
	if manager.Comment != "looks fine" {
		t.Errorf("comment = %q, want %q", manager.Comment, "looks fine")
	}
	finance := next.stepBySpecID("finance")
	if finance.Status != StepStatusActive {
		t.Errorf("finance step = %s, want active", finance.Status)
	}
	if next.CurrentStepID != "finance" {
		t.Errorf("current step = %q, want %q", next.CurrentStepID, "finance")
	}

	got := eventTypes(events)
	if len(got) != 1 || got[0] != EventStepApproved {
		t.Errorf("events = %v, want [%s]", got, EventStepApproved)
	}
}

func TestApply_Approve_FinalStepCompletesWorkflow(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	inst, _, err := Apply(inst, g, Approve{StepID: "manager"}, "bob", testNow)
	if err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	versionBefore := inst.Version

	next, events, err := Apply(inst, g, Approve{StepID: "finance"}, "carol", testNow)
	if err != nil {
		t.Fatalf("final approve failed: %v", err)
	}

	if next.Status != InstanceStatusApproved {
		t.Errorf("status = %v, want %v", next.Status, InstanceStatusApproved)
	}
	if next.Version != versionBefore+1 {
		t.Errorf("version = %d, want %d", next.Version, versionBefore+1)
	}
	if next.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if next.CurrentStepID != "" {
		t.Errorf("current step = %q, want empty", next.CurrentStepID)
	}

	completed := 0
	for _, e := range events {
		if e.Type == EventWorkflowCompleted {
			completed++
		}
	}
	if completed != 1 {
		t.Errorf("emitted %d %s events, want exactly 1 (%v)", completed, EventWorkflowCompleted, eventTypes(events))
	}
	if events[0].Type != EventStepApproved {
		t.Errorf("first event = %v, want %s", events[0].Type, EventStepApproved)
	}
}

func TestApply_Approve_NotAssignee(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	next, events, err := Apply(inst, g, Approve{StepID: "manager"}, "mallory", testNow)
	if next != nil || events != nil {
		t.Error("failed Apply must return nil instance and events")
	}
	se, ok := AsStateError(err)
	if !ok || se.Code != StateCodeNotAssignee {
		t.Errorf("err = %v, want StateError %s", err, StateCodeNotAssignee)
	}

	// Rejected action leaves the instance untouched.
	if inst.stepBySpecID("manager").Status != StepStatusActive {
		t.Error("instance mutated by rejected action")
	}
}

func TestApply_Approve_StepNotActive(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	_, _, err := Apply(inst, g, Approve{StepID: "finance"}, "carol", testNow)
	se, ok := AsStateError(err)
	if !ok || se.Code != StateCodeStepNotActive {
		t.Errorf("err = %v, want StateError %s", err, StateCodeStepNotActive)
	}
}

func TestApply_Approve_UnknownStep(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	_, _, err := Apply(inst, g, Approve{StepID: "ghost"}, "bob", testNow)
	se, ok := AsStateError(err)
	if !ok || se.Code != StateCodeUnknownStep {
		t.Errorf("err = %v, want StateError %s", err, StateCodeUnknownStep)
	}
}

func TestApply_Reject_TerminatesWorkflow(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	next, events, err := Apply(inst, g, Reject{StepID: "manager", Comment: "over budget"}, "bob", testNow)
	if err != nil {
		t.Fatalf("Apply(Reject) failed: %v", err)
	}

	if next.Status != InstanceStatusRejected {
		t.Errorf("status = %v, want %v", next.Status, InstanceStatusRejected)
	}
	if finance := next.stepBySpecID("finance"); finance.Status != StepStatusSkipped {
		t.Errorf("finance step = %s, want skipped", finance.Status)
	}

	got := eventTypes(events)
	if len(got) != 2 || got[0] != EventStepRejected || got[1] != EventWorkflowRejected {
		t.Errorf("events = %v, want [%s %s]", got, EventStepRejected, EventWorkflowRejected)
	}
}

func TestApply_RequestChanges(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	next, events, err := Apply(inst, g, RequestChanges{StepID: "manager", Comment: "need receipts"}, "bob", testNow)
	if err != nil {
		t.Fatalf("Apply(RequestChanges) failed: %v", err)
	}

	if next.Status != InstanceStatusChangesRequested {
		t.Errorf("status = %v, want %v", next.Status, InstanceStatusChangesRequested)
	}
	manager := next.stepBySpecID("manager")
	if manager.Status != StepStatusCompleted || manager.Decision != StepDecisionChangesRequested {
		t.Errorf("manager step = %s/%s, want completed/changes_requested", manager.Status, manager.Decision)
	}
	if next.CurrentStepID != "manager" {
		t.Errorf("current step = %q, want %q", next.CurrentStepID, "manager")
	}

	got := eventTypes(events)
	if len(got) != 1 || got[0] != EventStepChangesRequested {
		t.Errorf("events = %v, want [%s]", got, EventStepChangesRequested)
	}
}

func TestApply_Resubmit(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	inst, _, err := Apply(inst, g, RequestChanges{StepID: "manager"}, "bob", testNow)
	if err != nil {
		t.Fatalf("request changes failed: %v", err)
	}

	newData := map[string]any{"amount": 95}
	next, events, err := Apply(inst, g, Resubmit{FormData: newData}, "alice", testNow)
	if err != nil {
		t.Fatalf("Apply(Resubmit) failed: %v", err)
	}

	if next.Status != InstanceStatusInProgress {
		t.Errorf("status = %v, want %v", next.Status, InstanceStatusInProgress)
	}
	if len(next.Steps) != 3 {
		t.Fatalf("have %d steps, want 3 (fresh realization appended)", len(next.Steps))
	}
	fresh := next.stepBySpecID("manager")
	if fresh.Status != StepStatusActive {
		t.Errorf("re-realized step = %s, want active", fresh.Status)
	}
	if fresh.Assignee != "bob" {
		t.Errorf("re-realized assignee = %q, want %q", fresh.Assignee, "bob")
	}
	if fresh.Version != 2 {
		t.Errorf("re-realized step version = %d, want 2", fresh.Version)
	}
	if fresh.ID == next.Steps[0].ID {
		t.Error("re-realized step must get a fresh id")
	}
	if next.FormData["amount"] != 95 {
		t.Errorf("form data = %v, want replaced", next.FormData)
	}

	got := eventTypes(events)
	if len(got) != 1 || got[0] != EventWorkflowResubmitted {
		t.Errorf("events = %v, want [%s]", got, EventWorkflowResubmitted)
	}
}

func TestApply_Resubmit_NotInitiator(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	inst, _, err := Apply(inst, g, RequestChanges{StepID: "manager"}, "bob", testNow)
	if err != nil {
		t.Fatalf("request changes failed: %v", err)
	}

	_, _, err = Apply(inst, g, Resubmit{}, "bob", testNow)
	se, ok := AsStateError(err)
	if !ok || se.Code != StateCodeNotInitiator {
		t.Errorf("err = %v, want StateError %s", err, StateCodeNotInitiator)
	}
}

func TestApply_Resubmit_NotResubmittable(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	_, _, err := Apply(inst, g, Resubmit{}, "alice", testNow)
	se, ok := AsStateError(err)
	if !ok || se.Code != StateCodeNotResubmittable {
		t.Errorf("err = %v, want StateError %s", err, StateCodeNotResubmittable)
	}
}

func TestApply_Cancel(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	next, events, err := Apply(inst, g, Cancel{Reason: "duplicate request"}, "alice", testNow)
	if err != nil {
		t.Fatalf("Apply(Cancel) failed: %v", err)
	}

	if next.Status != InstanceStatusCancelled {
		t.Errorf("status = %v, want %v", next.Status, InstanceStatusCancelled)
	}
	if manager := next.stepBySpecID("manager"); manager.Status != StepStatusCompleted || manager.Decision != StepDecisionNone {
		t.Errorf("active step on cancel = %s/%q, want completed with no decision", manager.Status, manager.Decision)
	}
	if finance := next.stepBySpecID("finance"); finance.Status != StepStatusSkipped {
		t.Errorf("pending step on cancel = %s, want skipped", finance.Status)
	}

	got := eventTypes(events)
	if len(got) != 1 || got[0] != EventWorkflowCancelled {
		t.Errorf("events = %v, want [%s]", got, EventWorkflowCancelled)
	}
}

func TestApply_Cancel_NotInitiator(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	_, _, err := Apply(inst, g, Cancel{}, "bob", testNow)
	se, ok := AsStateError(err)
	if !ok || se.Code != StateCodeNotInitiator {
		t.Errorf("err = %v, want StateError %s", err, StateCodeNotInitiator)
	}
}

func TestApply_TerminalInstanceRejectsEverything(t *testing.T) {
	g := twoStageGraph()
	inst := submittedInstance(t, g)

	inst, _, err := Apply(inst, g, Reject{StepID: "manager"}, "bob", testNow)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}

	actions := []Action{
		Submit{Assignments: map[string]string{"manager": "bob", "finance": "carol"}},
		Approve{StepID: "manager"},
		Cancel{},
		Resubmit{},
	}
	for _, act := range actions {
		t.Run(act.Kind(), func(t *testing.T) {
			_, _, err := Apply(inst, g, act, "alice", testNow)
			se, ok := AsStateError(err)
			if !ok || se.Code != StateCodeTerminal {
				t.Errorf("err = %v, want StateError %s", err, StateCodeTerminal)
			}
		})
	}
}

func TestApply_EveryActionBumpsVersionByOne(t *testing.T) {
	g := twoStageGraph()
	inst := draftInstance()

	steps := []struct {
		act   Action
		actor string
	}{
		{Submit{Assignments: map[string]string{"manager": "bob", "finance": "carol"}}, "alice"},
		{RequestChanges{StepID: "manager"}, "bob"},
		{Resubmit{}, "alice"},
		{Approve{StepID: "manager"}, "bob"},
		{Approve{StepID: "finance"}, "carol"},
	}

	for i, s := range steps {
		before := inst.Version
		next, _, err := Apply(inst, g, s.act, s.actor, testNow)
		if err != nil {
			t.Fatalf("step %d (%s) failed: %v", i, s.act.Kind(), err)
		}
		if next.Version != before+1 {
			t.Errorf("step %d (%s): version %d -> %d, want +1", i, s.act.Kind(), before, next.Version)
		}
		inst = next
	}

	if inst.Status != InstanceStatusApproved {
		t.Errorf("final status = %v, want %v", inst.Status, InstanceStatusApproved)
	}
}
