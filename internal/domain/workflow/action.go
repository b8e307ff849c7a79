package workflow

// Action is a request to advance an instance. The concrete types below form a
// closed set; Apply dispatches on them exhaustively.
type Action interface {
	// Kind returns a stable action name used in logs and errors
	Kind() string
}

// Submit moves a draft instance into execution. Assignments maps approval
// StepSpec ids to assignee user ids; every approval step in the graph must be
// covered.
type Submit struct {
	Assignments map[string]string
}

// Approve completes the targeted active step with an approved decision and
// follows the approve-triggered transition.
type Approve struct {
	StepID  string
	Comment string
}

// Reject completes the targeted active step with a rejected decision and
// follows the reject-triggered transition.
type Reject struct {
	StepID  string
	Comment string
}

// RequestChanges sends the instance back to its initiator for edits without
// resolving it.
type RequestChanges struct {
	StepID  string
	Comment string
}

// Cancel terminates a running instance. Only the initiator may cancel.
type Cancel struct {
	Reason string
}

// Resubmit re-activates the step that requested changes, with updated form
// data. Only the initiator may resubmit.
type Resubmit struct {
	FormData map[string]any
}

func (Submit) Kind() string         { return "submit" }
func (Approve) Kind() string        { return "approve" }
func (Reject) Kind() string         { return "reject" }
func (RequestChanges) Kind() string { return "request_changes" }
func (Cancel) Kind() string         { return "cancel" }
func (Resubmit) Kind() string       { return "resubmit" }
