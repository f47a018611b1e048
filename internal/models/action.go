package models

// ActionKind names an alert channel.
type ActionKind string

const (
	ActionFeishu ActionKind = "feishu"
	ActionEmail  ActionKind = "email"
	ActionApifox ActionKind = "apifox"
)

// ActionStatus is the final outcome of one dispatched alert.
type ActionStatus string

const (
	ActionSent    ActionStatus = "sent"
	ActionSkipped ActionStatus = "skipped"
	ActionFailed  ActionStatus = "failed"
)

// ActionOutcome records what happened to one triggered external action.
// Outcomes live in the per-request notifier ledger and nowhere else.
type ActionOutcome struct {
	Kind   ActionKind   `json:"action_kind"`
	Status ActionStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// Summary renders the outcome as the single string the case result carries
// per channel, e.g. "sent" or "failed: connection refused".
func (o ActionOutcome) Summary() string {
	if o.Detail == "" {
		return string(o.Status)
	}
	return string(o.Status) + ": " + o.Detail
}
