package interaction

import (
	"errors"
	"fmt"
	"time"
)

// Action identifies which escrow transaction a signing request is for.
type Action string

const (
	ActionCreate  Action = "create"
	ActionApprove Action = "approve"
	ActionFund    Action = "fund"
	ActionRelease Action = "release"
	ActionDispute Action = "dispute"
	ActionResolve Action = "resolve"
)

// ErrInvalidAction is returned for action values outside the fixed set.
var ErrInvalidAction = errors.New("interaction: invalid action")

// ParseAction validates a raw action string from an API caller.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionCreate, ActionApprove, ActionFund, ActionRelease, ActionDispute, ActionResolve:
		return Action(raw), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAction, raw)
}

// Pending is a dispatched signing request awaiting its asynchronous response.
type Pending struct {
	ID        string
	DealID    string
	Action    Action
	UserID    string
	ChannelID string
	CreatedAt time.Time
}
