package chain

// Status is the escrow contract status enum as returned by getDealInfo.
type Status uint8

const (
	StatusCreated Status = iota
	StatusFunded
	StatusReleased
	StatusRefunded
	StatusDisputed
	StatusResolved
)

var statusNames = [...]string{"CREATED", "FUNDED", "RELEASED", "REFUNDED", "DISPUTED", "RESOLVED"}

// Known reports whether the value is one of the six contract states.
func (s Status) Known() bool {
	return int(s) < len(statusNames)
}

// Name returns the contract-level name of the status, or UNKNOWN for values
// outside the enum.
func (s Status) Name() string {
	if !s.Known() {
		return "UNKNOWN"
	}
	return statusNames[s]
}
