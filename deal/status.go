package deal

import "dealflow/chain"

// ValidTransition reports whether moving from one cached status to another
// follows the deal lattice:
//
//	draft -> created -> funded -> { released | refunded | disputed -> resolved }
//
// Status is monotonic along any single path; the only edge out of disputed is
// resolved, which is terminal.
func ValidTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusCreated
	case StatusCreated:
		return to == StatusFunded
	case StatusFunded:
		return to == StatusReleased || to == StatusRefunded || to == StatusDisputed
	case StatusDisputed:
		return to == StatusResolved
	}
	return false
}

// FromChainStatus maps the contract status enum to the cache vocabulary.
func FromChainStatus(cs chain.Status) (Status, bool) {
	switch cs {
	case chain.StatusCreated:
		return StatusCreated, true
	case chain.StatusFunded:
		return StatusFunded, true
	case chain.StatusReleased:
		return StatusReleased, true
	case chain.StatusRefunded:
		return StatusRefunded, true
	case chain.StatusDisputed:
		return StatusDisputed, true
	case chain.StatusResolved:
		return StatusResolved, true
	}
	return "", false
}
