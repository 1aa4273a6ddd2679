package deal

import "time"

// Status is the cached lifecycle state of a deal. It mirrors the on-chain
// escrow states plus the off-chain draft stage that precedes deployment.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusCreated  Status = "created"
	StatusFunded   Status = "funded"
	StatusReleased Status = "released"
	StatusRefunded Status = "refunded"
	StatusDisputed Status = "disputed"
	StatusResolved Status = "resolved"
)

// Terminal reports whether no further transition can occur. Terminal deals
// are excluded from reconciliation.
func (s Status) Terminal() bool {
	switch s {
	case StatusReleased, StatusRefunded, StatusResolved:
		return true
	}
	return false
}

// ParseStatus validates a raw status string from an API caller.
func ParseStatus(raw string) (Status, bool) {
	switch Status(raw) {
	case StatusDraft, StatusCreated, StatusFunded, StatusReleased, StatusRefunded, StatusDisputed, StatusResolved:
		return Status(raw), true
	}
	return "", false
}

// Role distinguishes the two parties of a deal for user-scoped queries.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Deal is the cached projection of one escrow agreement. The authoritative
// state lives on-chain once an escrow instance exists; everything here is a
// denormalized copy for fast reads and notifications.
type Deal struct {
	ID            string
	SellerAddress string
	BuyerAddress  string
	// SellerUserID/BuyerUserID are messaging-layer identities used to route
	// signing requests; they may differ from the settlement addresses.
	SellerUserID string
	BuyerUserID  string
	Amount       string // decimal string, token-precision-agnostic
	Token        string
	Description  string
	Deadline     int64 // unix seconds
	Status       Status
	// EscrowAddress is empty until the on-chain creation is confirmed and is
	// assigned at most once.
	EscrowAddress string
	SpaceID       string
	ChannelID     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// BuyerRecipient returns the messaging identity signing requests for the
// buyer should be addressed to.
func (d Deal) BuyerRecipient() string {
	if d.BuyerUserID != "" {
		return d.BuyerUserID
	}
	return d.BuyerAddress
}
