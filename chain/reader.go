package chain

import (
	"context"
	"math/big"
)

// DealInfo mirrors the escrow contract's getDealInfo return tuple.
type DealInfo struct {
	Buyer    string
	Seller   string
	Token    string
	Amount   *big.Int
	Deadline int64
	Arbiter  string
	MemoHash [32]byte
	Status   Status
	FundedAt int64
}

// Log is a minimal receipt log entry.
type Log struct {
	Address string
	Topics  []string
	Data    []byte
}

// Receipt is the confirmation record of a mined transaction.
type Receipt struct {
	TxHash  string
	Success bool
	Logs    []Log
}

// Reader provides read-only access to the escrow ledger.
type Reader interface {
	// GetDealInfo fetches the current contract state of an escrow instance.
	GetDealInfo(ctx context.Context, escrowAddress string) (DealInfo, error)
	// GetDisputeWinner returns the winner address recorded by the first
	// DisputeResolved event since genesis, or "" when none exists.
	GetDisputeWinner(ctx context.Context, escrowAddress string) (string, error)
	// GetEscrowCount returns the number of escrows the factory has deployed.
	GetEscrowCount(ctx context.Context) (uint64, error)
	// WaitReceipt blocks until the transaction is mined or ctx expires.
	WaitReceipt(ctx context.Context, txHash string) (Receipt, error)
}

// Event signatures emitted by the factory and escrow contracts.
const (
	escrowCreatedEvent   = "EscrowCreated(address,address,address,uint256)"
	disputeResolvedEvent = "DisputeResolved(address)"
)

var (
	escrowCreatedTopic   = EventTopic(escrowCreatedEvent)
	disputeResolvedTopic = EventTopic(disputeResolvedEvent)
)

// ExtractEscrowAddress scans receipt logs for the factory's EscrowCreated
// event and returns the address of the freshly deployed escrow instance.
func ExtractEscrowAddress(logs []Log) (string, bool) {
	for _, l := range logs {
		if len(l.Topics) < 2 || l.Topics[0] != escrowCreatedTopic {
			continue
		}
		if addr, ok := topicAddress(l.Topics[1]); ok {
			return addr, true
		}
	}
	return "", false
}

// winnerFromLog pulls the winner address out of a DisputeResolved log entry,
// whether the argument was indexed or packed into the data section.
func winnerFromLog(l Log) (string, bool) {
	if len(l.Topics) >= 2 {
		if addr, ok := topicAddress(l.Topics[1]); ok {
			return addr, true
		}
	}
	if len(l.Data) >= wordSize {
		addr := wordAddress(l.Data[:wordSize])
		if IsAddress(addr) {
			return addr, true
		}
	}
	return "", false
}
