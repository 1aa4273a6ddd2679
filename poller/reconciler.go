package poller

import (
	"fmt"
	"strings"

	"dealflow/chain"
	"dealflow/deal"
)

// Notification is a chat message owed to a deal's channel after a status
// change. Deciding whether one is owed is pure; delivering it is not.
type Notification struct {
	ChannelID string
	Text      string
}

// Decide maps a freshly observed status to the notification it produces, if
// any. Only disputed, released, refunded, and resolved transitions notify;
// created and funded are deliberately silent. winner is only consulted for
// resolved and may be empty when the lookup failed or returned nothing.
func Decide(d deal.Deal, observed deal.Status, winner, arbitrator string) (Notification, bool) {
	var text string
	switch observed {
	case deal.StatusDisputed:
		text = DisputeNotice(d.ID, arbitrator)
	case deal.StatusReleased:
		text = fmt.Sprintf("**Deal completed**\nFunds released to seller for deal `%s`.", d.ID)
	case deal.StatusRefunded:
		text = fmt.Sprintf("**Deal refunded**\nFunds returned to buyer for deal `%s`.", d.ID)
	case deal.StatusResolved:
		text = ResolutionNotice(d, winner)
	default:
		return Notification{}, false
	}
	return Notification{ChannelID: d.ChannelID, Text: text}, true
}

// DisputeNotice names the arbitrator who will review the deal.
func DisputeNotice(dealID, arbitrator string) string {
	return fmt.Sprintf(
		"**Dispute opened**\nDeal `%s` has been flagged for dispute.\nArbitrator: %s\nThe arbitrator will review the transaction evidence.",
		dealID, chain.ShortAddress(arbitrator),
	)
}

// ResolutionNotice announces the arbitrator's settlement. When the winner
// address matches a deal party (case-insensitively) an attribution line is
// appended; an unknown or missing winner produces no attribution.
func ResolutionNotice(d deal.Deal, winner string) string {
	msg := fmt.Sprintf("**Dispute resolved**\nArbitrator has settled deal `%s`.", d.ID)
	switch {
	case winner == "":
	case strings.EqualFold(winner, d.SellerAddress):
		msg += "\nWinner: seller. Funds transferred to seller."
	case strings.EqualFold(winner, d.BuyerAddress):
		msg += "\nWinner: buyer. Funds returned to buyer."
	}
	return msg
}
