package interaction

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"dealflow/chain"
	"dealflow/deal"
	"dealflow/messaging"
)

// Store is the slice of the deal store the correlator mutates.
type Store interface {
	GetByID(ctx context.Context, id string) (deal.Deal, error)
	UpdateStatus(ctx context.Context, id string, status deal.Status, escrowAddress string) error
}

// Correlator matches inbound signing responses to pending interactions and
// drives the create -> approve -> fund continuation chain. Each next step is
// issued only in direct response to the previous step's confirmation.
type Correlator struct {
	registry    *Registry
	store       Store
	reader      chain.Reader
	gateway     messaging.Gateway
	orch        *Orchestrator
	locker      *deal.Locker
	explorerURL string
}

func NewCorrelator(registry *Registry, store Store, reader chain.Reader, gateway messaging.Gateway, orch *Orchestrator, locker *deal.Locker, explorerURL string) *Correlator {
	return &Correlator{
		registry:    registry,
		store:       store,
		reader:      reader,
		gateway:     gateway,
		orch:        orch,
		locker:      locker,
		explorerURL: explorerURL,
	}
}

// HandleResponse consumes one asynchronous signing response. Responses with
// no matching pending interaction are logged and discarded. A matched
// response consumes its pending entry atomically before any handling, so a
// duplicate delivery arriving mid-continuation finds nothing and chains
// nothing.
func (c *Correlator) HandleResponse(ctx context.Context, resp messaging.InteractionResponse) {
	p, ok := c.registry.Take(resp.InteractionID)
	if !ok {
		log.WithField("interaction_id", resp.InteractionID).Info("discarding response for unknown interaction")
		return
	}

	logger := log.WithFields(log.Fields{
		"interaction_id": resp.InteractionID,
		"deal_id":        p.DealID,
		"action":         p.Action,
	})

	if resp.Failed() {
		if resp.Error == "" {
			logger.Warn("signing response carries neither hash nor error")
			return
		}
		logger.WithField("tx_error", resp.Error).Warn("signing request failed")
		c.send(ctx, p.ChannelID, fmt.Sprintf(
			"**Transaction failed**\nAction: %s\nDeal: `%s`\nError: %s",
			strings.ToUpper(string(p.Action)), p.DealID, resp.Error,
		))
		return
	}

	logger.WithField("tx_hash", resp.TxHash).Info("signing request confirmed")
	c.send(ctx, p.ChannelID, fmt.Sprintf(
		"**Transaction confirmed**\nAction: %s\nDeal: `%s`\n%s/tx/%s",
		strings.ToUpper(string(p.Action)), p.DealID, c.explorerURL, resp.TxHash,
	))

	switch p.Action {
	case ActionCreate:
		c.confirmCreate(ctx, p, resp.TxHash)
	case ActionApprove:
		c.chainFund(ctx, p)
	case ActionFund:
		c.confirmFund(ctx, p)
	case ActionRelease, ActionDispute, ActionResolve:
		// The reconciliation poller picks these up from chain state.
	}
}

// confirmCreate waits for the creation receipt, extracts the escrow instance
// address, persists the confirmed created status, and issues the approve
// request to the buyer.
func (c *Correlator) confirmCreate(ctx context.Context, p Pending, txHash string) {
	logger := log.WithFields(log.Fields{"deal_id": p.DealID, "tx_hash": txHash})

	receipt, err := c.reader.WaitReceipt(ctx, txHash)
	if err != nil {
		logger.WithError(err).Warn("create receipt wait failed")
		return
	}

	escrowAddress, ok := chain.ExtractEscrowAddress(receipt.Logs)
	if !ok {
		// Without the creation event there is no escrow address to persist,
		// so the approve step cannot be issued.
		logger.Warn("create receipt carries no EscrowCreated event, stalling chain")
		return
	}

	unlock := c.locker.Lock(p.DealID)
	err = c.store.UpdateStatus(ctx, p.DealID, deal.StatusCreated, escrowAddress)
	unlock()
	if err != nil {
		logger.WithError(err).Warn("persist created status failed")
		return
	}

	d, err := c.store.GetByID(ctx, p.DealID)
	if err != nil {
		logger.WithError(err).Warn("reload deal after create failed")
		return
	}

	if _, err := c.orch.RequestAction(ctx, d, ActionApprove, d.BuyerRecipient()); err != nil {
		logger.WithError(err).Warn("auto-issue approve failed")
		return
	}
	c.send(ctx, p.ChannelID, fmt.Sprintf(
		"**Next step:** escrow deployed at %s. An approve request for %s %s was sent to the buyer.",
		chain.ShortAddress(escrowAddress), d.Amount, d.Token,
	))
}

// chainFund issues the fund request once the allowance is confirmed.
func (c *Correlator) chainFund(ctx context.Context, p Pending) {
	logger := log.WithField("deal_id", p.DealID)

	d, err := c.store.GetByID(ctx, p.DealID)
	if err != nil {
		logger.WithError(err).Warn("load deal after approve failed")
		return
	}

	if _, err := c.orch.RequestAction(ctx, d, ActionFund, d.BuyerRecipient()); err != nil {
		logger.WithError(err).Warn("auto-issue fund failed")
		return
	}
	c.send(ctx, p.ChannelID, fmt.Sprintf(
		"**Next step:** %s approved. A deposit request was sent to the buyer.", d.Token,
	))
}

// confirmFund persists the funded status and closes the automated sequence.
func (c *Correlator) confirmFund(ctx context.Context, p Pending) {
	logger := log.WithField("deal_id", p.DealID)

	unlock := c.locker.Lock(p.DealID)
	err := c.store.UpdateStatus(ctx, p.DealID, deal.StatusFunded, "")
	unlock()
	if err != nil {
		logger.WithError(err).Warn("persist funded status failed")
		return
	}

	c.send(ctx, p.ChannelID,
		"**Funds deposited.** The escrow is fully funded and secured on-chain.\n"+
			"The seller can now release the funds, or either party may raise a dispute.")
}

func (c *Correlator) send(ctx context.Context, channelID, text string) {
	if err := c.gateway.SendMessage(ctx, channelID, text); err != nil {
		log.WithError(err).WithField("channel_id", channelID).Warn("send message failed")
	}
}
