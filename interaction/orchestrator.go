package interaction

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"dealflow/chain"
	"dealflow/deal"
	"dealflow/messaging"
)

// Config carries the static contract surroundings every transaction
// descriptor is derived from.
type Config struct {
	ChainID           string
	FactoryAddress    string
	TokenAddress      string
	ArbitratorAddress string
	TokenDecimals     int32
	// DispatchTimeout bounds the gateway call that delivers the signing
	// request.
	DispatchTimeout time.Duration
}

// Orchestrator turns a (deal, action) pair into a transaction descriptor,
// registers it as pending, and dispatches the signing request.
type Orchestrator struct {
	cfg      Config
	registry *Registry
	gateway  messaging.Gateway
	now      func() time.Time
}

func NewOrchestrator(cfg Config, registry *Registry, gateway messaging.Gateway) *Orchestrator {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 5 * time.Second
	}
	return &Orchestrator{
		cfg:      cfg,
		registry: registry,
		gateway:  gateway,
		now:      time.Now,
	}
}

// RequestAction builds the descriptor for the action, registers a pending
// interaction, and sends the signing request to the deal's channel. The
// correlation id is returned so callers can reference the request. When the
// gateway dispatch times out the error is surfaced but the pending entry is
// left registered: the platform may still deliver a late response.
func (o *Orchestrator) RequestAction(ctx context.Context, d deal.Deal, action Action, userID string) (string, error) {
	descriptor, title, subtitle, err := o.buildDescriptor(d, action)
	if err != nil {
		return "", err
	}

	// The random suffix keeps ids unique even for two requests for the same
	// deal and action within one millisecond.
	id := fmt.Sprintf("tx-%s-%s-%d-%s", d.ID, action, o.now().UnixMilli(), uuid.NewString()[:8])
	o.registry.Put(Pending{
		ID:        id,
		DealID:    d.ID,
		Action:    action,
		UserID:    userID,
		ChannelID: d.ChannelID,
		CreatedAt: o.now(),
	})

	req := messaging.InteractionRequest{
		Type:     "transaction",
		ID:       id,
		Title:    title,
		Subtitle: subtitle,
		Tx:       descriptor,
	}
	if chain.IsAddress(userID) {
		req.Recipient = chain.NormalizeAddress(userID)
	}

	log.WithFields(log.Fields{
		"deal_id":        d.ID,
		"action":         action,
		"interaction_id": id,
	}).Info("dispatching signing request")

	dispatchCtx, cancel := context.WithTimeout(ctx, o.cfg.DispatchTimeout)
	defer cancel()
	if err := o.gateway.SendInteractionRequest(dispatchCtx, d.ChannelID, req); err != nil {
		return id, fmt.Errorf("interaction: dispatch %s request for %s: %w", action, d.ID, err)
	}
	return id, nil
}

// buildDescriptor derives the target contract and calldata for the action
// purely from the deal's persisted fields and the static configuration.
func (o *Orchestrator) buildDescriptor(d deal.Deal, action Action) (messaging.TxDescriptor, string, string, error) {
	// Until the escrow instance is confirmed, escrow-targeted calls fall back
	// to the factory address; only the approve allowance is affected in
	// practice since the other calls require an existing instance.
	escrow := d.EscrowAddress
	if escrow == "" {
		escrow = o.cfg.FactoryAddress
	}

	var (
		to       string
		data     string
		title    string
		subtitle string
	)

	switch action {
	case ActionCreate:
		seller, err := chain.EncodeAddress(d.SellerAddress)
		if err != nil {
			return messaging.TxDescriptor{}, "", "", fmt.Errorf("interaction: encode seller: %w", err)
		}
		token, err := chain.EncodeAddress(o.cfg.TokenAddress)
		if err != nil {
			return messaging.TxDescriptor{}, "", "", fmt.Errorf("interaction: encode token: %w", err)
		}
		amount, err := o.encodeAmount(d.Amount)
		if err != nil {
			return messaging.TxDescriptor{}, "", "", err
		}
		deadline, err := chain.EncodeBig(big.NewInt(d.Deadline))
		if err != nil {
			return messaging.TxDescriptor{}, "", "", fmt.Errorf("interaction: encode deadline: %w", err)
		}
		arbiter, err := chain.EncodeAddress(o.cfg.ArbitratorAddress)
		if err != nil {
			return messaging.TxDescriptor{}, "", "", fmt.Errorf("interaction: encode arbitrator: %w", err)
		}
		to = o.cfg.FactoryAddress
		data = chain.Calldata(
			"createEscrow(address,address,uint256,uint256,address,bytes32)",
			seller, token, amount, deadline, arbiter,
			chain.EncodeBytes32(chain.MemoHash(d.ID)),
		)
		title = "Deploy escrow"
		subtitle = fmt.Sprintf("Create escrow instance for %s %s", d.Amount, d.Token)

	case ActionApprove:
		spender, err := chain.EncodeAddress(escrow)
		if err != nil {
			return messaging.TxDescriptor{}, "", "", fmt.Errorf("interaction: encode spender: %w", err)
		}
		amount, err := o.encodeAmount(d.Amount)
		if err != nil {
			return messaging.TxDescriptor{}, "", "", err
		}
		to = o.cfg.TokenAddress
		data = chain.Calldata("approve(address,uint256)", spender, amount)
		title = fmt.Sprintf("Approve %s", d.Token)
		subtitle = fmt.Sprintf("Authorize escrow %s to pull %s %s", chain.ShortAddress(escrow), d.Amount, d.Token)

	case ActionFund:
		to = escrow
		data = chain.Calldata("fund()")
		title = "Fund escrow"
		subtitle = fmt.Sprintf("Deposit %s %s into the agreement", d.Amount, d.Token)

	case ActionRelease:
		to = escrow
		data = chain.Calldata("release()")
		title = "Release funds"
		subtitle = fmt.Sprintf("Send %s %s to the seller", d.Amount, d.Token)

	case ActionDispute:
		to = escrow
		data = chain.Calldata("openDispute()")
		title = "Raise dispute"
		subtitle = fmt.Sprintf("Escalate to arbitrator %s", chain.ShortAddress(o.cfg.ArbitratorAddress))

	case ActionResolve:
		to = escrow
		data = chain.Calldata("resolve(bool)", chain.EncodeBool(true))
		title = "Resolve dispute"
		subtitle = "Arbitrator final decision"

	default:
		return messaging.TxDescriptor{}, "", "", fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	return messaging.TxDescriptor{
		ChainID: o.cfg.ChainID,
		To:      chain.NormalizeAddress(to),
		Value:   "0",
		Data:    data,
	}, title, subtitle, nil
}

// encodeAmount converts the decimal amount string into token base units.
func (o *Orchestrator) encodeAmount(amount string) ([]byte, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("interaction: invalid amount %q: %w", amount, err)
	}
	word, err := chain.EncodeBig(dec.Shift(o.cfg.TokenDecimals).BigInt())
	if err != nil {
		return nil, fmt.Errorf("interaction: encode amount: %w", err)
	}
	return word, nil
}
