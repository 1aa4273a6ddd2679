package deal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"dealflow/chain"
)

const (
	defaultToken    = "USDC"
	defaultDeadline = 48 * time.Hour
)

// CreateParams enumerates the caller-supplied fields of a new deal. Party
// resolution (mentions, ENS) happens upstream; this layer expects settlement
// addresses.
type CreateParams struct {
	SellerAddress string
	BuyerAddress  string
	SellerUserID  string
	BuyerUserID   string
	Amount        string
	Token         string
	Description   string
	// DeadlineSeconds is the offset from now; zero applies the 48h default.
	DeadlineSeconds int64
	SpaceID         string
	ChannelID       string
}

// Service validates and creates deal projections.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// Create validates params, assigns a fresh deal id, and persists the deal in
// draft status. Nothing touches the chain until the create transaction is
// requested and signed.
func (s *Service) Create(ctx context.Context, params CreateParams) (Deal, error) {
	if !chain.IsAddress(params.SellerAddress) {
		return Deal{}, fmt.Errorf("deal: invalid seller address %q", params.SellerAddress)
	}
	if !chain.IsAddress(params.BuyerAddress) {
		return Deal{}, fmt.Errorf("deal: invalid buyer address %q", params.BuyerAddress)
	}
	if strings.TrimSpace(params.Description) == "" {
		return Deal{}, fmt.Errorf("deal: description required")
	}
	if params.ChannelID == "" {
		return Deal{}, fmt.Errorf("deal: channel required")
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(params.Amount))
	if err != nil {
		return Deal{}, fmt.Errorf("deal: invalid amount %q: %w", params.Amount, err)
	}
	if !amount.IsPositive() {
		return Deal{}, fmt.Errorf("deal: amount must be positive, got %s", amount)
	}

	token := params.Token
	if token == "" {
		token = defaultToken
	}

	now := s.now()
	offset := time.Duration(params.DeadlineSeconds) * time.Second
	if offset <= 0 {
		offset = defaultDeadline
	}

	d := Deal{
		ID:            newDealID(now),
		SellerAddress: chain.NormalizeAddress(params.SellerAddress),
		BuyerAddress:  chain.NormalizeAddress(params.BuyerAddress),
		SellerUserID:  params.SellerUserID,
		BuyerUserID:   params.BuyerUserID,
		Amount:        amount.String(),
		Token:         token,
		Description:   strings.TrimSpace(params.Description),
		Deadline:      now.Add(offset).Unix(),
		Status:        StatusDraft,
		SpaceID:       params.SpaceID,
		ChannelID:     params.ChannelID,
	}

	return s.store.Create(ctx, d)
}

// GetByID proxies the store lookup.
func (s *Service) GetByID(ctx context.Context, id string) (Deal, error) {
	if id == "" {
		return Deal{}, fmt.Errorf("deal: id required")
	}
	return s.store.GetByID(ctx, id)
}

// ListByUser proxies the user-scoped store query.
func (s *Service) ListByUser(ctx context.Context, address string, role Role) ([]Deal, error) {
	if !chain.IsAddress(address) {
		return nil, fmt.Errorf("deal: invalid address %q", address)
	}
	return s.store.GetDealsByUser(ctx, address, role)
}

func newDealID(now time.Time) string {
	return fmt.Sprintf("DEAL-%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
