package api

import (
	"context"
	"net/http"

	"dealflow/deal"
	"dealflow/interaction"
	"dealflow/messaging"
)

// DealService is the deal-facing surface the handlers consume.
type DealService interface {
	Create(ctx context.Context, params deal.CreateParams) (deal.Deal, error)
	GetByID(ctx context.Context, id string) (deal.Deal, error)
	ListByUser(ctx context.Context, address string, role deal.Role) ([]deal.Deal, error)
}

// Store exposes the status writes the webhook needs.
type Store interface {
	GetByID(ctx context.Context, id string) (deal.Deal, error)
	UpdateStatus(ctx context.Context, id string, status deal.Status, escrowAddress string) error
}

// TxRequester drives the transaction orchestrator.
type TxRequester interface {
	RequestAction(ctx context.Context, d deal.Deal, action interaction.Action, userID string) (string, error)
}

// Responder consumes inbound signing responses.
type Responder interface {
	HandleResponse(ctx context.Context, resp messaging.InteractionResponse)
}

// ChainReader is the read-only ledger surface exposed through the API.
type ChainReader interface {
	GetEscrowCount(ctx context.Context) (uint64, error)
	GetDisputeWinner(ctx context.Context, escrowAddress string) (string, error)
}

// Notifier delivers chat notifications triggered by the status webhook.
type Notifier interface {
	SendMessage(ctx context.Context, channelID, text string) error
}

// Options bundles the collaborators and static settings of the HTTP layer.
type Options struct {
	Deals             DealService
	Store             Store
	Tx                TxRequester
	Responses         Responder
	Chain             ChainReader
	Notifier          Notifier
	Locker            *deal.Locker
	ArbitratorAddress string
	FactoryAddress    string
	// GatewaySecret verifies the HS256 bearer tokens on mutating routes.
	GatewaySecret string
}

// Server is the HTTP adapter in front of the reconciliation and orchestration
// core. Routing and JSON shapes live here; all behavior is delegated.
type Server struct {
	deals      DealService
	store      Store
	tx         TxRequester
	responses  Responder
	chain      ChainReader
	notifier   Notifier
	locker     *deal.Locker
	arbitrator string
	factory    string
	secret     []byte

	mux *http.ServeMux
}

func NewServer(opts Options) *Server {
	s := &Server{
		deals:      opts.Deals,
		store:      opts.Store,
		tx:         opts.Tx,
		responses:  opts.Responses,
		chain:      opts.Chain,
		notifier:   opts.Notifier,
		locker:     opts.Locker,
		arbitrator: opts.ArbitratorAddress,
		factory:    opts.FactoryAddress,
		secret:     []byte(opts.GatewaySecret),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/deal/{id}", s.handleDeal)
	mux.HandleFunc("GET /api/deals/user/{address}", s.handleDealsByUser)
	mux.HandleFunc("POST /api/deals", s.requireAuth(s.handleCreateDeal))
	mux.HandleFunc("POST /api/deal/{id}/status", s.requireAuth(s.handleUpdateStatus))
	mux.HandleFunc("POST /api/request-transaction", s.requireAuth(s.handleRequestTransaction))
	mux.HandleFunc("POST /api/interactions/response", s.requireAuth(s.handleInteractionResponse))
	s.mux = mux

	return s
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
