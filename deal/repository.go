package deal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no deal row exists for the identifier.
	ErrNotFound = errors.New("deal: not found")
	// ErrInvalidRole is returned for user-scoped queries with an unknown role.
	ErrInvalidRole = errors.New("deal: invalid role")
)

// Store is the persistence contract the reconciliation and orchestration
// layers depend on.
type Store interface {
	Create(ctx context.Context, d Deal) (Deal, error)
	GetByID(ctx context.Context, id string) (Deal, error)
	// GetActiveDeals returns deals that are non-terminal and already have an
	// escrow instance, i.e. the reconciliation working set.
	GetActiveDeals(ctx context.Context) ([]Deal, error)
	GetDealsByUser(ctx context.Context, address string, role Role) ([]Deal, error)
	// UpdateStatus persists a new status. A non-empty escrowAddress is
	// applied only if the deal has none yet; the assignment happens at most
	// once.
	UpdateStatus(ctx context.Context, id string, status Status, escrowAddress string) error
}

const schema = `
CREATE TABLE IF NOT EXISTS deals (
    id BIGSERIAL PRIMARY KEY,
    deal_id TEXT UNIQUE NOT NULL,
    seller_address TEXT NOT NULL,
    buyer_address TEXT NOT NULL,
    seller_user_id TEXT NOT NULL DEFAULT '',
    buyer_user_id TEXT NOT NULL DEFAULT '',
    amount TEXT NOT NULL,
    token TEXT NOT NULL,
    description TEXT NOT NULL,
    deadline BIGINT NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft',
    escrow_address TEXT NOT NULL DEFAULT '',
    space_id TEXT NOT NULL DEFAULT '',
    channel_id TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_deals_deal_id ON deals(deal_id);
CREATE INDEX IF NOT EXISTS idx_deals_seller ON deals(seller_address);
CREATE INDEX IF NOT EXISTS idx_deals_buyer ON deals(buyer_address);
CREATE INDEX IF NOT EXISTS idx_deals_status ON deals(status);
`

// Repository is the pgx-backed Store implementation.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the deals table and indexes if they do not exist yet.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("deal: ensure schema: %w", err)
	}
	return nil
}

const dealColumns = `
deal_id, seller_address, buyer_address, seller_user_id, buyer_user_id,
amount, token, description, deadline, status, escrow_address,
space_id, channel_id, created_at, updated_at
`

func scanDeal(row pgx.Row) (Deal, error) {
	var d Deal
	err := row.Scan(
		&d.ID,
		&d.SellerAddress,
		&d.BuyerAddress,
		&d.SellerUserID,
		&d.BuyerUserID,
		&d.Amount,
		&d.Token,
		&d.Description,
		&d.Deadline,
		&d.Status,
		&d.EscrowAddress,
		&d.SpaceID,
		&d.ChannelID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	return d, err
}

// Create inserts a new deal projection.
func (r *Repository) Create(ctx context.Context, d Deal) (Deal, error) {
	const insertSQL = `
INSERT INTO deals (
    deal_id, seller_address, buyer_address, seller_user_id, buyer_user_id,
    amount, token, description, deadline, status, escrow_address,
    space_id, channel_id
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING ` + dealColumns

	rec, err := scanDeal(r.pool.QueryRow(ctx, insertSQL,
		d.ID,
		d.SellerAddress,
		d.BuyerAddress,
		d.SellerUserID,
		d.BuyerUserID,
		d.Amount,
		d.Token,
		d.Description,
		d.Deadline,
		d.Status,
		d.EscrowAddress,
		d.SpaceID,
		d.ChannelID,
	))
	if err != nil {
		return Deal{}, fmt.Errorf("deal: insert: %w", err)
	}
	return rec, nil
}

// GetByID fetches one deal by its public identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE deal_id = $1`

	rec, err := scanDeal(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deal{}, ErrNotFound
		}
		return Deal{}, fmt.Errorf("deal: query by id: %w", err)
	}
	return rec, nil
}

// GetActiveDeals implements the reconciliation working-set query: deals whose
// status is non-terminal and whose escrow instance is known.
func (r *Repository) GetActiveDeals(ctx context.Context) ([]Deal, error) {
	query := `
SELECT ` + dealColumns + `
FROM deals
WHERE status NOT IN ('released','refunded','resolved')
  AND escrow_address <> ''
`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("deal: list active: %w", err)
	}
	defer rows.Close()

	return collectDeals(rows)
}

// GetDealsByUser lists the most recent deals the address participates in
// under the given role.
func (r *Repository) GetDealsByUser(ctx context.Context, address string, role Role) ([]Deal, error) {
	var field string
	switch role {
	case RoleBuyer:
		field = "buyer_address"
	case RoleSeller:
		field = "seller_address"
	default:
		return nil, ErrInvalidRole
	}

	query := `SELECT ` + dealColumns + ` FROM deals WHERE lower(` + field + `) = lower($1) ORDER BY created_at DESC LIMIT 20`

	rows, err := r.pool.Query(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("deal: list by user: %w", err)
	}
	defer rows.Close()

	return collectDeals(rows)
}

// UpdateStatus persists the new status and, when the deal has no escrow
// address yet, records the provided one. An already-assigned escrow address is
// never overwritten.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status Status, escrowAddress string) error {
	const updateSQL = `
UPDATE deals
SET status = $2,
    escrow_address = CASE
        WHEN escrow_address = '' AND $3 <> '' THEN $3
        ELSE escrow_address
    END,
    updated_at = now()
WHERE deal_id = $1
`

	tag, err := r.pool.Exec(ctx, updateSQL, id, status, escrowAddress)
	if err != nil {
		return fmt.Errorf("deal: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectDeals(rows pgx.Rows) ([]Deal, error) {
	deals := []Deal{}
	for rows.Next() {
		rec, err := scanDeal(rows)
		if err != nil {
			return nil, fmt.Errorf("deal: scan row: %w", err)
		}
		deals = append(deals, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("deal: iterate rows: %w", err)
	}
	return deals, nil
}
