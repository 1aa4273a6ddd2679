package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealflow/deal"
)

func paused(ctx context.Context, stop <-chan struct{}, d time.Duration) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	case <-time.After(d):
		return false, nil
	}
}

func randomAddress(r *rand.Rand) string {
	return fmt.Sprintf("0x%040x", r.Int63())
}

// Creator inserts fresh draft deals through the repository, competing for
// unique deal ids under load.
func Creator(ctx context.Context, pool *pgxpool.Pool, seed int64, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	repo := deal.NewRepository(pool)
	for {
		d := deal.Deal{
			ID:            fmt.Sprintf("DEAL-%d-%08x", time.Now().UnixMilli(), r.Int31()),
			SellerAddress: randomAddress(r),
			BuyerAddress:  randomAddress(r),
			Amount:        fmt.Sprintf("%d.%02d", 1+r.Intn(1000), r.Intn(100)),
			Token:         "USDC",
			Description:   "stress deal",
			Deadline:      time.Now().Add(48 * time.Hour).Unix(),
			Status:        deal.StatusDraft,
			ChannelID:     "channel-stress",
		}
		if _, err := repo.Create(ctx, d); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique constraint
				// expected when two creators collide on a deal id
			} else if ctx.Err() != nil {
				return nil
			} else {
				return fmt.Errorf("creator insert: %w", err)
			}
		}
		if done, err := paused(ctx, stop, time.Duration(10+r.Intn(20))*time.Millisecond); done {
			return err
		}
	}
}

// Advancer walks random deals forward along the lifecycle, assigning an escrow
// address on the draft-to-created edge. All writes go through the locker to
// keep one writer per deal.
func Advancer(ctx context.Context, pool *pgxpool.Pool, locker *deal.Locker, seed int64, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	repo := deal.NewRepository(pool)

	next := map[deal.Status][]deal.Status{
		deal.StatusDraft:    {deal.StatusCreated},
		deal.StatusCreated:  {deal.StatusFunded},
		deal.StatusFunded:   {deal.StatusReleased, deal.StatusRefunded, deal.StatusDisputed},
		deal.StatusDisputed: {deal.StatusResolved},
	}

	for {
		rows, err := pool.Query(ctx, `SELECT deal_id, status FROM deals ORDER BY random() LIMIT 5`)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("advancer pick: %w", err)
		}
		type pick struct {
			id     string
			status deal.Status
		}
		var picks []pick
		for rows.Next() {
			var p pick
			if err := rows.Scan(&p.id, &p.status); err == nil {
				picks = append(picks, p)
			}
		}
		rows.Close()

		for _, p := range picks {
			candidates := next[p.status]
			if len(candidates) == 0 {
				continue
			}
			to := candidates[r.Intn(len(candidates))]
			escrow := ""
			if p.status == deal.StatusDraft {
				escrow = randomAddress(r)
			}
			unlock := locker.Lock(p.id)
			err := repo.UpdateStatus(ctx, p.id, to, escrow)
			unlock()
			if err != nil && !errors.Is(err, deal.ErrNotFound) && ctx.Err() == nil {
				return fmt.Errorf("advancer update: %w", err)
			}
		}

		if done, err := paused(ctx, stop, time.Duration(15+r.Intn(35))*time.Millisecond); done {
			return err
		}
	}
}

// EscrowRacer repeatedly tries to overwrite already-assigned escrow addresses.
// Every attempt must lose: the address is assigned at most once.
func EscrowRacer(ctx context.Context, pool *pgxpool.Pool, locker *deal.Locker, seed int64, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	repo := deal.NewRepository(pool)
	for {
		var id string
		var status deal.Status
		err := pool.QueryRow(ctx, `SELECT deal_id, status FROM deals WHERE escrow_address <> '' ORDER BY random() LIMIT 1`).Scan(&id, &status)
		if err == nil {
			unlock := locker.Lock(id)
			err = repo.UpdateStatus(ctx, id, status, randomAddress(r))
			unlock()
			if err != nil && !errors.Is(err, deal.ErrNotFound) && ctx.Err() == nil {
				return fmt.Errorf("escrow racer update: %w", err)
			}
		} else if ctx.Err() != nil {
			return nil
		}
		if done, err := paused(ctx, stop, time.Duration(20+r.Intn(40))*time.Millisecond); done {
			return err
		}
	}
}

// Reader hammers the read paths used by the poller and the API.
func Reader(ctx context.Context, pool *pgxpool.Pool, seed int64, stop <-chan struct{}) error {
	r := rand.New(rand.NewSource(seed))
	repo := deal.NewRepository(pool)
	for {
		if _, err := repo.GetActiveDeals(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("reader active: %w", err)
		}
		if _, err := repo.GetDealsByUser(ctx, randomAddress(r), deal.RoleBuyer); err != nil && ctx.Err() == nil {
			return fmt.Errorf("reader by user: %w", err)
		}
		if _, err := repo.GetByID(ctx, "DEAL-absent"); err != nil && !errors.Is(err, deal.ErrNotFound) && ctx.Err() == nil {
			return fmt.Errorf("reader by id: %w", err)
		}
		if done, err := paused(ctx, stop, time.Duration(30+r.Intn(50))*time.Millisecond); done {
			return err
		}
	}
}
