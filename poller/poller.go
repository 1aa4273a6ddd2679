package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dealflow/chain"
	"dealflow/deal"
)

// Store is the slice of the deal store the poller needs.
type Store interface {
	GetActiveDeals(ctx context.Context) ([]deal.Deal, error)
	UpdateStatus(ctx context.Context, id string, status deal.Status, escrowAddress string) error
}

// Notifier delivers the chat side of a reconciled status change.
type Notifier interface {
	SendMessage(ctx context.Context, channelID, text string) error
}

// Poller periodically reconciles cached deal statuses against the ledger.
// Each tick fetches the active set, reads chain state per deal, persists any
// difference, and dispatches at most one notification per change. Failures
// are isolated per deal; the next tick is the retry.
type Poller struct {
	store       Store
	reader      chain.Reader
	notifier    Notifier
	locker      *deal.Locker
	arbitrator  string
	interval    time.Duration
	concurrency int

	scheduler *gocron.Scheduler
}

func New(store Store, reader chain.Reader, notifier Notifier, locker *deal.Locker, arbitrator string, interval time.Duration, concurrency int) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Poller{
		store:       store,
		reader:      reader,
		notifier:    notifier,
		locker:      locker,
		arbitrator:  arbitrator,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Start schedules the reconciliation tick and returns immediately.
func (p *Poller) Start(ctx context.Context) error {
	p.scheduler = gocron.NewScheduler(time.UTC)
	if _, err := p.scheduler.Every(p.interval).Do(func() { p.Tick(ctx) }); err != nil {
		return fmt.Errorf("poller: schedule tick: %w", err)
	}
	p.scheduler.StartAsync()
	return nil
}

// Stop halts the schedule. A tick in progress finishes.
func (p *Poller) Stop() {
	if p.scheduler != nil {
		p.scheduler.Stop()
	}
}

// Tick runs one reconciliation pass over all active deals. Deals are checked
// independently with no ordering guarantees between them.
func (p *Poller) Tick(ctx context.Context) {
	deals, err := p.store.GetActiveDeals(ctx)
	if err != nil {
		log.WithError(err).Error("poll: fetch active deals failed")
		return
	}
	log.WithField("active", len(deals)).Debug("poll: checking active deals")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for _, d := range deals {
		d := d
		g.Go(func() error {
			if err := p.reconcile(gctx, d); err != nil {
				log.WithError(err).WithField("deal_id", d.ID).Error("poll: reconcile failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// reconcile diffs one deal against the ledger and applies any change.
func (p *Poller) reconcile(ctx context.Context, d deal.Deal) error {
	// The active query excludes these, but the invariant is load-bearing: a
	// deal without an escrow instance must never trigger a chain read.
	if d.EscrowAddress == "" {
		return nil
	}

	info, err := p.reader.GetDealInfo(ctx, d.EscrowAddress)
	if err != nil {
		return fmt.Errorf("poller: read deal info: %w", err)
	}

	observed, ok := deal.FromChainStatus(info.Status)
	if !ok {
		return fmt.Errorf("poller: unknown chain status %d for %s", info.Status, d.ID)
	}
	if observed == d.Status {
		return nil
	}

	logger := log.WithFields(log.Fields{
		"deal_id": d.ID,
		"from":    d.Status,
		"to":      observed,
	})
	logger.Info("poll: status change detected")
	// Chain state is authoritative even off the lifecycle lattice, but a jump
	// that skips steps means the cache missed intermediate transitions.
	if !deal.ValidTransition(d.Status, observed) {
		logger.Warn("poll: status change skips lifecycle steps")
	}

	unlock := p.locker.Lock(d.ID)
	err = p.store.UpdateStatus(ctx, d.ID, observed, d.EscrowAddress)
	unlock()
	if err != nil {
		return fmt.Errorf("poller: persist status: %w", err)
	}

	// The status change is durable at this point; notification failures are
	// logged and dropped, never retried.
	var winner string
	if observed == deal.StatusResolved {
		winner, err = p.reader.GetDisputeWinner(ctx, d.EscrowAddress)
		if err != nil {
			log.WithError(err).WithField("deal_id", d.ID).Warn("poll: dispute winner lookup failed")
			winner = ""
		}
	}

	if n, notify := Decide(d, observed, winner, p.arbitrator); notify {
		if err := p.notifier.SendMessage(ctx, n.ChannelID, n.Text); err != nil {
			log.WithError(err).WithField("deal_id", d.ID).Warn("poll: notification delivery failed")
		}
	}
	return nil
}
