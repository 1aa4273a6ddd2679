package test

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"dealflow/deal"
	"dealflow/test/actors"
	"dealflow/test/chaos"
	"dealflow/test/infra"
	"dealflow/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestDealLifecycleConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed

	var (
		pgC *infra.PGContainer
		dsn string
		err error
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		pgC = &infra.PGContainer{}
	case os.Getenv("DEALFLOW_STRESS_PG_DSN") != "":
		dsn = os.Getenv("DEALFLOW_STRESS_PG_DSN")
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	repo := deal.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if _, err := pool.Exec(ctx, `DELETE FROM deals WHERE channel_id = 'channel-stress'`); err != nil {
		t.Fatalf("clear previous run: %v", err)
	}

	locker := deal.NewLocker()
	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	// creators and lifecycle advancers battling over the same table
	for i := 0; i < *flConcurrency; i++ {
		i := i
		g.Go(func() error { return actors.Creator(ctx2, pool, seed+int64(i), stop) })
		g.Go(func() error { return actors.Advancer(ctx2, pool, locker, seed+1000+int64(i), stop) })
	}
	// escrow overwrite attempts, all of which must lose
	g.Go(func() error { return actors.EscrowRacer(ctx2, pool, locker, seed+2000, stop) })
	// read paths of the poller and the API
	g.Go(func() error { return actors.Reader(ctx2, pool, seed+3000, stop) })
	// chaos: kill random backend
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	// schedule oracle checks until duration reached
	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	rows, err := pool.Query(ctx, `SELECT deal_id, status, escrow_address, updated_at FROM deals ORDER BY updated_at DESC LIMIT 50`)
	if err != nil {
		t.Logf("dump deals error: %v", err)
		return
	}
	defer rows.Close()
	t.Logf("-- deals --")
	for rows.Next() {
		var id, status, escrow string
		var updated time.Time
		if err := rows.Scan(&id, &status, &escrow, &updated); err != nil {
			continue
		}
		t.Logf("deal_id=%s status=%s escrow=%s updated=%s", id, status, escrow, updated.Format(time.RFC3339))
	}
}
