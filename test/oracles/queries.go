package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariant checks run against the deals table while actors
// hammer it. Each query returns zero rows when the invariant holds.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_status_vocabulary",
			SQL: `SELECT deal_id, status FROM deals
                  WHERE status NOT IN ('draft','created','funded','released','refunded','disputed','resolved')`,
		},
		{
			Name: "O2_escrow_unique",
			SQL: `SELECT escrow_address, COUNT(*) FROM deals
                  WHERE escrow_address <> ''
                  GROUP BY escrow_address HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_escrow_requires_progress",
			SQL: `SELECT deal_id, status FROM deals
                  WHERE status <> 'draft' AND escrow_address = ''
                    AND updated_at < now() - interval '5 seconds'`,
		},
		{
			Name: "O4_updated_after_created",
			SQL:  `SELECT deal_id FROM deals WHERE updated_at < created_at`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", fmt.Errorf("oracle %s values: %w", o.Name, err)
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s rows: %w", o.Name, err)
		}
	}
	return "", "", nil
}
