package metrics

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

func StartDBCollectors(ctx context.Context, db *pgxpool.Pool, interval time.Duration, logger *log.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		updateDBGauges(ctx, db, logger)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				updateDBGauges(ctx, db, logger)
			}
		}
	}()
}

func updateDBGauges(ctx context.Context, db *pgxpool.Pool, logger *log.Logger) {
	// message counts by platform and outcome
	{
		rows, err := db.Query(ctx, `SELECT platform, sent, COUNT(*) FROM messages GROUP BY platform, sent`)
		if err != nil {
			logger.Printf("metrics db query messages: %v", err)
		} else {
			func() {
				defer rows.Close()
				for rows.Next() {
					var platform string
					var sent bool
					var cnt int64
					if err := rows.Scan(&platform, &sent, &cnt); err != nil {
						logger.Printf("metrics db scan messages: %v", err)
						continue
					}
					SetMessagesCount(platform, sent, cnt)
				}
			}()
		}
	}

	// outbox counts by status (+ pending)
	{
		rows, err := db.Query(ctx, `SELECT status, COUNT(*) FROM outbox_events GROUP BY status`)
		if err != nil {
			// table may not exist yet, skip quietly
			return
		}
		defer rows.Close()

		var pending int64
		for rows.Next() {
			var status string
			var cnt int64
			if err := rows.Scan(&status, &cnt); err != nil {
				logger.Printf("metrics db scan outbox: %v", err)
				continue
			}
			SetOutboxStatusCount(status, cnt)
			if status == "pending" {
				pending = cnt
			}
		}
		SetOutboxPendingCount(pending)
	}
}
