package clicks

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mvolkov/linkcut/internal/store"
)

const (
	// DefaultBatchSize matches the consumer prefetch set by the worker binary.
	DefaultBatchSize  = 100
	DefaultFlushEvery = 2 * time.Second
)

// Worker drains click events, aggregates them per short code, and upserts
// link_engagements rows in one transaction per batch. Messages are acked
// only after the transaction commits; a failed batch is nacked back onto
// the queue.
type Worker struct {
	db         *gorm.DB
	batchSize  int
	flushEvery time.Duration
}

func NewWorker(db *gorm.DB) *Worker {
	return &Worker{db: db, batchSize: DefaultBatchSize, flushEvery: DefaultFlushEvery}
}

// Run consumes until the delivery channel closes.
func (w *Worker) Run(msgs <-chan amqp091.Delivery) {
	ticker := time.NewTicker(w.flushEvery)
	defer ticker.Stop()

	var events []Event
	var deliveries []amqp091.Delivery

	flush := func() {
		w.flush(events, deliveries)
		events, deliveries = nil, nil
	}

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				slog.Warn("click queue channel closed, flushing remainder")
				flush()
				return
			}
			var ev Event
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				slog.Error("undecodable click event, rejecting", "err", err)
				d.Reject(false)
				continue
			}
			events = append(events, ev)
			deliveries = append(deliveries, d)
			if len(events) >= w.batchSize {
				flush()
				ticker.Reset(w.flushEvery)
			}
		case <-ticker.C:
			if len(events) > 0 {
				slog.Info("timer flush", "count", len(events))
				flush()
			}
		}
	}
}

func (w *Worker) flush(events []Event, deliveries []amqp091.Delivery) {
	if len(events) == 0 {
		return
	}
	if err := ApplyBatch(w.db, events); err != nil {
		slog.Error("batch failed, requeueing", "count", len(events), "err", err)
		for _, d := range deliveries {
			d.Nack(false, true)
		}
		return
	}
	for _, d := range deliveries {
		d.Ack(false)
	}
	slog.Info("batch applied", "count", len(events))
}

// ApplyBatch folds a batch of events into link_engagements. Counts for the
// same code collapse into a single upsert that increments atomically.
func ApplyBatch(db *gorm.DB, events []Event) error {
	type agg struct {
		count    int64
		lastSeen time.Time
	}
	byCode := make(map[string]*agg)
	for _, ev := range events {
		a := byCode[ev.ShortCode]
		if a == nil {
			a = &agg{}
			byCode[ev.ShortCode] = a
		}
		a.count++
		if ev.Timestamp.After(a.lastSeen) {
			a.lastSeen = ev.Timestamp
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for code, a := range byCode {
			rec := store.LinkEngagement{ShortCode: code, ClickCount: a.count, LastSeen: a.lastSeen}
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "short_code"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"click_count": gorm.Expr("click_count + excluded.click_count"),
					"last_seen":   a.lastSeen,
				}),
			}).Create(&rec).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
