package fanout

import (
	"context"
	"fmt"
	"time"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
	"github.com/skshohagmiah/flin-fanout/internal/metrics"
	"github.com/skshohagmiah/flin-fanout/internal/timer"
)

// Batch is the set of documents newly admitted from one physical query.
type Batch struct {
	Variant  int                   `json:"variant"`
	Variants int                   `json:"variants"`
	Docs     []collection.Snapshot `json:"-"`
}

// ProgressFunc receives one Batch per physical query, in execution order,
// including empty ones. A returned error aborts Get.
type ProgressFunc func(ctx context.Context, batch Batch) error

// Stats describes one execution. Duplicates counts every repeat fetch of an
// id already admitted or rejected; Rejected counts distinct ids.
type Stats struct {
	Variants   int `json:"variants"`
	Deferred   int `json:"deferred"`
	Fetched    int `json:"fetched"`
	Duplicates int `json:"duplicates"`
	Rejected   int `json:"rejected"`
	Truncated  int `json:"truncated"`
}

// Result is the merged answer of a logical query. Docs are in first-seen
// order across variants.
type Result struct {
	Docs  []collection.Snapshot
	Stats Stats
}

// Get runs every physical query in order, deduplicates by document id,
// applies the deferred constraints and the limit, and reports each variant's
// admitted documents to progress (which may be nil).
//
// Store errors abort the call and are returned unchanged. Failures while
// evaluating a deferred constraint only exclude the document concerned.
func (q *Query) Get(ctx context.Context, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	tm := timer.New("query", q.log)

	res := &Result{Stats: Stats{Variants: len(q.variants), Deferred: len(q.deferred)}}
	seen := make(map[string]struct{})
	// rejected ids are never re-evaluated; the deferred filters would give
	// the same answer
	rejected := make(map[string]struct{})

	for i, v := range q.variants {
		if q.limiter != nil {
			if err := q.limiter.Wait(ctx); err != nil {
				q.observe(res, start, "store_error")
				return nil, err
			}
		}

		snaps, err := q.physical(v).Get(ctx)
		metrics.PhysicalQueriesTotal.WithLabelValues(q.name).Inc()
		if err != nil {
			q.log.Error("physical query failed", "variant", i, "variants", len(q.variants), "err", err)
			q.observe(res, start, "store_error")
			return nil, err
		}
		tm.LogAndReset(fmt.Sprintf("fetched %d/%d", i, len(q.variants)))
		res.Stats.Fetched += len(snaps)

		batch := make([]collection.Snapshot, 0, len(snaps))
		for _, snap := range snaps {
			id := snap.ID()
			if _, dup := seen[id]; dup {
				res.Stats.Duplicates++
				continue
			}
			if _, dup := rejected[id]; dup {
				res.Stats.Duplicates++
				continue
			}
			if !q.accept(snap) {
				rejected[id] = struct{}{}
				res.Stats.Rejected++
				continue
			}
			if q.limit > 0 && len(res.Docs)+len(batch) >= q.limit {
				res.Stats.Truncated++
				continue
			}
			seen[id] = struct{}{}
			batch = append(batch, snap)
		}

		if progress != nil {
			if err := progress(ctx, Batch{Variant: i, Variants: len(q.variants), Docs: batch}); err != nil {
				q.observe(res, start, "progress_error")
				return nil, fmt.Errorf("progress: %w", err)
			}
		}
		res.Docs = append(res.Docs, batch...)
	}

	tm.LogAndReset("merged")
	q.observe(res, start, "ok")
	return res, nil
}

func (q *Query) observe(res *Result, start time.Time, status string) {
	metrics.QueriesTotal.WithLabelValues(q.name, status).Inc()
	metrics.QueryDuration.WithLabelValues(q.name).Observe(time.Since(start).Seconds())
	if status != "ok" {
		return
	}
	metrics.VariantsPerQuery.Observe(float64(res.Stats.Variants))
	metrics.DocumentsReturned.Observe(float64(len(res.Docs)))
	metrics.RejectedDocumentsTotal.Add(float64(res.Stats.Rejected))
	q.log.Debug("fanout query complete",
		"variants", res.Stats.Variants,
		"deferred", res.Stats.Deferred,
		"fetched", res.Stats.Fetched,
		"returned", len(res.Docs),
		"duration", time.Since(start),
	)
}
