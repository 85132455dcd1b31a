package fanout

import (
	"github.com/skshohagmiah/flin-fanout/internal/collection"
	"github.com/skshohagmiah/flin-fanout/internal/metrics"
)

// Where adds a constraint. Depending on what is already embedded it is
// embedded into every variant, split across new variants, or deferred to
// client-side evaluation. Unsupported combinations never fail here.
func (q *Query) Where(field string, op collection.Operator, value interface{}) *Query {
	f := collection.Filter{Field: field, Op: op, Value: value}
	values, isList := collection.Values(value)

	switch op {
	case collection.OpIn, collection.OpArrayContainsAny:
		if q.embeds(collection.OpIn, collection.OpArrayContainsAny, collection.OpNotIn) {
			q.deferFilter(f)
			return q
		}
		if isList && len(values) > q.chunkSize {
			q.split(f, values)
			return q
		}
		if isList && len(values) == 0 {
			// An empty list is treated as no filter at all.
			return q
		}

	case collection.OpNotIn:
		if q.embeds(collection.OpIn, collection.OpArrayContainsAny, collection.OpNotIn, collection.OpNe) {
			q.deferFilter(f)
			return q
		}
		if isList && len(values) > q.chunkSize {
			q.narrow(f, values)
			return q
		}
		if isList && len(values) == 0 {
			return q
		}

	case collection.OpNe:
		if q.embeds(collection.OpIn, collection.OpArrayContainsAny, collection.OpNotIn, collection.OpNe) {
			q.deferFilter(f)
			return q
		}

	case collection.OpArrayNotContainsAny:
		q.deferFilter(f)
		return q
	}

	q.embed(f)
	return q
}

// embeds reports whether any variant already carries one of ops.
func (q *Query) embeds(ops ...collection.Operator) bool {
	for _, v := range q.variants {
		for _, f := range v.filters {
			for _, op := range ops {
				if f.Op == op {
					return true
				}
			}
		}
	}
	return false
}

// embed adds f to every variant; the variant count is unchanged.
func (q *Query) embed(f collection.Filter) {
	for i, v := range q.variants {
		q.variants[i] = v.with(f)
	}
}

// split replaces the variants with their cross product against the chunks
// of values: N variants and ceil(L/chunkSize) chunks give N*chunks variants,
// ordered chunk by chunk.
func (q *Query) split(f collection.Filter, values []interface{}) {
	chunks := collection.Chunk(values, q.chunkSize)
	next := make([]variant, 0, len(chunks)*len(q.variants))
	for _, chunk := range chunks {
		for _, v := range q.variants {
			next = append(next, v.with(collection.Filter{Field: f.Field, Op: f.Op, Value: chunk}))
		}
	}
	q.variants = next
	q.checkVariantCount()
}

// narrow embeds every chunk of a long not-in list into each variant in turn,
// so each variant ends up with one not-in filter per chunk. The variant
// count is unchanged. Stores that allow a single not-in per query reject the
// result.
func (q *Query) narrow(f collection.Filter, values []interface{}) {
	for _, chunk := range collection.Chunk(values, q.chunkSize) {
		q.embed(collection.Filter{Field: f.Field, Op: f.Op, Value: chunk})
	}
}

func (q *Query) deferFilter(f collection.Filter) {
	q.deferred = append(q.deferred, f)
	metrics.DeferredFiltersTotal.WithLabelValues(string(f.Op)).Inc()
	q.log.Debug("constraint deferred", "field", f.Field, "op", f.Op)
}

func (q *Query) checkVariantCount() {
	if q.warned || q.warnVariants <= 0 || len(q.variants) <= q.warnVariants {
		return
	}
	q.warned = true
	q.log.Warn("fanout query needs many physical queries",
		"variants", len(q.variants), "threshold", q.warnVariants)
}
