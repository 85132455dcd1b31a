// Package fanout runs one logical collection query as several physical
// queries, working around the store's per-query limits on membership
// filters, and merges the results.
//
// A membership filter (in, not-in, array-contains-any) carries at most
// ChunkSize values and only one may be embedded per physical query. Longer
// value lists are split across physical query variants; filters that cannot
// be embedded next to the ones already present are deferred and evaluated
// against fetched documents.
package fanout

import (
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
)

// Defaults
const (
	DefaultChunkSize    = 10
	DefaultWarnVariants = 50
)

// Option configures a Query.
type Option func(*Query)

// WithChunkSize sets the number of values one physical membership filter
// may carry.
func WithChunkSize(n int) Option {
	return func(q *Query) {
		if n > 0 {
			q.chunkSize = n
		}
	}
}

// WithWarnVariants sets the variant count above which a warning is logged;
// 0 disables the warning.
func WithWarnVariants(n int) Option {
	return func(q *Query) { q.warnVariants = n }
}

// WithRateLimit paces physical queries to perSec with the given burst.
// perSec <= 0 leaves them unpaced.
func WithRateLimit(perSec float64, burst int) Option {
	return func(q *Query) {
		if perSec <= 0 {
			q.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		q.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Query) {
		if l != nil {
			q.log = l
		}
	}
}

// variant is one physical query: the base collection plus the filters
// embedded in it. Variants live in an arena indexed by position, which is
// also their execution order.
type variant struct {
	filters []collection.Filter
}

func (v variant) with(f collection.Filter) variant {
	filters := make([]collection.Filter, len(v.filters), len(v.filters)+1)
	copy(filters, v.filters)
	return variant{filters: append(filters, f)}
}

// Query is a logical query under construction. Where and Limit mutate the
// query and return it for chaining. A Query is not safe for concurrent use.
type Query struct {
	name         string
	base         collection.Ref
	variants     []variant
	deferred     []collection.Filter
	limit        int
	chunkSize    int
	warnVariants int
	warned       bool
	limiter      *rate.Limiter
	log          *slog.Logger
}

// New starts a logical query over the named collection of client.
func New(client collection.Client, name string, opts ...Option) *Query {
	q := &Query{
		name:         name,
		base:         client.Collection(name),
		variants:     []variant{{}},
		limit:        -1,
		chunkSize:    DefaultChunkSize,
		warnVariants: DefaultWarnVariants,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.log = q.log.With("component", "fanout", "collection", name)
	return q
}

// Limit caps the merged result size. n <= 0 means unbounded.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Plan describes the physical queries and deferred constraints of a Query.
type Plan struct {
	Collection string                `json:"collection"`
	Variants   [][]collection.Filter `json:"variants"`
	Deferred   []collection.Filter   `json:"deferred"`
	Limit      int                   `json:"limit"`
}

// Plan returns a copy of the current physical plan without executing it.
func (q *Query) Plan() Plan {
	p := Plan{
		Collection: q.name,
		Variants:   make([][]collection.Filter, len(q.variants)),
		Deferred:   append([]collection.Filter{}, q.deferred...),
		Limit:      q.limit,
	}
	for i, v := range q.variants {
		p.Variants[i] = append([]collection.Filter{}, v.filters...)
	}
	return p
}

// physical builds the store query for variant v.
func (q *Query) physical(v variant) collection.Ref {
	ref := q.base
	for _, f := range v.filters {
		ref = ref.Where(f.Field, f.Op, f.Value)
	}
	if q.limit > 0 {
		ref = ref.Limit(q.limit)
	}
	return ref
}
