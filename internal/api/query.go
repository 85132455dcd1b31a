package api

import (
	"fmt"
	"log/slog"

	"github.com/skshohagmiah/flin-fanout/internal/collection"
	"github.com/skshohagmiah/flin-fanout/internal/config"
	"github.com/skshohagmiah/flin-fanout/internal/fanout"
)

// WhereClause is one constraint of a QueryRequest. Op accepts the canonical
// operator spelling and its aliases.
type WhereClause struct {
	Field string      `json:"field"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// QueryRequest is the body of the query and explain endpoints.
type QueryRequest struct {
	Where []WhereClause `json:"where"`
	Limit int           `json:"limit"`
}

// FanoutOptions maps the fanout settings onto query options.
func FanoutOptions(cfg config.FanoutConfig, log *slog.Logger) []fanout.Option {
	return []fanout.Option{
		fanout.WithChunkSize(cfg.ChunkSize),
		fanout.WithWarnVariants(cfg.WarnVariants),
		fanout.WithRateLimit(cfg.RatePerSec, cfg.Burst),
		fanout.WithLogger(log),
	}
}

// BuildQuery turns req into a fanout query over the named collection.
func BuildQuery(client collection.Client, name string, req QueryRequest, opts ...fanout.Option) (*fanout.Query, error) {
	q := fanout.New(client, name, opts...)
	for i, w := range req.Where {
		op, err := collection.ParseOperator(w.Op)
		if err != nil {
			return nil, fmt.Errorf("where[%d]: %w", i, err)
		}
		if w.Field == "" {
			return nil, fmt.Errorf("where[%d]: field is required", i)
		}
		q.Where(w.Field, op, w.Value)
	}
	if req.Limit > 0 {
		q.Limit(req.Limit)
	}
	return q, nil
}

// Doc is the wire form of a fetched document.
type Doc struct {
	ID   string                 `json:"id"`
	Data map[string]interface{} `json:"data"`
}

func toDocs(snaps []collection.Snapshot) []Doc {
	out := make([]Doc, len(snaps))
	for i, s := range snaps {
		out[i] = Doc{ID: s.ID(), Data: s.Data()}
	}
	return out
}
