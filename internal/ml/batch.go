package ml

import (
	"context"
	"fmt"
	"strings"

	"house-pricer/internal/common"
	"house-pricer/internal/features"

	"golang.org/x/sync/errgroup"
)

// BatchPolicy selects how a batch reacts to a failing item.
type BatchPolicy string

const (
	// BatchIsolate prices every item independently and reports per-item
	// errors. A malformed record never aborts the rest of the batch.
	BatchIsolate BatchPolicy = common.BatchPolicyIsolate
	// BatchFailFast aborts the batch on the first failing item.
	BatchFailFast BatchPolicy = common.BatchPolicyFailFast
)

// ParseBatchPolicy parses a policy name.
func ParseBatchPolicy(s string) (BatchPolicy, error) {
	switch BatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", BatchIsolate:
		return BatchIsolate, nil
	case BatchFailFast:
		return BatchFailFast, nil
	}
	return "", fmt.Errorf("unknown batch policy %q", s)
}

// BatchItem is the outcome for the request at Index: exactly one of Result
// and Err is set.
type BatchItem struct {
	Index  int
	Result *Result
	Err    error
}

// PredictBatch prices reqs on a bounded worker pool. The returned items have
// the same length and order as reqs. Under BatchFailFast the first item
// error is returned instead and no items are reported.
func (p *Pipeline) PredictBatch(ctx context.Context, reqs []features.Request) ([]BatchItem, error) {
	if len(reqs) > p.opts.MaxBatchSize {
		return nil, common.InvalidInput("batch_size", "batch of %d exceeds limit %d", len(reqs), p.opts.MaxBatchSize)
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.BatchSizeObserve(len(reqs))
	}

	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.BatchWorkers)

	for i, req := range reqs {
		i, req := i, req
		items[i].Index = i
		g.Go(func() error {
			res, err := p.Predict(gctx, req)
			if err != nil {
				items[i].Err = err
				if p.opts.BatchPolicy == BatchFailFast {
					return fmt.Errorf("batch item %d: %w", i, err)
				}
				return nil
			}
			items[i].Result = &res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}
