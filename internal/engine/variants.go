package engine

import (
	"context"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// VariantResult is the outcome of one named variant.
type VariantResult struct {
	Name   string
	Result *Result
	Err    error
}

// RunVariants runs independent configurations concurrently. Every variant
// builds its own ledger and gets its own timeout, so one failing or timing
// out never affects another. Results are ordered by name.
func (e *Engine) RunVariants(ctx context.Context, variants map[string]Config, timeout time.Duration) []VariantResult {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]VariantResult, len(names))
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i, name := range names {
		i, name := i, name
		cfg := variants[name]
		g.Go(func() error {
			vctx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				vctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			res, err := e.Run(vctx, cfg)
			if err != nil {
				e.logger.Warn("schedule variant failed", zap.String("variant", name), zap.Error(err))
			}
			results[i] = VariantResult{Name: name, Result: res, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
