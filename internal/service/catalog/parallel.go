package catalog

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/kapu/shortlist-go/internal/domain"
)

// ResolveMany resolves covers concurrently with a bounded pool. The result
// has the same length and order as titles.
func (r *Resolver) ResolveMany(ctx context.Context, titles []string, category domain.Category) []string {
	results := make([]string, len(titles))
	if len(titles) == 0 {
		return results
	}

	p := pool.New().WithMaxGoroutines(r.workers)
	for i, title := range titles {
		idx := i
		t := title
		p.Go(func() {
			results[idx] = r.Resolve(ctx, t, category)
		})
	}
	p.Wait()

	return results
}
