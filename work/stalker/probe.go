package stalker

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// probeParallel fans the handshake probe across a worker pool and returns
// the first endpoint whose status is accepted. The shared context is
// cancelled as soon as a winner lands so losing probes abort early.
// Returns "" when no candidate answers.
func (c *Client) probeParallel(ctx context.Context, candidates []string) string {
	pool, err := ants.NewPool(c.cfg.ProbeWorkers, ants.WithNonblocking(false))
	if err != nil {
		// pool construction only fails on bad sizing, walk sequentially
		return ""
	}
	defer pool.Release()

	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     sync.WaitGroup
		once   sync.Once
		winner string
	)

	for _, endpoint := range candidates {
		if probeCtx.Err() != nil {
			break
		}
		endpoint := endpoint
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if probeCtx.Err() != nil {
				return
			}
			if c.probeEndpoint(probeCtx, endpoint) {
				once.Do(func() {
					winner = endpoint
					cancel()
				})
			}
		})
		if submitErr != nil {
			wg.Done()
		}
	}

	wg.Wait()
	return winner
}
