package validator

import (
	"context"
	"sync"

	"iptv-scout/work/types"

	"github.com/panjf2000/ants/v2"
)

// Credential is one username/password pair for a bulk check.
type Credential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// BulkResult pairs a checked credential with its validation outcome.
type BulkResult struct {
	Credential
	Result *types.ValidationResult `json:"result"`
}

// ValidateBulk checks many credential pairs against one panel with a
// bounded worker pool. Results come back in input order; a cancelled
// context leaves the remaining entries with a cancellation issue instead
// of dropping them.
func (v *Validator) ValidateBulk(ctx context.Context, baseURL string, creds []Credential) []BulkResult {
	results := make([]BulkResult, len(creds))

	pool, err := ants.NewPool(v.cfg.WorkerThreads)
	if err != nil {
		// sequential fallback, pool sizing is config-controlled
		for i, cred := range creds {
			results[i] = v.checkOne(ctx, baseURL, cred)
		}
		return results
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, cred := range creds {
		i, cred := i, cred
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			results[i] = v.checkOne(ctx, baseURL, cred)
		}); err != nil {
			results[i] = v.checkOne(ctx, baseURL, cred)
			wg.Done()
		}
	}
	wg.Wait()

	return results
}

func (v *Validator) checkOne(ctx context.Context, baseURL string, cred Credential) BulkResult {
	if err := ctx.Err(); err != nil {
		result := &types.ValidationResult{Kind: types.KindXtream, KindName: types.KindXtream.String()}
		result.AddIssue("validation cancelled")
		return BulkResult{Credential: cred, Result: result}
	}

	result := v.ValidateSource(ctx, Request{
		Kind:     types.KindXtream,
		URL:      baseURL,
		Username: cred.Username,
		Password: cred.Password,
	})
	return BulkResult{Credential: cred, Result: result}
}
