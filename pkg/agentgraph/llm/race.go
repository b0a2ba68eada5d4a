package llm

import (
	"context"
	"errors"
	"fmt"
)

// raceOutcome carries one branch's result to the collector.
type raceOutcome struct {
	completion *Completion
	err        error
}

// Race issues the same prompt to every model concurrently and returns the
// first successful completion. Losing branches are cancelled through a
// shared context as soon as a winner settles, so no request is left running
// unaccounted for.
//
// If every model fails, the individual errors are joined.
func (c *Client) Race(ctx context.Context, models []string, req CompletionRequest) (*Completion, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("llm: race requires at least one model")
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan raceOutcome, len(models))
	for _, model := range models {
		go func(model string) {
			branchReq := req
			branchReq.Model = model
			completion, err := c.Complete(raceCtx, branchReq)
			outcomes <- raceOutcome{completion: completion, err: err}
		}(model)
	}

	var errs []error
	for range models {
		select {
		case out := <-outcomes:
			if out.err == nil {
				return out.completion, nil
			}
			errs = append(errs, out.err)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("llm: all %d models failed: %w", len(models), errors.Join(errs...))
}
