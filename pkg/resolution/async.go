package resolution

import (
	"context"

	"github.com/Ramsey-B/bramble/pkg/models"
)

// Future is the handle to an in-flight asynchronous resolve.
type Future struct {
	done   chan struct{}
	result *models.ResolutionResult
	err    error
}

// Wait blocks until the operation finishes or the caller's context ends.
func (f *Future) Wait(ctx context.Context) (*models.ResolutionResult, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AsyncResolver wraps the synchronous resolver; each operation runs in its
// own goroutine under the configured async timeout. The sync core stays
// authoritative.
type AsyncResolver struct {
	resolver *Resolver
}

// NewAsyncResolver creates the async facade.
func NewAsyncResolver(resolver *Resolver) *AsyncResolver {
	return &AsyncResolver{resolver: resolver}
}

// ResolveAsync starts a resolve and returns immediately.
func (a *AsyncResolver) ResolveAsync(ctx context.Context, mention models.Mention) *Future {
	f := &Future{done: make(chan struct{})}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.resolver.opts.AsyncTimeout)
	go func() {
		defer cancel()
		defer close(f.done)
		f.result, f.err = a.resolver.Resolve(opCtx, mention)
	}()

	return f
}
