package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Method is one extraction strategy. Implementations must be safe for
// concurrent use.
type Method interface {
	Method() string
	Extract(ctx context.Context, data []byte) (*Result, error)
}

// Runner executes extraction methods concurrently. A method that fails or
// panics is dropped from the output; fusion works with whatever succeeded.
type Runner struct {
	maxConcurrent int
	methodTimeout time.Duration
	logger        *slog.Logger
}

func NewRunner(maxConcurrent int, methodTimeout time.Duration, logger *slog.Logger) *Runner {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		maxConcurrent: maxConcurrent,
		methodTimeout: methodTimeout,
		logger:        logger,
	}
}

// Run fans the input out to every method and collects the successful
// results in the order the methods were given.
func (r *Runner) Run(ctx context.Context, data []byte, methods []Method) []*Result {
	results := make([]*Result, len(methods))

	sem := make(chan struct{}, r.maxConcurrent)
	var wg sync.WaitGroup

	for i, method := range methods {
		wg.Add(1)
		go func(i int, m Method) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			results[i] = r.runOne(ctx, data, m)
		}(i, method)
	}
	wg.Wait()

	out := make([]*Result, 0, len(methods))
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}

func (r *Runner) runOne(ctx context.Context, data []byte, m Method) (res *Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("extraction method panicked",
				slog.String("method", m.Method()),
				slog.Any("panic", rec))
			res = nil
		}
	}()

	if ctx.Err() != nil {
		return nil
	}

	if r.methodTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.methodTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := m.Extract(ctx, data)
	if err != nil {
		r.logger.Warn("extraction method failed",
			slog.String("method", m.Method()),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return nil
	}
	if result == nil {
		r.logger.Warn("extraction method returned no result",
			slog.String("method", m.Method()))
		return nil
	}
	if result.Method == "" {
		result.Method = m.Method()
	}
	if result.ProcessingTime == 0 {
		result.ProcessingTime = time.Since(start)
	}
	return result
}

// MethodFunc adapts a function to the Method interface.
type MethodFunc struct {
	Name string
	Fn   func(ctx context.Context, data []byte) (*Result, error)
}

func (m MethodFunc) Method() string { return m.Name }

func (m MethodFunc) Extract(ctx context.Context, data []byte) (*Result, error) {
	if m.Fn == nil {
		return nil, fmt.Errorf("method %s has no implementation", m.Name)
	}
	return m.Fn(ctx, data)
}
