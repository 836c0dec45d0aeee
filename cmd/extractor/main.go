// Command extractor runs multi-method extraction over a bank statement
// file and prints the fused result as JSON.
//
// Usage:
//
//	extractor <statement-file> [search query]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bankfuse/bankfuse/internal/cache"
	"github.com/bankfuse/bankfuse/internal/extract"
	"github.com/bankfuse/bankfuse/internal/extract/sniffer"
	"github.com/bankfuse/bankfuse/internal/fusion"
	"github.com/bankfuse/bankfuse/internal/nlp"
	"github.com/bankfuse/bankfuse/pkg/config"
)

// output is the document printed to stdout.
type output struct {
	File         string                 `json:"file"`
	Kind         string                 `json:"kind"`
	FromCache    bool                   `json:"from_cache"`
	Result       *fusion.CombinedResult `json:"result"`
	Recognitions []*nlp.Recognition     `json:"recognitions,omitempty"`
	SearchHits   []nlp.Hit              `json:"search_hits,omitempty"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return errors.New("usage: extractor <statement-file> [search query]")
	}
	path := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	deps, err := InitDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read statement: %w", err)
	}

	ctx := context.Background()
	kind := sniffer.DetectKind(data)
	out := output{File: path, Kind: string(kind)}

	combined, fromCache, err := deps.extractCombined(ctx, data, kind)
	if err != nil {
		return err
	}
	out.Result = combined
	out.FromCache = fromCache

	out.Recognitions = deps.Recognizer.Annotate(combined.Transactions)
	if err := deps.Index.IndexTransactions(combined.Transactions, out.Recognitions); err != nil {
		logger.Warn("indexing fused transactions", slog.String("error", err.Error()))
	}

	if len(os.Args) > 2 {
		hits, err := deps.Index.Search(os.Args[2], 10)
		if err != nil {
			logger.Warn("search failed", slog.String("error", err.Error()))
		} else {
			out.SearchHits = hits
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// extractCombined runs the pipeline, consulting the cache first.
func (d *Dependencies) extractCombined(ctx context.Context, data []byte, kind sniffer.Kind) (*fusion.CombinedResult, bool, error) {
	var key string
	if d.Cache != nil {
		key = cache.Key(data)
		if cached, err := d.Cache.Get(ctx, key); err == nil {
			d.Logger.Info("serving combined result from cache", slog.String("key", key[:12]))
			return cached, true, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			d.Logger.Warn("cache lookup failed", slog.String("error", err.Error()))
		}
	}

	methods := d.MethodsFor(kind)
	if len(methods) == 0 {
		return nil, false, fmt.Errorf("no extraction method can handle %q files", kind)
	}

	results := d.Runner.Run(ctx, data, methods)
	inputs := make([]extract.Result, 0, len(results))
	for _, r := range results {
		inputs = append(inputs, *r)
	}
	combined, err := d.Engine.CombineResults(inputs)
	if err != nil {
		return nil, false, fmt.Errorf("combine results: %w", err)
	}

	if d.Cache != nil {
		if err := d.Cache.Put(ctx, key, combined); err != nil {
			d.Logger.Warn("cache store failed", slog.String("error", err.Error()))
		}
	}
	return combined, false, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
