package synthesis

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"dubline/internal/logging"
)

// Synthesizer is the per-chunk operation a Pool fans out.
type Synthesizer interface {
	Synthesize(ctx context.Context, chunk TranslatedChunk) (Artifact, error)
}

// Pool runs a Synthesizer over chunks with a fixed number of workers.
type Pool struct {
	driver  Synthesizer
	workers int
	logger  *slog.Logger
}

// NewPool returns a pool with at least one worker.
func NewPool(driver Synthesizer, workers int, logger *slog.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{driver: driver, workers: workers, logger: logging.NewComponentLogger(logger, "synthesis")}
}

// Run synthesizes every chunk and returns artifacts keyed by chunk index.
// onArtifact is called serially as each artifact completes (in completion
// order); an error from it stops the run. On cancellation Run returns the
// artifacts completed so far together with the context error.
func (p *Pool) Run(ctx context.Context, chunks []TranslatedChunk, onArtifact func(Artifact) error) (map[int]Artifact, error) {
	results := make(map[int]Artifact, len(chunks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, chunk := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			artifact, err := p.driver.Synthesize(gctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			results[artifact.ChunkIndex] = artifact
			if onArtifact != nil {
				return onArtifact(artifact)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	mu.Lock()
	defer mu.Unlock()
	p.logger.Debug("synthesis pool finished",
		logging.Int("chunks", len(chunks)),
		logging.Int("completed", len(results)),
		logging.Int("workers", p.workers),
	)
	return results, err
}
