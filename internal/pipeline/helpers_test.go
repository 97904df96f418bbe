package pipeline_test

import (
	"time"

	"dubline/internal/chunker"
)

func chunkOpts() chunker.Options {
	return chunker.Options{MaxDuration: 3 * time.Second, MinDuration: time.Second, Lookback: time.Second}
}
