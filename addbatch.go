package vecsearch

import (
	"context"
	"time"

	"github.com/hupe1980/vecsearch/batch"
)

// commitFunc stores one encoded chunk. offset indexes the chunk's first item
// in the caller's input. It must either commit the whole chunk or nothing.
type commitFunc func(offset int, vecs [][]float32) error

// addBatch drives enc over values and commits chunk by chunk. It returns the
// vectors of the committed chunks in input order. On failure the returned
// error is a *BatchError and the vectors cover exactly the committed items.
func addBatch(ctx context.Context, enc *batch.Encoder, logger *Logger, metrics MetricsCollector,
	values []string, batchSize int, commit commitFunc) ([][]float32, error) {
	start := time.Now()

	out := make([][]float32, 0, len(values))
	chunks := 0
	encoded := 0 // items the provider was asked to encode
	commitFailed := false

	err := enc.Each(ctx, values, batchSize, func(offset int, vecs [][]float32) error {
		encoded += len(vecs)
		if err := commit(offset, vecs); err != nil {
			commitFailed = true
			return err
		}
		out = append(out, vecs...)
		chunks++
		return nil
	})
	if err != nil && !commitFailed && batchSize > 0 {
		// The chunk that failed to encode was still sent.
		encoded += min(batchSize, len(values)-encoded)
	}

	duration := time.Since(start)
	metrics.RecordEncode(encoded, duration, err)
	metrics.RecordBatchInsert(len(values), len(values)-len(out), duration)

	if err != nil {
		err = &BatchError{Committed: len(out), Chunks: chunks, Err: translateError(err)}
		logger.LogBatchInsert(ctx, len(values), len(out), chunks, err)
		return out, err
	}

	logger.LogBatchInsert(ctx, len(values), len(out), chunks, nil)
	return out, nil
}
