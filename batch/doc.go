// Package batch turns long lists of strings into embeddings by calling a
// provider.Provider once per fixed-size chunk.
//
// Results are always returned in input order. Every chunk is checked against
// its input length, so a provider that drops or duplicates items is reported
// as ErrCountMismatch instead of silently misaligning vectors and values.
//
// The zero-configuration path is EncodeBatch:
//
//	vecs, err := batch.EncodeBatch(ctx, p, texts, 64)
//
// An Encoder adds bounded parallelism and rate limiting. Each commits chunk
// by chunk, in order, and stops at the first failure:
//
//	enc, _ := batch.NewEncoder(p, batch.WithConcurrency(4), batch.WithRateLimit(10, 1))
//	err := enc.Each(ctx, texts, 64, func(offset int, vecs [][]float32) error {
//		// store texts[offset:offset+len(vecs)]
//		return nil
//	})
package batch
