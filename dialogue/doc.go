// Package dialogue parses plays in Project Gutenberg layout and indexes
// their spoken lines for semantic search.
//
//	play, _ := dialogue.Parse(f)
//	ix := dialogue.NewIndex(store)
//	_ = ix.AddPlay(ctx, play, 64)
//	hits, _ := ix.Search(ctx, "should i be?", 10)
package dialogue
