// Package knowledge queries the user's private document index for snippets
// that ground generated replies.
package knowledge

import "context"

// Chunk is one ranked snippet returned by the index.
type Chunk struct {
	DocumentID string
	Text       string
}

// Searcher is the knowledge-search contract. An empty index yields an empty
// slice, never an error; callers treat any error as degradable.
type Searcher interface {
	Search(ctx context.Context, keywords []string) ([]Chunk, error)
}
