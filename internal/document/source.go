package document

import "context"

// Source yields documents to fn one at a time, in source order. Each stops
// at the first error returned by fn, or when ctx is done. Item-level
// acquisition failures are the source's concern and are not passed to fn.
type Source interface {
	Each(ctx context.Context, fn func(ctx context.Context, doc Document) error) error
}

// SliceSource is a Source over an in-memory slice.
type SliceSource []Document

func (s SliceSource) Each(ctx context.Context, fn func(ctx context.Context, doc Document) error) error {
	for _, doc := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}
