package content

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// MirrorKinds are the kinds copied by Mirror.
var MirrorKinds = []Kind{KindPost, KindAuthor, KindCategory}

// Mirror copies every record of MirrorKinds from src into dst. All kinds are
// fetched before anything is written, so a failed fetch leaves dst as it was.
// It returns the number of records stored per kind.
func Mirror(ctx context.Context, src Repository, dst *SQLiteStore) (map[Kind]int, error) {
	fetched := make([][]Record, len(MirrorKinds))

	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range MirrorKinds {
		g.Go(func() error {
			records, err := src.ListByKind(gctx, kind)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", kind, err)
			}
			fetched[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[Kind]int, len(MirrorKinds))
	for i, kind := range MirrorKinds {
		if err := dst.ReplaceKind(ctx, kind, fetched[i]); err != nil {
			return nil, fmt.Errorf("store %s: %w", kind, err)
		}
		counts[kind] = len(fetched[i])
	}
	return counts, nil
}
