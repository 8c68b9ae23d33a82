package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/letterhive/letterfeed/app/cache"
	"github.com/letterhive/letterfeed/app/sitemap"
)

// ProcessedStore holds the durable, deduplicated, chronologically sorted
// entry list per source. Values are JSON entry arrays under the source's
// processed key, written only as complete snapshots and never expired.
// Mutation goes through MergeNew exclusively.
type ProcessedStore struct {
	store cache.Store
}

func NewProcessedStore(store cache.Store) *ProcessedStore {
	return &ProcessedStore{store: store}
}

// Get returns the current snapshot for a processed key. found distinguishes
// a store that was created empty from one that does not exist yet.
func (s *ProcessedStore) Get(ctx context.Context, key string) ([]sitemap.Entry, bool, error) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	var entries []sitemap.Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, false, fmt.Errorf("corrupt processed store at %s: %w", key, err)
	}
	return entries, true, nil
}

// Put overwrites the snapshot. Used only to pin an empty store on a source's
// first run; every other write goes through MergeNew.
func (s *ProcessedStore) Put(ctx context.Context, key string, entries []sitemap.Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode entries for %s: %w", key, err)
	}
	return s.store.Set(ctx, key, string(data), 0)
}

// MergeNew folds fresh entries into the stored snapshot and returns the
// merged result. The fold runs inside the store's optimistic update cycle,
// so it always applies against the latest snapshot even when two merge runs
// race on the same source: the loser re-reads and re-merges instead of
// overwriting the winner's entries.
func (s *ProcessedStore) MergeNew(ctx context.Context, key string, fresh []sitemap.Entry) ([]sitemap.Entry, error) {
	var merged []sitemap.Entry

	err := s.store.Update(ctx, key, func(current string, exists bool) (string, error) {
		var existing []sitemap.Entry
		if exists && current != "" {
			if err := json.Unmarshal([]byte(current), &existing); err != nil {
				return "", fmt.Errorf("corrupt processed store at %s: %w", key, err)
			}
		}

		merged = mergeEntries(existing, fresh)

		data, err := json.Marshal(merged)
		if err != nil {
			return "", fmt.Errorf("failed to encode entries for %s: %w", key, err)
		}
		return string(data), nil
	})
	if err != nil {
		return nil, err
	}

	return merged, nil
}

// mergeEntries unions fresh entries into existing ones by URL (existing
// entries win) and restores descending-lastmod order.
func mergeEntries(existing, fresh []sitemap.Entry) []sitemap.Entry {
	seen := make(map[string]struct{}, len(existing))
	for _, entry := range existing {
		seen[entry.URL] = struct{}{}
	}

	merged := make([]sitemap.Entry, 0, len(existing)+len(fresh))
	merged = append(merged, existing...)
	for _, entry := range fresh {
		if _, dup := seen[entry.URL]; dup {
			continue
		}
		seen[entry.URL] = struct{}{}
		merged = append(merged, entry)
	}

	sortEntries(merged)
	return merged
}

func sortEntries(entries []sitemap.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LastMod.After(entries[j].LastMod)
	})
}
