package sources

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/letterhive/letterfeed/app/cache"
)

const knownSetKey = "sources:known"

// Registry tracks every source URL the pipeline has seen: a static seed list
// from the sources file plus the set accumulated at runtime. It backs cache
// warming and serves as the default bookmark provider for requests that name
// no sources.
type Registry struct {
	store cache.Store
	seed  []string
}

type seedFile struct {
	Sources []string `yaml:"sources"`
}

func NewRegistry(store cache.Store, seed []string) *Registry {
	return &Registry{store: store, seed: seed}
}

// LoadSeedFile reads the YAML sources file. A missing path is not an error;
// the registry then grows purely from observed traffic.
func LoadSeedFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var parsed seedFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("invalid sources file %s: %w", path, err)
	}

	return parsed.Sources, nil
}

func (r *Registry) Register(ctx context.Context, sourceURL string) error {
	return r.store.SAdd(ctx, knownSetKey, sourceURL)
}

// All returns the union of the seed list and every registered source,
// sorted for stable iteration.
func (r *Registry) All(ctx context.Context) ([]string, error) {
	known, err := r.store.SMembers(ctx, knownSetKey)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(known)+len(r.seed))
	for _, s := range r.seed {
		set[s] = struct{}{}
	}
	for _, s := range known {
		set[s] = struct{}{}
	}

	all := make([]string, 0, len(set))
	for s := range set {
		all = append(all, s)
	}
	sort.Strings(all)
	return all, nil
}

// Sources implements the bookmark-provider contract with the full known set.
func (r *Registry) Sources(ctx context.Context) ([]string, error) {
	return r.All(ctx)
}
