// Package classify assigns coarse topic labels to crawled articles from
// their infobox fields and Wikipedia categories.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"

	crawlerrors "github.com/PentesterFlow/WikiCrawler/internal/errors"
)

const (
	categoryPrefix = "Category:"
	// DefaultAncestorDepth is how many parent levels are folded into topics.
	DefaultAncestorDepth = 2
	parentSeparator      = "\x1f"
)

// Tree maps a category name (without prefix) to its direct parents.
type Tree map[string][]string

// LoadTree reads a category tree from a JSON object of name -> [parents].
func LoadTree(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("category tree %s: %w", path, crawlerrors.ErrNotFound)
		}
		return nil, err
	}

	var tree Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, crawlerrors.NewParseError(path, "load_category_tree", err)
	}
	return tree, nil
}

// Resolver expands categories with their ancestors. Parent lookups are
// memoized in a bounded cache.
type Resolver struct {
	tree  Tree
	cache *bigcache.BigCache
}

// NewResolver creates a resolver over tree. A nil tree resolves every
// category to itself.
func NewResolver(tree Tree) (*Resolver, error) {
	cache, err := bigcache.New(context.Background(), bigcache.Config{
		Shards:             64,
		LifeWindow:         30 * time.Minute,
		CleanWindow:        5 * time.Minute,
		MaxEntriesInWindow: 100000,
		MaxEntrySize:       256,
		HardMaxCacheSize:   32,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create parent cache: %w", err)
	}
	if tree == nil {
		tree = Tree{}
	}
	return &Resolver{tree: tree, cache: cache}, nil
}

// Parents returns the direct parents of category in "Category:X" form.
func (r *Resolver) Parents(category string) []string {
	name := cleanCategory(category)

	if cached, err := r.cache.Get(name); err == nil {
		if len(cached) == 0 {
			return nil
		}
		return strings.Split(string(cached), parentSeparator)
	}

	direct := r.tree[name]
	parents := make([]string, 0, len(direct))
	for _, p := range direct {
		parents = append(parents, categoryPrefix+p)
	}
	_ = r.cache.Set(name, []byte(strings.Join(parents, parentSeparator)))

	if len(parents) == 0 {
		return nil
	}
	return parents
}

// Ancestors returns every ancestor of category up to maxDepth levels.
func (r *Resolver) Ancestors(category string, maxDepth int) []string {
	seen := make(map[string]int)
	r.collect(category, maxDepth, 0, seen)

	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// collect records the shallowest depth each ancestor was reached at, so a
// cycle in the tree cannot recurse forever.
func (r *Resolver) collect(category string, maxDepth, depth int, seen map[string]int) {
	if depth >= maxDepth {
		return
	}
	for _, parent := range r.Parents(category) {
		if d, ok := seen[parent]; ok && d <= depth {
			continue
		}
		seen[parent] = depth
		r.collect(parent, maxDepth, depth+1, seen)
	}
}

// Resolve returns raw plus their ancestors, prefix stripped, sorted and
// deduplicated.
func (r *Resolver) Resolve(raw []string, maxDepth int) []string {
	set := make(map[string]struct{}, len(raw))
	for _, cat := range raw {
		set[cleanCategory(cat)] = struct{}{}
		for _, a := range r.Ancestors(cat, maxDepth) {
			set[cleanCategory(a)] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for c := range set {
		if c != "" {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Close releases the parent cache.
func (r *Resolver) Close() error {
	return r.cache.Close()
}

func cleanCategory(name string) string {
	return strings.TrimSpace(strings.Replace(name, categoryPrefix, "", 1))
}
