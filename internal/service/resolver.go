package service

import (
	"context"
	"strings"

	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/store"
)

// CategoryResolver turns category names into ids on one import
// transaction, creating missing categories. Names shared by several
// episodes hit the store once.
type CategoryResolver struct {
	tx   store.PodcastTx
	memo map[models.Namespace]map[string]int64
}

func NewCategoryResolver(tx store.PodcastTx) *CategoryResolver {
	return &CategoryResolver{
		tx: tx,
		memo: map[models.Namespace]map[string]int64{
			models.NamespaceChannel: {},
			models.NamespaceEpisode: {},
		},
	}
}

// Resolve returns the id of the category named exactly name in ns.
func (r *CategoryResolver) Resolve(ctx context.Context, ns models.Namespace, name string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, invalid(ns.String()+" category", "name must not be blank")
	}
	known, ok := r.memo[ns]
	if !ok {
		return 0, invalid("namespace", "unknown category namespace %d", ns)
	}
	if id, ok := known[name]; ok {
		return id, nil
	}
	id, err := r.tx.ResolveCategory(ctx, ns, name)
	if err != nil {
		return 0, err
	}
	known[name] = id
	return id, nil
}

// Resolved returns how many distinct names were resolved in ns.
func (r *CategoryResolver) Resolved(ns models.Namespace) int {
	return len(r.memo[ns])
}
