package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/shopsearch/internal/db"
	"github.com/kailas-cloud/shopsearch/internal/db/redis"
	"github.com/kailas-cloud/shopsearch/internal/domain"
	"github.com/kailas-cloud/shopsearch/internal/domain/product"
)

// store is the consumer interface for the hash-backed catalog (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	SearchList(ctx context.Context, index, query string, offset, limit int, fields []string) (*db.SearchResult, error)
}

// NameField is the TAG field holding the lower-cased product name.
const NameField = "name_exact"

// StoreReader reads product records stored as hashes next to the product vectors.
type StoreReader struct {
	store     store
	keyPrefix string
	index     string
}

// NewStoreReader creates a catalog reader over <keyPrefix>products:<id> hashes.
func NewStoreReader(s store, keyPrefix, index string) *StoreReader {
	if index == "" {
		index = keyPrefix + "products:idx"
	}
	return &StoreReader{store: s, keyPrefix: keyPrefix, index: index}
}

// ByID returns the product with the given identifier.
func (r *StoreReader) ByID(ctx context.Context, id string) (product.Product, error) {
	fields, err := r.store.HGetAll(ctx, r.key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return product.Product{}, fmt.Errorf("product %s: %w", id, domain.ErrNotFound)
		}
		return product.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}

	p, err := product.FromFields(id, fields)
	if err != nil {
		return product.Product{}, fmt.Errorf("decode product %s: %w", id, err)
	}
	return p, nil
}

// ByName returns the product whose name matches exactly, ignoring case.
func (r *StoreReader) ByName(ctx context.Context, name string) (product.Product, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return product.Product{}, fmt.Errorf("empty product name: %w", domain.ErrNotFound)
	}

	sr, err := r.store.SearchList(ctx, r.index, redis.TagQuery(NameField, name), 0, 1, nil)
	if err != nil {
		return product.Product{}, fmt.Errorf("find product %q: %w", name, err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return product.Product{}, fmt.Errorf("product %q: %w", name, domain.ErrNotFound)
	}

	e := sr.Entries[0]
	p, err := product.FromFields(strings.TrimPrefix(e.Key, r.keyPrefix+"products:"), e.Fields)
	if err != nil {
		return product.Product{}, fmt.Errorf("decode product %q: %w", name, err)
	}
	return p, nil
}

func (r *StoreReader) key(id string) string {
	return r.keyPrefix + "products:" + id
}
