package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"props-shop/internal/logger"
	"props-shop/internal/models"
)

// Store is the read-only catalog queried by the pricing engine. The catalog
// is immutable per deploy, so implementations may cache aggressively.
type Store interface {
	ProductBySlug(slug string) (*models.Product, bool)
	Slugs() []string
}

// FileStore loads one JSON document per product from a directory at startup
// and serves lookups from memory.
type FileStore struct {
	mu       sync.RWMutex
	products map[string]*models.Product
	log      *logger.Logger
}

func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog dir %s: %w", dir, err)
	}

	fs := &FileStore{products: make(map[string]*models.Product), log: log}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read product file %s: %w", path, err)
		}
		var product models.Product
		if err := json.Unmarshal(data, &product); err != nil {
			return nil, fmt.Errorf("failed to parse product file %s: %w", path, err)
		}
		if product.Slug == "" {
			product.Slug = strings.TrimSuffix(entry.Name(), ".json")
		}
		fs.products[product.Slug] = &product
	}

	log.Info("CATALOG", fmt.Sprintf("Loaded %d products from %s", len(fs.products), dir))
	return fs, nil
}

func (fs *FileStore) ProductBySlug(slug string) (*models.Product, bool) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	p, ok := fs.products[slug]
	return p, ok
}

func (fs *FileStore) Slugs() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	slugs := make([]string, 0, len(fs.products))
	for slug := range fs.products {
		slugs = append(slugs, slug)
	}
	return slugs
}

// MemStore is a map-backed Store for tests.
type MemStore map[string]*models.Product

func (m MemStore) ProductBySlug(slug string) (*models.Product, bool) {
	p, ok := m[slug]
	return p, ok
}

func (m MemStore) Slugs() []string {
	slugs := make([]string, 0, len(m))
	for slug := range m {
		slugs = append(slugs, slug)
	}
	return slugs
}
