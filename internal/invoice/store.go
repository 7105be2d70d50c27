package invoice

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// DocumentStore persists invoice metadata per tenant.
type DocumentStore interface {
	// Create stores inv. If another invoice of the tenant already carries the
	// same non-empty idempotency key, that invoice is returned with created
	// false and inv is not stored.
	Create(ctx context.Context, inv Invoice) (stored Invoice, created bool, err error)
	Get(ctx context.Context, tenantID, invoiceID string) (Invoice, error)
	FindByIdempotencyKey(ctx context.Context, tenantID, key string) (Invoice, bool, error)
	// List returns the tenant's invoices, most recently updated first.
	List(ctx context.Context, tenantID string, limit int) ([]Invoice, error)
	Update(ctx context.Context, inv Invoice) error
}

// BlobStore stores invoice objects by name.
type BlobStore interface {
	Put(ctx context.Context, name, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// MemoryDocumentStore is a DocumentStore held in process memory.
type MemoryDocumentStore struct {
	mu      sync.RWMutex
	tenants map[string]map[string]Invoice
}

// NewMemoryDocumentStore creates an empty store
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{tenants: make(map[string]map[string]Invoice)}
}

// Create implements DocumentStore
func (s *MemoryDocumentStore) Create(ctx context.Context, inv Invoice) (Invoice, bool, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.tenants[inv.TenantID]
	if docs == nil {
		docs = make(map[string]Invoice)
		s.tenants[inv.TenantID] = docs
	}
	if inv.IdempotencyKey != "" {
		for _, existing := range docs {
			if existing.IdempotencyKey == inv.IdempotencyKey {
				return existing, false, nil
			}
		}
	}
	if _, exists := docs[inv.InvoiceID]; exists {
		return Invoice{}, false, ErrDuplicate
	}
	docs[inv.InvoiceID] = inv
	return inv, true, nil
}

// Get implements DocumentStore
func (s *MemoryDocumentStore) Get(ctx context.Context, tenantID, invoiceID string) (Invoice, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.tenants[tenantID][invoiceID]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return inv, nil
}

// FindByIdempotencyKey implements DocumentStore
func (s *MemoryDocumentStore) FindByIdempotencyKey(ctx context.Context, tenantID, key string) (Invoice, bool, error) {
	if err := ctx.Err(); err != nil {
		return Invoice{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, inv := range s.tenants[tenantID] {
		if key != "" && inv.IdempotencyKey == key {
			return inv, true, nil
		}
	}
	return Invoice{}, false, nil
}

// List implements DocumentStore
func (s *MemoryDocumentStore) List(ctx context.Context, tenantID string, limit int) ([]Invoice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Invoice, 0, len(s.tenants[tenantID]))
	for _, inv := range s.tenants[tenantID] {
		out = append(out, inv)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].InvoiceID < out[j].InvoiceID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update implements DocumentStore
func (s *MemoryDocumentStore) Update(ctx context.Context, inv Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.tenants[inv.TenantID]
	if _, ok := docs[inv.InvoiceID]; !ok {
		return ErrNotFound
	}
	docs[inv.InvoiceID] = inv
	return nil
}

// MemoryBlobStore is a BlobStore held in process memory.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryBlobStore creates an empty store
func NewMemoryBlobStore() *MemoryBlobStore {
	return &MemoryBlobStore{objects: make(map[string][]byte)}
}

// Put implements BlobStore
func (s *MemoryBlobStore) Put(ctx context.Context, name, _ string, r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.objects[name] = data
	s.mu.Unlock()
	return int64(len(data)), nil
}

// Open implements BlobStore
func (s *MemoryBlobStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.objects[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements BlobStore
func (s *MemoryBlobStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	delete(s.objects, name)
	s.mu.Unlock()
	return nil
}

// Names returns the stored object names under prefix, sorted.
func (s *MemoryBlobStore) Names(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

var (
	_ DocumentStore = (*MemoryDocumentStore)(nil)
	_ BlobStore     = (*MemoryBlobStore)(nil)
)
