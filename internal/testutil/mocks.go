package testutil

import (
	"context"
	"sync"
	"time"

	"prism/internal/models"
	"prism/internal/service"
	"prism/internal/storage"
)

// MockDerivationService is a func-field DerivationService
type MockDerivationService struct {
	DeriveFunc         func(ctx context.Context, customer *models.Customer, path string, spec *models.TransformSpec) (*service.DerivationResult, error)
	InfoFunc           func(ctx context.Context, customer *models.Customer, path string) (*models.ImageInfo, error)
	PassthroughFunc    func(ctx context.Context, customer *models.Customer, path string) (*service.DerivationResult, error)
	OriginalExistsFunc func(ctx context.Context, customer *models.Customer, path string) (bool, error)
	StatsFunc          func() service.DerivationStats
}

func (m *MockDerivationService) Derive(ctx context.Context, customer *models.Customer, path string, spec *models.TransformSpec) (*service.DerivationResult, error) {
	if m.DeriveFunc != nil {
		return m.DeriveFunc(ctx, customer, path, spec)
	}
	return &service.DerivationResult{Kind: service.ResultRedirect}, nil
}

func (m *MockDerivationService) Info(ctx context.Context, customer *models.Customer, path string) (*models.ImageInfo, error) {
	if m.InfoFunc != nil {
		return m.InfoFunc(ctx, customer, path)
	}
	return &models.ImageInfo{}, nil
}

func (m *MockDerivationService) Passthrough(ctx context.Context, customer *models.Customer, path string) (*service.DerivationResult, error) {
	if m.PassthroughFunc != nil {
		return m.PassthroughFunc(ctx, customer, path)
	}
	return &service.DerivationResult{Kind: service.ResultRedirect}, nil
}

func (m *MockDerivationService) OriginalExists(ctx context.Context, customer *models.Customer, path string) (bool, error) {
	if m.OriginalExistsFunc != nil {
		return m.OriginalExistsFunc(ctx, customer, path)
	}
	return true, nil
}

func (m *MockDerivationService) Stats() service.DerivationStats {
	if m.StatsFunc != nil {
		return m.StatsFunc()
	}
	return service.DerivationStats{}
}

// MockCustomerStore is a func-field CustomerStore. Without funcs it returns
// TestCustomer under the requested key.
type MockCustomerStore struct {
	GetCustomerFunc        func(ctx context.Context, key string) (*models.Customer, error)
	GetDefaultCustomerFunc func(ctx context.Context) (*models.Customer, error)
}

func (m *MockCustomerStore) GetCustomer(ctx context.Context, key string) (*models.Customer, error) {
	if m.GetCustomerFunc != nil {
		return m.GetCustomerFunc(ctx, key)
	}
	customer := TestCustomer()
	customer.Key = key
	return customer, nil
}

func (m *MockCustomerStore) GetDefaultCustomer(ctx context.Context) (*models.Customer, error) {
	if m.GetDefaultCustomerFunc != nil {
		return m.GetDefaultCustomerFunc(ctx)
	}
	return TestCustomer(), nil
}

// MockHealthService is a func-field HealthService
type MockHealthService struct {
	CheckHealthFunc func(ctx context.Context) (*service.HealthStatus, error)
	GetMetricsFunc  func(ctx context.Context) (map[string]interface{}, error)
}

func (m *MockHealthService) CheckHealth(ctx context.Context) (*service.HealthStatus, error) {
	if m.CheckHealthFunc != nil {
		return m.CheckHealthFunc(ctx)
	}
	return &service.HealthStatus{Services: map[string]string{"application": "healthy"}}, nil
}

func (m *MockHealthService) GetMetrics(ctx context.Context) (map[string]interface{}, error) {
	if m.GetMetricsFunc != nil {
		return m.GetMetricsFunc(ctx)
	}
	return map[string]interface{}{}, nil
}

// RecordingReporter keeps every captured error
type RecordingReporter struct {
	mu        sync.Mutex
	Errors    []error
	Customers []string
	Panics    []interface{}
}

func (r *RecordingReporter) Capture(ctx context.Context, err error, customer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, err)
	r.Customers = append(r.Customers, customer)
}

func (r *RecordingReporter) CapturePanic(ctx context.Context, recovered interface{}, customer string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Panics = append(r.Panics, recovered)
	r.Customers = append(r.Customers, customer)
}

func (r *RecordingReporter) Flush(timeout time.Duration) bool { return true }

// FakeObjectStore is an in-memory object store addressed by public URL.
// It counts puts so tests can tell a fresh derivation from a cached one.
type FakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	puts    int
}

// NewFakeObjectStore creates an empty store
func NewFakeObjectStore() *FakeObjectStore {
	return &FakeObjectStore{objects: map[string][]byte{}, types: map[string]string{}}
}

// AddOriginal stores data at key in bucket
func (f *FakeObjectStore) AddOriginal(bucket models.Bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[storage.URLFor(bucket, key)] = data
}

func (f *FakeObjectStore) Exists(ctx context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[url]
	return ok, nil
}

func (f *FakeObjectStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[url]
	if !ok {
		return nil, models.NotFoundError{Resource: "original", ID: url}
	}
	if len(data) == 0 {
		return nil, models.EmptyOriginalError{Path: url}
	}
	return data, nil
}

func (f *FakeObjectStore) Put(ctx context.Context, bucket models.Bucket, key string, data []byte, contentType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	url := storage.URLFor(bucket, key)
	f.objects[url] = data
	f.types[url] = contentType
	f.puts++
	return nil
}

// Puts returns how many objects were uploaded
func (f *FakeObjectStore) Puts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

// ContentType returns the type an object was uploaded with
func (f *FakeObjectStore) ContentType(url string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.types[url]
}
