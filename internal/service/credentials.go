package service

import (
	"context"
	"sync"
	"time"

	"prism/internal/models"
	"prism/internal/storage"
	"prism/pkg/logger"

	"go.uber.org/zap"
)

const (
	credentialsTTL        = 5 * time.Minute
	credentialsRetryDelay = time.Minute
)

// MultiCustomerStore serves customers from credentials.json, reloading it
// every five minutes. A failed reload keeps the last good document.
type MultiCustomerStore struct {
	loader     storage.CredentialsLoader
	defaultKey string
	now        func() time.Time

	mu      sync.RWMutex
	creds   map[string]models.CustomerCredentials
	expires time.Time
}

// NewMultiCustomerStore creates a store backed by loader
func NewMultiCustomerStore(loader storage.CredentialsLoader, defaultKey string) *MultiCustomerStore {
	return &MultiCustomerStore{
		loader:     loader,
		defaultKey: defaultKey,
		now:        time.Now,
	}
}

// GetCustomer returns the customer registered under key
func (s *MultiCustomerStore) GetCustomer(ctx context.Context, key string) (*models.Customer, error) {
	creds, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}

	entry, ok := creds[key]
	if !ok {
		return nil, models.NotFoundError{Resource: "customer", ID: key}
	}
	return entry.ToCustomer(key), nil
}

// GetDefaultCustomer returns the customer configured by DEFAULT_CUSTOMER
func (s *MultiCustomerStore) GetDefaultCustomer(ctx context.Context) (*models.Customer, error) {
	return s.GetCustomer(ctx, s.defaultKey)
}

// credentials returns the cached document, reloading it once expired.
// Two callers may reload at the same time; the later write wins.
func (s *MultiCustomerStore) credentials(ctx context.Context) (map[string]models.CustomerCredentials, error) {
	now := s.now()

	s.mu.RLock()
	creds, expires := s.creds, s.expires
	s.mu.RUnlock()

	if creds != nil && now.Before(expires) {
		return creds, nil
	}

	fresh, err := s.loader.LoadCredentials(ctx)
	if err != nil {
		if creds == nil {
			return nil, models.UpstreamError{Operation: "load credentials", Reason: err.Error()}
		}

		logger.WarnWithContext(ctx, "Failed to reload credentials, serving stale copy",
			zap.Error(err),
			zap.Time("stale_since", expires))

		s.mu.Lock()
		s.expires = now.Add(credentialsRetryDelay)
		s.mu.Unlock()
		return creds, nil
	}

	s.mu.Lock()
	s.creds = fresh
	s.expires = now.Add(credentialsTTL)
	s.mu.Unlock()

	logger.DebugWithContext(ctx, "Credentials reloaded", zap.Int("customers", len(fresh)))
	return fresh, nil
}

// SingleCustomerStore serves one customer regardless of the key asked for
type SingleCustomerStore struct {
	customer *models.Customer
}

// NewSingleCustomerStore creates a store from fixed credentials
func NewSingleCustomerStore(key string, creds models.CustomerCredentials) *SingleCustomerStore {
	return &SingleCustomerStore{customer: creds.ToCustomer(key)}
}

// GetCustomer returns the configured customer
func (s *SingleCustomerStore) GetCustomer(ctx context.Context, key string) (*models.Customer, error) {
	return s.customer, nil
}

// GetDefaultCustomer returns the configured customer
func (s *SingleCustomerStore) GetDefaultCustomer(ctx context.Context) (*models.Customer, error) {
	return s.customer, nil
}
