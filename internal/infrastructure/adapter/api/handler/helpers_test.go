package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	"github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nullLogger struct{}

func (nullLogger) Debug(string, map[string]any) {}
func (nullLogger) Info(string, map[string]any)  {}
func (nullLogger) Warn(string, map[string]any)  {}
func (nullLogger) Error(string, map[string]any) {}
func (nullLogger) Flush() error                 { return nil }

type stubClock struct {
	now time.Time
}

func (c stubClock) Now() time.Time                  { return c.now }
func (c stubClock) Until(t time.Time) time.Duration { return t.Sub(c.now) }
func (c stubClock) WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
func (c stubClock) NewTicker(d time.Duration) core.Ticker { return nil }

// memTransactionStore is a map-backed TransactionStore for handler tests.
type memTransactionStore struct {
	mu      sync.Mutex
	intents map[string]*entity.PendingTransaction
}

func newMemTransactionStore() *memTransactionStore {
	return &memTransactionStore{intents: make(map[string]*entity.PendingTransaction)}
}

func (s *memTransactionStore) CreatePending(_ context.Context, txn *entity.PendingTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.intents {
		if existing.UserID == txn.UserID {
			return errs.ErrDuplicateActiveTransaction
		}
	}
	s.intents[txn.ID] = txn
	return nil
}

func (s *memTransactionStore) GetByUser(_ context.Context, userID string) (*entity.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.intents {
		if txn.UserID == userID {
			return txn, nil
		}
	}
	return nil, nil
}

func (s *memTransactionStore) GetByID(_ context.Context, id string) (*entity.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intents[id], nil
}

func (s *memTransactionStore) ListAll(_ context.Context) ([]*entity.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.PendingTransaction, 0, len(s.intents))
	for _, txn := range s.intents {
		out = append(out, txn)
	}
	return out, nil
}

func (s *memTransactionStore) Remove(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[id]; !ok {
		return false, nil
	}
	delete(s.intents, id)
	return true, nil
}

func (s *memTransactionStore) GetRef(context.Context, string) (*entity.ProcessedRefEntry, error) {
	return nil, nil
}
func (s *memTransactionStore) RecordRef(context.Context, string, string) error { return nil }
func (s *memTransactionStore) SweepExpiredRefs(context.Context, time.Time) (int, error) {
	return 0, nil
}

// memBalanceStore is a map-backed BalanceStore for handler tests.
type memBalanceStore struct {
	mu       sync.Mutex
	balances map[string]*entity.UserBalance
	now      time.Time
}

func newMemBalanceStore(now time.Time) *memBalanceStore {
	return &memBalanceStore{balances: make(map[string]*entity.UserBalance), now: now}
}

func (s *memBalanceStore) Get(_ context.Context, userID string) (*entity.UserBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[userID]; ok {
		return b, nil
	}
	return &entity.UserBalance{UserID: userID}, nil
}

func (s *memBalanceStore) ApplyChange(_ context.Context, userID string, amount int64, description string) (*entity.UserBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[userID]
	if !ok {
		b = &entity.UserBalance{UserID: userID}
		s.balances[userID] = b
	}
	if err := b.Apply(amount, description, s.now); err != nil {
		return nil, err
	}
	return b, nil
}

// memInventoryStore is a map-backed InventoryStore for handler tests.
type memInventoryStore struct {
	mu       sync.Mutex
	products map[string]*entity.Product
	nextID   int
}

func newMemInventoryStore() *memInventoryStore {
	return &memInventoryStore{products: make(map[string]*entity.Product), nextID: 1}
}

func (s *memInventoryStore) ListProducts(_ context.Context) ([]*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memInventoryStore) GetProduct(_ context.Context, id string) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, errs.ErrProductNotFound
	}
	return p, nil
}

func (s *memInventoryStore) CreateProduct(_ context.Context, name string, price int64) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &entity.Product{ID: strconv.Itoa(s.nextID), Name: name, Price: price}
	s.nextID++
	s.products[p.ID] = p
	return p, nil
}

func (s *memInventoryStore) UpdateProduct(_ context.Context, id string, name string, price int64) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, errs.ErrProductNotFound
	}
	if name != "" {
		p.Name = name
	}
	if price >= 0 {
		p.Price = price
	}
	return p, nil
}

func (s *memInventoryStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return errs.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *memInventoryStore) AddItems(_ context.Context, productID string, items []entity.InventoryItem) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return 0, errs.ErrProductNotFound
	}
	p.Items = append(p.Items, items...)
	return len(items), nil
}

func (s *memInventoryStore) CountAvailable(_ context.Context, productID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return 0, errs.ErrProductNotFound
	}
	return p.AvailableCount(), nil
}

func (s *memInventoryStore) ReserveItems(_ context.Context, productID string, quantity int, userID string) ([]entity.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, errs.ErrProductNotFound
	}
	return p.Reserve(quantity, userID, time.Now())
}

// doJSON issues a request with an optional JSON body against the router and
// returns the recorder.
func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
