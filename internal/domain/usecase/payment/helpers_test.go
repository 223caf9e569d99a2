package payment

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
	"github.com/lekhanhduc/qrpay/internal/domain/port/core"
)

// fakeClock is a TimeProvider whose current instant is moved by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Until(t time.Time) time.Duration {
	return t.Sub(c.Now())
}

func (c *fakeClock) WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithCancel(ctx)
}

func (c *fakeClock) NewTicker(d time.Duration) core.Ticker {
	return newManualTicker()
}

// manualTicker fires only when the test says so.
type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time, 1)}
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               {}

// nullLogger discards everything.
type nullLogger struct{}

func (nullLogger) Debug(string, map[string]any) {}
func (nullLogger) Info(string, map[string]any)  {}
func (nullLogger) Warn(string, map[string]any)  {}
func (nullLogger) Error(string, map[string]any) {}
func (nullLogger) Flush() error                 { return nil }

// memTransactionStore is an in-memory TransactionStore.
type memTransactionStore struct {
	mu      sync.Mutex
	intents map[string]*entity.PendingTransaction
	refs    map[string]entity.ProcessedRefEntry

	createErr error
	listErr   error
}

func newMemTransactionStore() *memTransactionStore {
	return &memTransactionStore{
		intents: make(map[string]*entity.PendingTransaction),
		refs:    make(map[string]entity.ProcessedRefEntry),
	}
}

func (s *memTransactionStore) CreatePending(_ context.Context, txn *entity.PendingTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
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
	if s.listErr != nil {
		return nil, s.listErr
	}
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

func (s *memTransactionStore) GetRef(_ context.Context, refNo string) (*entity.ProcessedRefEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.refs[refNo]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *memTransactionStore) RecordRef(_ context.Context, refNo, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refs[refNo]; ok {
		return nil
	}
	s.refs[refNo] = entity.ProcessedRefEntry{RefNo: refNo, TransactionID: transactionID}
	return nil
}

func (s *memTransactionStore) SweepExpiredRefs(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	for refNo, entry := range s.refs {
		if !entry.ExpiresAt.IsZero() && entry.IsExpired(now) {
			delete(s.refs, refNo)
			swept++
		}
	}
	return swept, nil
}

func (s *memTransactionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.intents)
}

// memBalanceStore is an in-memory BalanceStore.
type memBalanceStore struct {
	mu       sync.Mutex
	balances map[string]*entity.UserBalance
	clock    *fakeClock

	applyErr error
}

func newMemBalanceStore(clock *fakeClock) *memBalanceStore {
	return &memBalanceStore{
		balances: make(map[string]*entity.UserBalance),
		clock:    clock,
	}
}

func (s *memBalanceStore) Get(_ context.Context, userID string) (*entity.UserBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.balances[userID]; ok {
		copied := *b
		return &copied, nil
	}
	return entity.NewUserBalance(userID), nil
}

func (s *memBalanceStore) ApplyChange(_ context.Context, userID string, amount int64, description string) (*entity.UserBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return nil, s.applyErr
	}
	b, ok := s.balances[userID]
	if !ok {
		b = entity.NewUserBalance(userID)
		s.balances[userID] = b
	}
	if err := b.Apply(amount, description, s.clock.Now()); err != nil {
		return nil, err
	}
	copied := *b
	return &copied, nil
}

// memInventoryStore is an in-memory InventoryStore.
type memInventoryStore struct {
	mu       sync.Mutex
	products map[string]*entity.Product
	clock    *fakeClock

	reserveErr error
}

func newMemInventoryStore(clock *fakeClock) *memInventoryStore {
	return &memInventoryStore{
		products: make(map[string]*entity.Product),
		clock:    clock,
	}
}

func (s *memInventoryStore) put(p *entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
}

func (s *memInventoryStore) ListProducts(_ context.Context) ([]*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*entity.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, nil
}

func (s *memInventoryStore) GetProduct(_ context.Context, id string) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, errs.ErrProductNotFound
	}
	copied := *p
	copied.Items = append([]entity.InventoryItem(nil), p.Items...)
	return &copied, nil
}

func (s *memInventoryStore) CreateProduct(_ context.Context, name string, price int64) (*entity.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := ""
	for i := 1; ; i++ {
		id = strconv.Itoa(i)
		if _, ok := s.products[id]; !ok {
			break
		}
	}
	p := &entity.Product{ID: id, Name: name, Price: price, CreatedAt: s.clock.Now()}
	s.products[id] = p
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
	if price > 0 {
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
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	p, ok := s.products[productID]
	if !ok {
		return nil, errs.ErrProductNotFound
	}
	return p.Reserve(quantity, userID, s.clock.Now())
}

// sentMessage is one notifier delivery captured by recordingNotifier.
type sentMessage struct {
	ChatID string
	Text   string
}

// recordingNotifier captures sends and can be made to fail.
type recordingNotifier struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

func (n *recordingNotifier) Send(_ context.Context, chatID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return n.sendErr
	}
	n.sent = append(n.sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (n *recordingNotifier) messages() []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentMessage(nil), n.sent...)
}

// stubSource serves a fixed statement, or an error.
type stubSource struct {
	mu    sync.Mutex
	lines []entity.StatementLine
	err   error
}

func (s *stubSource) Fetch(_ context.Context) ([]entity.StatementLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return []entity.StatementLine{}, s.err
	}
	return s.lines, nil
}

func (s *stubSource) set(lines []entity.StatementLine, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines, s.err = lines, err
}

// countingRecorder tallies reconciliation counters.
type countingRecorder struct {
	mu           sync.Mutex
	cycles       int
	skipped      int
	fetchFailed  int
	expired      int
	matched      map[string]int
	deduplicated int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{matched: make(map[string]int)}
}

func (r *countingRecorder) CycleCompleted(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
}

func (r *countingRecorder) CycleSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped++
}

func (r *countingRecorder) FetchFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchFailed++
}

func (r *countingRecorder) IntentExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired++
}

func (r *countingRecorder) PaymentMatched(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matched[kind]++
}

func (r *countingRecorder) PaymentDeduplicated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deduplicated++
}
