package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekhanhduc/qrpay/internal/domain/entity"
	errs "github.com/lekhanhduc/qrpay/internal/domain/error"
)

type reconcilerFixture struct {
	clock        *fakeClock
	transactions *memTransactionStore
	balances     *memBalanceStore
	inventory    *memInventoryStore
	notifier     *recordingNotifier
	source       *stubSource
	recorder     *countingRecorder
	reconciler   *Reconciler
}

func newReconcilerFixture() *reconcilerFixture {
	clock := newFakeClock(time.Date(2023, 5, 10, 12, 0, 0, 0, time.UTC))
	transactions := newMemTransactionStore()
	balances := newMemBalanceStore(clock)
	inventory := newMemInventoryStore(clock)
	notifier := &recordingNotifier{}
	source := &stubSource{}
	recorder := newCountingRecorder()

	fulfiller := NewFulfiller(balances, inventory, notifier, nullLogger{}, "")
	reconciler := NewReconciler(transactions, source, fulfiller, notifier,
		clock, nullLogger{}, recorder, 30*time.Second)

	return &reconcilerFixture{
		clock:        clock,
		transactions: transactions,
		balances:     balances,
		inventory:    inventory,
		notifier:     notifier,
		source:       source,
		recorder:     recorder,
		reconciler:   reconciler,
	}
}

func (f *reconcilerFixture) addTopUp(t *testing.T, userID string, amount int64, code string) *entity.PendingTransaction {
	t.Helper()
	intent, err := entity.NewPendingTopUp("tx-"+userID+"-"+code, userID, "chat-"+userID, amount, code, f.clock)
	require.NoError(t, err)
	require.NoError(t, f.transactions.CreatePending(context.Background(), intent))
	return intent
}

func (f *reconcilerFixture) addPurchase(t *testing.T, userID string, product *entity.Product, quantity int, code string) *entity.PendingTransaction {
	t.Helper()
	intent, err := entity.NewPendingPurchase("tx-"+userID+"-"+code, userID, "chat-"+userID, product, quantity, code, f.clock)
	require.NoError(t, err)
	require.NoError(t, f.transactions.CreatePending(context.Background(), intent))
	return intent
}

func TestReconciler_TopUpRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	f.addTopUp(t, "user-1", 50_000, "AB12CD34")
	f.source.set([]entity.StatementLine{
		{RefNo: "FT001", CreditAmount: 50_000, Description: "CT DEN AB12CD34"},
	}, nil)

	f.reconciler.RunCycle(ctx)

	// Credited exactly once and the intent reached its terminal state
	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), balance.Balance)
	assert.Equal(t, 0, f.transactions.count())
	assert.Equal(t, 1, f.recorder.matched[string(entity.KindTopUp)])
	assert.Equal(t, 1, f.recorder.cycles)

	messages := f.notifier.messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Text, "Top-up successful")
}

func TestReconciler_RefNoIdempotence(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	f.addTopUp(t, "user-1", 50_000, "AB12CD34")

	// The same feed row stays visible across many cycles
	f.source.set([]entity.StatementLine{
		{RefNo: "FT001", CreditAmount: 50_000, Description: "CT DEN AB12CD34"},
	}, nil)

	for i := 0; i < 5; i++ {
		f.reconciler.RunCycle(ctx)
	}

	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), balance.Balance)
}

func TestReconciler_DedupClearsIntentWithoutReapplying(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	f.addTopUp(t, "user-1", 50_000, "AB12CD34")

	// The feed row was already consumed by a different, since-settled intent
	require.NoError(t, f.transactions.RecordRef(ctx, "FT001", "tx-settled-earlier"))
	f.source.set([]entity.StatementLine{
		{RefNo: "FT001", CreditAmount: 50_000, Description: "CT DEN AB12CD34"},
	}, nil)

	f.reconciler.RunCycle(ctx)

	// No credit happens, the stuck intent is cleared
	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Balance)
	assert.Equal(t, 0, f.transactions.count())
	assert.Equal(t, 1, f.recorder.deduplicated)
}

func TestReconciler_FulfillmentFailureRetriesNextCycle(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	intent := f.addTopUp(t, "user-1", 50_000, "AB12CD34")
	f.source.set([]entity.StatementLine{
		{RefNo: "FT001", CreditAmount: 50_000, Description: "CT DEN AB12CD34"},
	}, nil)

	// The balance store is down for the first cycle only
	f.balances.applyErr = errs.ErrStorage
	f.reconciler.RunCycle(ctx)

	// The refNo is attributed to this intent, nothing was credited, and the
	// intent survives for another attempt
	ref, err := f.transactions.GetRef(ctx, "FT001")
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Equal(t, intent.ID, ref.TransactionID)

	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Balance)
	assert.Equal(t, 1, f.transactions.count())

	// The store recovers: the payment reaches its terminal outcome, credited
	// exactly once and never counted as a duplicate
	f.balances.applyErr = nil
	f.reconciler.RunCycle(ctx)

	balance, err = f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), balance.Balance)
	assert.Equal(t, 0, f.transactions.count())
	assert.Equal(t, 0, f.recorder.deduplicated)
	assert.Equal(t, 1, f.recorder.matched[string(entity.KindTopUp)])
}

func TestReconciler_WrongAmountNeverMatches(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	f.addTopUp(t, "user-1", 50_000, "AB12CD34")
	f.source.set([]entity.StatementLine{
		{RefNo: "FT001", CreditAmount: 49_000, Description: "CT DEN AB12CD34"},
	}, nil)

	f.reconciler.RunCycle(ctx)

	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Balance)
	// The intent waits for a future cycle
	assert.Equal(t, 1, f.transactions.count())
}

func TestReconciler_ExpiryFiresDespiteFetchFailure(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	f.addTopUp(t, "user-1", 50_000, "AB12CD34")
	f.source.set(nil, errors.New("all endpoints down"))

	f.clock.Advance(entity.PendingTTL + time.Second)
	f.reconciler.RunCycle(ctx)

	assert.Equal(t, 0, f.transactions.count())
	assert.Equal(t, 1, f.recorder.expired)
	assert.Equal(t, 1, f.recorder.fetchFailed)

	messages := f.notifier.messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Text, "expired")
}

func TestReconciler_PurchaseOutOfStockRefundsExactly(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()

	// Intent priced for 3 units was created when 3 were available
	pricedProduct := &entity.Product{ID: "1", Name: "Premium Account", Price: 50_000,
		Items: make([]entity.InventoryItem, 3)}
	f.addPurchase(t, "user-1", pricedProduct, 3, "ZZ99XX11")

	// By fulfillment time only 1 unsold item remains
	f.inventory.put(&entity.Product{ID: "1", Name: "Premium Account", Price: 50_000,
		Items: []entity.InventoryItem{{Username: "last", Password: "pw"}}})

	f.source.set([]entity.StatementLine{
		{RefNo: "FT002", CreditAmount: 150_000, Description: "CT DEN ZZ99XX11"},
	}, nil)

	f.reconciler.RunCycle(ctx)

	// Exactly the paid amount refunded, nothing sold, intent terminal
	balance, err := f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150_000), balance.Balance)

	available, err := f.inventory.CountAvailable(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 1, available)
	assert.Equal(t, 0, f.transactions.count())

	// Further cycles with the same feed row change nothing
	f.reconciler.RunCycle(ctx)
	balance, err = f.balances.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(150_000), balance.Balance)
}

func TestReconciler_PurchaseDeliversAndRemoves(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()

	product := &entity.Product{ID: "1", Name: "Premium Account", Price: 50_000,
		Items: []entity.InventoryItem{
			{Username: "alpha", Password: "pw1"},
			{Username: "beta", Password: "pw2"},
		}}
	f.inventory.put(product)
	f.addPurchase(t, "user-1", product, 2, "ZZ99XX11")

	f.source.set([]entity.StatementLine{
		{RefNo: "FT003", CreditAmount: 100_000, Description: "CT DEN ZZ99XX11"},
	}, nil)

	f.reconciler.RunCycle(ctx)

	available, err := f.inventory.CountAvailable(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 0, available)
	assert.Equal(t, 0, f.transactions.count())
	assert.Equal(t, 1, f.recorder.matched[string(entity.KindPurchase)])

	messages := f.notifier.messages()
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0].Text, "alpha")
}

func TestReconciler_IndependentIntentsOneCycle(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	f.addTopUp(t, "user-1", 50_000, "AAAA1111")
	f.addTopUp(t, "user-2", 20_000, "BBBB2222")
	f.addTopUp(t, "user-3", 30_000, "CCCC3333")

	// Only two of the three payments have cleared
	f.source.set([]entity.StatementLine{
		{RefNo: "FT010", CreditAmount: 50_000, Description: "AAAA1111"},
		{RefNo: "FT011", CreditAmount: 30_000, Description: "CCCC3333"},
	}, nil)

	f.reconciler.RunCycle(ctx)

	b1, _ := f.balances.Get(ctx, "user-1")
	b2, _ := f.balances.Get(ctx, "user-2")
	b3, _ := f.balances.Get(ctx, "user-3")
	assert.Equal(t, int64(50_000), b1.Balance)
	assert.Equal(t, int64(0), b2.Balance)
	assert.Equal(t, int64(30_000), b3.Balance)
	assert.Equal(t, 1, f.transactions.count())
}

// slowSource blocks Fetch until released, to hold a cycle open.
type slowSource struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowSource) Fetch(ctx context.Context) ([]entity.StatementLine, error) {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return []entity.StatementLine{}, nil
}

func TestReconciler_SkipsOverlappingCycle(t *testing.T) {
	ctx := context.Background()
	f := newReconcilerFixture()
	source := &slowSource{entered: make(chan struct{}), release: make(chan struct{})}
	fulfiller := NewFulfiller(f.balances, f.inventory, f.notifier, nullLogger{}, "")
	reconciler := NewReconciler(f.transactions, source, fulfiller, f.notifier,
		f.clock, nullLogger{}, f.recorder, 30*time.Second)

	done := make(chan struct{})
	go func() {
		reconciler.RunCycle(ctx)
		close(done)
	}()

	<-source.entered
	reconciler.RunCycle(ctx) // previous cycle still fetching
	close(source.release)
	<-done

	assert.Equal(t, 1, f.recorder.skipped)
	assert.Equal(t, 1, f.recorder.cycles)
}

func TestReconciler_StartStop(t *testing.T) {
	f := newReconcilerFixture()
	f.source.set([]entity.StatementLine{}, nil)

	f.reconciler.Start(context.Background())
	f.reconciler.Stop()
}
