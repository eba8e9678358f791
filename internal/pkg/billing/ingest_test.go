package billing

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/animora/animora/app/models"
	"github.com/animora/animora/app/repository"
	"github.com/animora/animora/internal/pkg/credits"
	"github.com/animora/animora/internal/pkg/database"
	"github.com/animora/animora/internal/pkg/subscriptions"
)

const testSecret = "whsec_test"

type fixture struct {
	db       *gorm.DB
	ingestor *Ingestor
	ledger   *credits.Service
	subs     *subscriptions.Service
	archive  *memArchiver
}

type memArchiver struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (m *memArchiver) Archive(_ context.Context, source, deliveryID string, _ time.Time, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, source+"/"+deliveryID)
	return m.err
}

func newFixture(t *testing.T, cfg *Config) *fixture {
	t.Helper()
	db, err := database.Open(&database.Config{
		Driver:       database.DriverSQLite,
		SQLitePath:   ":memory:",
		AutoMigrate:  true,
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	if cfg == nil {
		cfg = &Config{WebhookSecret: testSecret}
	}
	repos := repository.NewRepositories(db)
	f := &fixture{
		db:      db,
		ledger:  credits.NewService(repos.Credit, credits.DefaultSignupGrant),
		subs:    subscriptions.NewService(repos.Subscription, repos.Plan),
		archive: &memArchiver{},
	}
	f.ingestor = NewIngestor(cfg, Deps{
		Events:        repos.WebhookEvent,
		Payments:      repos.Payment,
		Ledger:        f.ledger,
		Subscriptions: f.subs,
		Packs:         credits.NewCatalog(repos.Pack),
		Archiver:      f.archive,
	})
	return f
}

func (f *fixture) deliver(body string) (*Result, error) {
	return f.ingestor.Handle(context.Background(), Delivery{
		Source:    models.WebhookSourceCreem,
		Body:      []byte(body),
		Signature: Sign([]byte(body), testSecret),
	})
}

func (f *fixture) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func requireIngestError(t *testing.T, err error, status int) *IngestError {
	t.Helper()
	var ie *IngestError
	require.True(t, errors.As(err, &ie), "expected *IngestError, got %v", err)
	assert.Equal(t, status, ie.Status)
	return ie
}

func TestIngestPaymentCompleted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.deliver(`{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":20}`)
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, KindPaymentCompleted, res.Kind)
	assert.NotZero(t, res.EventID)

	acct, err := f.ledger.GetBalance(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(20), acct.Balance)

	txs, err := f.ledger.ListTransactions(ctx, "u2", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.CreditTransactionPurchase, txs[0].Type)
	require.NotNil(t, txs[0].ReferenceID)
	assert.Equal(t, "pay_1", *txs[0].ReferenceID)

	var event models.WebhookEvent
	require.NoError(t, f.db.First(&event, res.EventID).Error)
	assert.True(t, event.Processed)
	assert.NotNil(t, event.ProcessedAt)
	assert.Equal(t, "payment.completed", event.EventType)
	assert.Equal(t, models.WebhookSourceCreem, event.Source)
	require.NotNil(t, event.UserID)
	assert.Equal(t, "u2", *event.UserID)
	assert.Equal(t, res.DeliveryID, event.DeliveryID)

	var payment models.PaymentRecord
	require.NoError(t, f.db.First(&payment).Error)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, int64(20), payment.CreditsPurchased)
	assert.JSONEq(t, `{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":20}`, payment.MetadataJSON)
	assert.JSONEq(t, payment.MetadataJSON, txs[0].MetadataJSON)

	assert.Len(t, f.archive.keys, 1)
}

func TestIngestPaymentCreditsResolvedFromPack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.db.Create(&models.CreditPack{
		ID: "tier-15-animations", Name: "Creator Pack", ProviderProductID: "prod_15", Price: 29, Credits: 15, IsActive: true,
	}).Error)

	_, err := f.deliver(`{"type":"payment.completed","customer_id":"u2","id":"pay_1","amount":29,"product_id":"prod_15"}`)
	require.NoError(t, err)
	acct, err := f.ledger.GetBalance(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(15), acct.Balance)

	// an explicit credit amount wins over the catalog
	_, err = f.deliver(`{"type":"payment.completed","customer_id":"u2","id":"pay_2","credits":4,"metadata":{"product_id":"prod_15"}}`)
	require.NoError(t, err)
	acct, err = f.ledger.GetBalance(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(19), acct.Balance)

	res, err := f.deliver(`{"type":"payment.completed","customer_id":"u2","id":"pay_3","product_id":"prod_unknown"}`)
	require.NoError(t, err)
	assert.True(t, res.Processed)
	acct, err = f.ledger.GetBalance(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(19), acct.Balance)

	var payment models.PaymentRecord
	require.NoError(t, f.db.Where("external_payment_id = ?", "pay_1").First(&payment).Error)
	assert.Equal(t, int64(15), payment.CreditsPurchased)
}

func TestIngestInvalidSignatureWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	body := `{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":20}`

	_, err := f.ingestor.Handle(context.Background(), Delivery{
		Source:    models.WebhookSourceCreem,
		Body:      []byte(body),
		Signature: Sign([]byte(body), "wrong"),
	})
	ie := requireIngestError(t, err, http.StatusUnauthorized)
	assert.ErrorIs(t, ie, ErrSignatureInvalid)

	assert.Zero(t, f.countRows(t, &models.WebhookEvent{}))
	assert.Zero(t, f.countRows(t, &models.CreditAccount{}))
	assert.Zero(t, f.countRows(t, &models.CreditTransaction{}))
	assert.Empty(t, f.archive.keys)
}

func TestIngestMissingSignaturePolicy(t *testing.T) {
	body := []byte(`{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":5}`)

	strict := newFixture(t, nil)
	_, err := strict.ingestor.Handle(context.Background(), Delivery{Body: body})
	requireIngestError(t, err, http.StatusUnauthorized)
	assert.Zero(t, strict.countRows(t, &models.WebhookEvent{}))

	lenient := newFixture(t, &Config{WebhookSecret: testSecret, AllowUnsigned: true})
	res, err := lenient.ingestor.Handle(context.Background(), Delivery{Body: body})
	require.NoError(t, err)
	assert.True(t, res.Processed)
}

func TestIngestSecretMissing(t *testing.T) {
	f := newFixture(t, &Config{})
	_, err := f.deliver(`{"type":"payment.completed"}`)
	ie := requireIngestError(t, err, http.StatusInternalServerError)
	assert.ErrorIs(t, ie, ErrWebhookSecretMissing)
	assert.Empty(t, ie.Details())
	assert.Zero(t, f.countRows(t, &models.WebhookEvent{}))
}

func TestIngestInvalidJSON(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.deliver(`{"type":`)
	ie := requireIngestError(t, err, http.StatusBadRequest)
	assert.ErrorIs(t, ie, ErrInvalidPayload)
	assert.Zero(t, f.countRows(t, &models.WebhookEvent{}))
}

func TestIngestSubscriptionCreated(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.deliver(`{"type":"subscription.created","customer_id":"u3","subscription":{"id":"sub_1","status":"active","current_period_start":1700000000,"current_period_end":1702592000,"credits_per_month":100}}`)
	require.NoError(t, err)

	sub, err := f.subs.GetCurrent(ctx, "u3")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.ExternalSubscriptionID)
	assert.Equal(t, "sub_1", *sub.ExternalSubscriptionID)
	require.NotNil(t, sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.Equal(t, int64(1700000000), sub.CurrentPeriodStart.Unix())
	assert.Equal(t, int64(1702592000), sub.CurrentPeriodEnd.Unix())
	assert.Equal(t, int64(100), sub.CreditsPerMonth)

	acct, err := f.ledger.GetBalance(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.Balance)

	ok, err := f.ledger.HasReference(ctx, "u3", "sub_1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIngestRedeliveryIsDeduplicated(t *testing.T) {
	f := newFixture(t, &Config{WebhookSecret: testSecret, Dedupe: true})
	ctx := context.Background()
	body := `{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":20}`

	first, err := f.deliver(body)
	require.NoError(t, err)
	second, err := f.deliver(body)
	require.NoError(t, err)
	assert.NotEqual(t, first.EventID, second.EventID)

	acct, err := f.ledger.GetBalance(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(20), acct.Balance)
	assert.Equal(t, int64(2), f.countRows(t, &models.WebhookEvent{}))
	assert.Equal(t, int64(1), f.countRows(t, &models.PaymentRecord{}))

	subBody := `{"type":"subscription.created","customer_id":"u3","subscription":{"id":"sub_1","credits_per_month":100}}`
	_, err = f.deliver(subBody)
	require.NoError(t, err)
	_, err = f.deliver(subBody)
	require.NoError(t, err)
	acct, err = f.ledger.GetBalance(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, int64(100), acct.Balance)
}

func TestIngestConcurrentRedeliveryWithoutLockCreditsOnce(t *testing.T) {
	f := newFixture(t, &Config{WebhookSecret: testSecret, Dedupe: true})
	body := `{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":20}`

	const n = 10
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.deliver(body)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	acct, err := f.ledger.GetBalance(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(20), acct.Balance)
	assert.Equal(t, int64(1), f.countRows(t, &models.CreditTransaction{}))
	assert.Equal(t, int64(1), f.countRows(t, &models.PaymentRecord{}))
	assert.Equal(t, int64(n), f.countRows(t, &models.WebhookEvent{}))
}

func TestIngestRedeliveryWithoutDedupeCreditsTwice(t *testing.T) {
	f := newFixture(t, &Config{WebhookSecret: testSecret, Dedupe: false})
	body := `{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":20}`

	_, err := f.deliver(body)
	require.NoError(t, err)
	_, err = f.deliver(body)
	require.NoError(t, err)

	acct, err := f.ledger.GetBalance(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(40), acct.Balance)
}

func TestIngestUpdateAndCancelUnknownSubscriptionFail(t *testing.T) {
	f := newFixture(t, nil)

	for _, body := range []string{
		`{"type":"subscription.updated","subscription":{"id":"sub_missing","status":"past_due"}}`,
		`{"type":"subscription.deleted","subscription":{"id":"sub_missing"}}`,
	} {
		_, err := f.deliver(body)
		ie := requireIngestError(t, err, http.StatusInternalServerError)
		assert.ErrorIs(t, ie, subscriptions.ErrSubscriptionNotFound)
		assert.NotZero(t, ie.EventID)
		assert.Contains(t, ie.Details(), "sub_missing")

		var event models.WebhookEvent
		require.NoError(t, f.db.First(&event, ie.EventID).Error)
		assert.False(t, event.Processed)
		assert.Nil(t, event.ProcessedAt)
		assert.Equal(t, 1, event.RetryCount)
		assert.NotEmpty(t, event.ErrorMessage)
	}
	assert.Zero(t, f.countRows(t, &models.Subscription{}))
}

func TestIngestUpdateThenCancel(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.deliver(`{"type":"subscription.created","customer_id":"u3","subscription":{"id":"sub_1","credits_per_month":0}}`)
	require.NoError(t, err)

	_, err = f.deliver(`{"type":"customer.subscription.updated","subscription":{"id":"sub_1","status":"past_due","cancel_at_period_end":true,"current_period_end":1702592000}}`)
	require.NoError(t, err)

	history, err := f.subs.GetHistory(ctx, "u3")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.SubscriptionStatusPastDue, history[0].Status)
	assert.True(t, history[0].CancelAtPeriodEnd)
	require.NotNil(t, history[0].CurrentPeriodEnd)
	assert.Equal(t, int64(1702592000), history[0].CurrentPeriodEnd.Unix())

	_, err = f.deliver(`{"type":"subscription.canceled","subscription":{"id":"sub_1"}}`)
	require.NoError(t, err)

	history, err = f.subs.GetHistory(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCanceled, history[0].Status)
	assert.NotNil(t, history[0].CanceledAt)

	_, err = f.ledger.GetBalance(ctx, "u3")
	assert.ErrorIs(t, err, credits.ErrAccountNotFound)
}

func TestIngestPaymentFailed(t *testing.T) {
	f := newFixture(t, nil)

	body := `{"type":"invoice.payment_failed","customer":"u5","id":"pay_9","amount":12.5}`
	res, err := f.deliver(body)
	require.NoError(t, err)
	assert.Equal(t, KindPaymentFailed, res.Kind)

	var payment models.PaymentRecord
	require.NoError(t, f.db.First(&payment).Error)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "pay_9", payment.ExternalPaymentID)
	assert.JSONEq(t, body, payment.MetadataJSON)
	assert.Zero(t, f.countRows(t, &models.CreditAccount{}))
}

func TestIngestMissingRequiredFields(t *testing.T) {
	f := newFixture(t, nil)

	for _, body := range []string{
		`{"type":"payment.completed","id":"pay_1","credits":20}`,
		`{"type":"payment.completed","customer_id":"u1","credits":20}`,
		`{"type":"payment.failed","customer_id":"u1"}`,
		`{"type":"subscription.created","subscription":{"id":"sub_1"}}`,
		`{"type":"subscription.updated","subscription":{"status":"active"}}`,
	} {
		_, err := f.deliver(body)
		ie := requireIngestError(t, err, http.StatusInternalServerError)
		assert.ErrorIs(t, ie, ErrMissingField, body)
	}
	assert.Zero(t, f.countRows(t, &models.CreditTransaction{}))
	assert.Equal(t, int64(5), f.countRows(t, &models.WebhookEvent{}))
}

func TestIngestUnknownTypeAcknowledged(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.deliver(`{"type":"checkout.session.completed","customer_id":"u1","credits":99}`)
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, KindUnknown, res.Kind)

	var event models.WebhookEvent
	require.NoError(t, f.db.First(&event, res.EventID).Error)
	assert.True(t, event.Processed)
	assert.Zero(t, f.countRows(t, &models.CreditAccount{}))
}

func TestIngestArchiveFailureIsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.archive.err = errors.New("bucket unavailable")

	res, err := f.deliver(`{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":1}`)
	require.NoError(t, err)
	assert.True(t, res.Processed)
}

type failingEvents struct {
	repository.WebhookEventRepository
}

func (failingEvents) Create(context.Context, *models.WebhookEvent) error {
	return errors.New("db down")
}

func TestIngestLogFailureAborts(t *testing.T) {
	f := newFixture(t, nil)
	f.ingestor.deps.Events = failingEvents{}

	_, err := f.deliver(`{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":20}`)
	ie := requireIngestError(t, err, http.StatusInternalServerError)
	assert.Equal(t, "Failed to log webhook event", ie.Message)
	assert.Empty(t, ie.Details())
	assert.Zero(t, f.countRows(t, &models.CreditAccount{}))
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return nil, false, nil
}

func TestIngestConcurrentDeliveryInProgress(t *testing.T) {
	f := newFixture(t, &Config{WebhookSecret: testSecret, Dedupe: true})
	f.ingestor.deps.Locker = busyLocker{}

	_, err := f.deliver(`{"type":"payment.completed","customer_id":"u2","id":"pay_1","credits":20}`)
	ie := requireIngestError(t, err, http.StatusInternalServerError)
	assert.ErrorIs(t, ie, ErrDeliveryInProgress)
	assert.Zero(t, f.countRows(t, &models.CreditTransaction{}))
}

func TestPendingAndUserEvents(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.deliver(`{"type":"subscription.deleted","customer_id":"u7","subscription":{"id":"nope"}}`)
	require.Error(t, err)
	_, err = f.deliver(`{"type":"payment.completed","customer_id":"u7","id":"pay_2","credits":1}`)
	require.NoError(t, err)

	pending, err := f.ingestor.PendingEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "subscription.deleted", pending[0].EventType)

	events, err := f.ingestor.UserEvents(ctx, "u7", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "payment.completed", events[0].EventType)

	_, err = f.ingestor.UserEvents(ctx, "", 10)
	assert.ErrorIs(t, err, ErrMissingField)
}
