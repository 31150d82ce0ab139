package settings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loticredit/loticredit/internal/cache"
	"github.com/loticredit/loticredit/internal/lending"
	"github.com/loticredit/loticredit/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*Service, *MemoryStore) {
	store := NewMemoryStore()
	return NewService(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var verrs validation.ValidationErrors
	require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
	var fields []string
	for _, e := range verrs {
		fields = append(fields, e.Field)
	}
	return fields
}

func TestService_ConsumerDefaults(t *testing.T) {
	svc, _ := newTestService()

	cs, err := svc.Consumer(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", cs.ConsumerID)
	assert.True(t, cs.Notifications.CreditUpdates)
	assert.False(t, cs.Notifications.Promotions)
}

func TestService_SaveConsumer(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	saved, err := svc.SaveConsumer(ctx, &ConsumerSettings{
		ConsumerID: "alice",
		FirstName:  "  Alice ",
		LastName:   "Moyo",
		Email:      "alice@example.com",
		Phone:      "+266 5000 1234",
		Notifications: ConsumerNotifications{
			Promotions: true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", saved.FirstName)
	assert.False(t, saved.UpdatedAt.IsZero())

	got, err := svc.Consumer(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
	assert.True(t, got.Notifications.Promotions)
}

func TestService_SaveConsumer_Invalid(t *testing.T) {
	svc, store := newTestService()

	_, err := svc.SaveConsumer(context.Background(), &ConsumerSettings{
		ConsumerID: "alice",
		Email:      "not-an-email",
		Phone:      "call me",
	})
	assert.ElementsMatch(t, []string{"email", "phone"}, fieldsOf(t, err))

	_, err = store.GetConsumer(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_LenderDefaults(t *testing.T) {
	svc, _ := newTestService()

	ls, err := svc.Lender(context.Background(), "bank-a")
	require.NoError(t, err)
	assert.Equal(t, DefaultMinCreditScore, ls.MinCreditScore)
	assert.Equal(t, DefaultMaxDebtToIncome, ls.MaxDebtToIncome)
	assert.False(t, ls.AutoApprove)
}

func TestService_SaveLender_FillsDefaults(t *testing.T) {
	svc, _ := newTestService()

	saved, err := svc.SaveLender(context.Background(), &LenderSettings{
		LenderID:        "bank-a",
		InstitutionName: "Acme Lending",
		ContactEmail:    "lending@acme.com",
		AutoApprove:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, DefaultMinCreditScore, saved.MinCreditScore)
	assert.Equal(t, DefaultMaxDebtToIncome, saved.MaxDebtToIncome)
}

func TestService_SaveLender_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		in     LenderSettings
		fields []string
	}{
		{"score too low", LenderSettings{LenderID: "b", MinCreditScore: 200}, []string{"minCreditScore"}},
		{"score too high", LenderSettings{LenderID: "b", MinCreditScore: 900}, []string{"minCreditScore"}},
		{"dti negative", LenderSettings{LenderID: "b", MaxDebtToIncome: -5}, []string{"maxDebtToIncome"}},
		{"dti over 100", LenderSettings{LenderID: "b", MaxDebtToIncome: 101}, []string{"maxDebtToIncome"}},
		{"bad email", LenderSettings{LenderID: "b", ContactEmail: "acme"}, []string{"contactEmail"}},
		{"missing id", LenderSettings{}, []string{"lenderId"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService()
			in := tt.in
			_, err := svc.SaveLender(context.Background(), &in)
			assert.Equal(t, tt.fields, fieldsOf(t, err))
		})
	}
}

func TestService_Policy(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p, err := svc.Policy(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, lending.DefaultPolicy(), p)

	_, err = svc.SaveLender(ctx, &LenderSettings{LenderID: "bank-a", MinCreditScore: 700, MaxDebtToIncome: 36, AutoApprove: true})
	require.NoError(t, err)

	p, err = svc.Policy(ctx, "bank-a")
	require.NoError(t, err)
	assert.Equal(t, lending.Policy{MinCreditScore: 700, MaxDebtToIncome: 36, AutoApprove: true}, p)
}

func TestService_Policy_CacheInvalidatedOnSave(t *testing.T) {
	svc, _ := newTestService()
	c := cache.NewMemoryCache()
	svc.WithCache(c, time.Minute)
	ctx := context.Background()

	_, err := svc.SaveLender(ctx, &LenderSettings{LenderID: "bank-a", MinCreditScore: 600})
	require.NoError(t, err)

	p, err := svc.Policy(ctx, "bank-a")
	require.NoError(t, err)
	assert.Equal(t, 600, p.MinCreditScore)
	_, err = c.Get(ctx, policyKey("bank-a"))
	require.NoError(t, err, "policy should be cached after the first read")

	_, err = svc.SaveLender(ctx, &LenderSettings{LenderID: "bank-a", MinCreditScore: 720})
	require.NoError(t, err)

	p, err = svc.Policy(ctx, "bank-a")
	require.NoError(t, err)
	assert.Equal(t, 720, p.MinCreditScore)
}

func TestLendingIntegration_SettingsDrivePolicy(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.SaveLender(ctx, &LenderSettings{LenderID: "bank-a", MinCreditScore: 750, AutoApprove: true})
	require.NoError(t, err)

	policy, err := svc.Policy(ctx, "bank-a")
	require.NoError(t, err)

	assert.Equal(t, lending.StatusRejected, lending.Decide(policy, 739, 20).Status)
	assert.Equal(t, lending.StatusApproved, lending.Decide(policy, 760, 20).Status)
}
