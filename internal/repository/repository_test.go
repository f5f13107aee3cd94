package repository

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/db"
	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
)

// testDB подключается к базе из TEST_DATABASE_URL и накатывает миграции.
// Каждый тест работает со своими UUID, поэтому таблицы не чистим.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL не задан")
	}

	ctx := context.Background()
	conn, err := db.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.RunMigrations(ctx, conn, "../../migrations"))
	return conn
}

type gigFixture struct {
	gig  *models.UrgentGig
	hold *models.EscrowHold
}

func createGig(t *testing.T, conn *sqlx.DB) gigFixture {
	t.Helper()
	requester := uuid.New()
	methodID := "pm_card_visa"
	gig := &models.UrgentGig{
		ID:               uuid.New(),
		RequesterID:      requester,
		SkillRequired:    "saxophone",
		Genres:           pq.StringArray{"jazz"},
		DateNeeded:       time.Now().Add(3 * time.Hour),
		DurationHours:    decimal.NewFromInt(2),
		PaymentAmount:    decimal.NewFromInt(100),
		PaymentCurrency:  "USD",
		LocationLat:      55.75,
		LocationLng:      37.61,
		LocationRadiusKm: 25,
		Status:           valueobject.GigStatusSearching,
		ExpiresAt:        time.Now().Add(time.Hour),
	}
	hold := &models.EscrowHold{
		ID:              uuid.New(),
		PayerID:         requester,
		Amount:          gig.PaymentAmount,
		Currency:        gig.PaymentCurrency,
		PaymentMethodID: &methodID,
		Status:          valueobject.HoldStatusPending,
	}
	require.NoError(t, NewGigRepository(conn).CreateWithHold(context.Background(), gig, hold))
	return gigFixture{gig: gig, hold: hold}
}

func notifyProviders(t *testing.T, conn *sqlx.DB, gigID uuid.UUID, n int) []models.GigResponse {
	t.Helper()
	providers := make([]uuid.UUID, n)
	for i := range providers {
		providers[i] = uuid.New()
	}
	responses, err := NewResponseRepository(conn).CreatePending(context.Background(), gigID, providers, time.Now())
	require.NoError(t, err)
	require.Len(t, responses, n)
	return responses
}

func newProject(fx gigFixture, resp models.GigResponse) *models.OpportunityProject {
	return &models.OpportunityProject{
		ID:                  uuid.New(),
		OpportunityID:       fx.gig.ID,
		ResponseID:          resp.ID,
		PosterUserID:        fx.gig.RequesterID,
		CreatorUserID:       resp.ProviderID,
		Title:               fx.gig.SkillRequired,
		AgreedAmount:        decimal.NewFromInt(100),
		PlatformFeeAmount:   decimal.NewFromInt(12),
		CreatorPayoutAmount: decimal.NewFromInt(88),
		FeeRate:             decimal.RequireFromString("0.12"),
		FeePolicyVersion:    "test",
		Currency:            "USD",
		Status:              valueobject.ProjectStatusAwaitingAcceptance,
	}
}

func TestGigRepository_CreateWithHold(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	fx := createGig(t, conn)

	got, err := NewGigRepository(conn).GetByID(ctx, fx.gig.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.GigStatusSearching, got.Status)
	assert.True(t, got.PaymentAmount.Equal(decimal.NewFromInt(100)))

	hold, err := NewEscrowRepository(conn).GetHoldByGig(ctx, fx.gig.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.HoldStatusPending, hold.Status)

	history, err := NewGigRepository(conn).History(ctx, fx.gig.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].FromStatus)
	assert.Equal(t, valueobject.GigStatusSearching, history[0].ToStatus)
}

func TestGigRepository_GetByID_NotFound(t *testing.T) {
	conn := testDB(t)

	_, err := NewGigRepository(conn).GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrGigNotFound)
}

func TestResponseRepository_CreatePendingSkipsDuplicates(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	fx := createGig(t, conn)
	responses := notifyProviders(t, conn, fx.gig.ID, 2)

	again, err := NewResponseRepository(conn).CreatePending(ctx, fx.gig.ID,
		[]uuid.UUID{responses[0].ProviderID, uuid.New()}, time.Now())
	require.NoError(t, err)
	assert.Len(t, again, 1)

	all, err := NewResponseRepository(conn).ListByGig(ctx, fx.gig.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestResponseRepository_ConcurrentAcceptHasOneWinner(t *testing.T) {
	conn := testDB(t)
	fx := createGig(t, conn)
	responses := notifyProviders(t, conn, fx.gig.ID, 8)
	repo := NewResponseRepository(conn)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		taken   int
	)
	for _, resp := range responses {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := repo.Accept(context.Background(), id, nil, time.Now())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, ErrAcceptTaken):
				taken++
			default:
				t.Errorf("неожиданная ошибка: %v", err)
			}
		}(resp.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, len(responses)-1, taken)
}

func TestResponseRepository_AcceptTwiceIsStale(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	fx := createGig(t, conn)
	responses := notifyProviders(t, conn, fx.gig.ID, 1)
	repo := NewResponseRepository(conn)

	accepted, err := repo.Accept(ctx, responses[0].ID, nil, time.Now())
	require.NoError(t, err)
	assert.Equal(t, valueobject.ResponseStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.ResponseTimeSeconds)

	_, err = repo.Accept(ctx, responses[0].ID, nil, time.Now())
	assert.ErrorIs(t, err, ErrStaleState)

	_, err = repo.Decline(ctx, responses[0].ID, nil, time.Now())
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestProjectRepository_SelectOnce(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	fx := createGig(t, conn)
	responses := notifyProviders(t, conn, fx.gig.ID, 3)

	_, err := NewEscrowRepository(conn).MarkAuthorized(ctx, fx.hold.ID, "pi_test")
	require.NoError(t, err)
	accepted, err := NewResponseRepository(conn).Accept(ctx, responses[0].ID, nil, time.Now())
	require.NoError(t, err)

	repo := NewProjectRepository(conn)
	var wg sync.WaitGroup
	results := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repo.Select(context.Background(), newProject(fx, *accepted))
		}(i)
	}
	wg.Wait()

	var created int
	for _, err := range results {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, ErrProjectExists)
	}
	assert.Equal(t, 1, created)

	gig, err := NewGigRepository(conn).GetByID(ctx, fx.gig.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.GigStatusAwaitingAcceptance, gig.Status)
	require.NotNil(t, gig.SelectedProviderID)
	assert.Equal(t, accepted.ProviderID, *gig.SelectedProviderID)

	hold, err := NewEscrowRepository(conn).GetHoldByGig(ctx, fx.gig.ID)
	require.NoError(t, err)
	require.NotNil(t, hold.ProjectID)

	all, err := NewResponseRepository(conn).ListByGig(ctx, fx.gig.ID)
	require.NoError(t, err)
	for _, r := range all {
		if r.ID == accepted.ID {
			continue
		}
		assert.Equal(t, valueobject.ResponseStatusInvalidated, r.Status)
	}
}

func TestProjectRepository_SelectRequiresAuthorizedHold(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	fx := createGig(t, conn)
	responses := notifyProviders(t, conn, fx.gig.ID, 1)
	accepted, err := NewResponseRepository(conn).Accept(ctx, responses[0].ID, nil, time.Now())
	require.NoError(t, err)

	err = NewProjectRepository(conn).Select(ctx, newProject(fx, *accepted))
	assert.ErrorIs(t, err, ErrStaleState)

	// транзакция откатилась целиком
	gig, err := NewGigRepository(conn).GetByID(ctx, fx.gig.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.GigStatusSearching, gig.Status)
	_, err = NewProjectRepository(conn).GetByGigID(ctx, fx.gig.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestGigRepository_ExpireVoidsHold(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	fx := createGig(t, conn)
	notifyProviders(t, conn, fx.gig.ID, 2)
	_, err := NewEscrowRepository(conn).MarkAuthorized(ctx, fx.hold.ID, "pi_expire")
	require.NoError(t, err)

	repo := NewGigRepository(conn)
	hold, err := repo.Expire(ctx, fx.gig.ID, "no provider selected")
	require.NoError(t, err)
	require.NotNil(t, hold)
	assert.Equal(t, valueobject.HoldStatusVoiding, hold.Status)
	assert.Equal(t, "pi_expire", hold.IntentID())

	_, err = repo.Expire(ctx, fx.gig.ID, "again")
	assert.ErrorIs(t, err, ErrStaleState)

	responses, err := NewResponseRepository(conn).ListByGig(ctx, fx.gig.ID)
	require.NoError(t, err)
	for _, r := range responses {
		assert.Equal(t, valueobject.ResponseStatusInvalidated, r.Status)
	}

	history, err := repo.History(ctx, fx.gig.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, valueobject.GigStatusExpired, history[1].ToStatus)
	assert.Equal(t, "no provider selected", history[1].Reason)
}

func TestGigRepository_ExpireDuringCaptureIsStale(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	fx := createGig(t, conn)
	escrow := NewEscrowRepository(conn)
	_, err := escrow.MarkAuthorized(ctx, fx.hold.ID, "pi_capture")
	require.NoError(t, err)
	_, err = escrow.MarkHold(ctx, fx.hold.ID,
		[]valueobject.HoldStatus{valueobject.HoldStatusAuthorized}, valueobject.HoldStatusCapturing, HoldUpdate{})
	require.NoError(t, err)

	_, err = NewGigRepository(conn).Expire(ctx, fx.gig.ID, "deadline")
	assert.ErrorIs(t, err, ErrStaleState)
}

func TestEscrowRepository_SettleAndWithdraw(t *testing.T) {
	conn := testDB(t)
	ctx := context.Background()
	fx := createGig(t, conn)
	responses := notifyProviders(t, conn, fx.gig.ID, 1)
	escrow := NewEscrowRepository(conn)

	_, err := escrow.MarkAuthorized(ctx, fx.hold.ID, "pi_settle")
	require.NoError(t, err)
	accepted, err := NewResponseRepository(conn).Accept(ctx, responses[0].ID, nil, time.Now())
	require.NoError(t, err)
	project := newProject(fx, *accepted)
	require.NoError(t, NewProjectRepository(conn).Select(ctx, project))

	_, err = escrow.MarkHold(ctx, fx.hold.ID,
		[]valueobject.HoldStatus{valueobject.HoldStatusAuthorized}, valueobject.HoldStatusCapturing, HoldUpdate{})
	require.NoError(t, err)
	require.NoError(t, escrow.FinalizeCapture(ctx, fx.hold.ID, project.ID, &accepted.ProviderID))

	settlement := Settlement{
		ProjectID:   project.ID,
		ProjectFrom: valueobject.ProjectStatusActive,
		GigID:       fx.gig.ID,
		GigFrom:     valueobject.GigStatusActive,
		HoldID:      fx.hold.ID,
		HoldFrom:    valueobject.HoldStatusCaptured,
		HoldTo:      valueobject.HoldStatusReleased,
		Credit: &WalletCredit{
			UserID:          accepted.ProviderID,
			Currency:        "USD",
			Amount:          project.CreatorPayoutAmount,
			TransactionType: models.TransactionTypeGigPayment,
			ReferenceType:   models.ReferenceTypeProject,
			ReferenceID:     project.ID,
		},
		ActorID: &fx.gig.RequesterID,
		Reason:  "completed",
	}
	require.NoError(t, escrow.Settle(ctx, settlement))

	// повторный расчёт упирается в статус холда и не удваивает выплату
	assert.ErrorIs(t, escrow.Settle(ctx, settlement), ErrStaleState)

	credited, err := escrow.HasTransaction(ctx, models.ReferenceTypeProject, project.ID, models.TransactionTypeGigPayment)
	require.NoError(t, err)
	assert.True(t, credited)

	wallets, err := escrow.GetWallets(ctx, accepted.ProviderID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.True(t, wallets[0].Balance.Equal(decimal.NewFromInt(88)))

	_, err = escrow.Withdraw(ctx, accepted.ProviderID, "USD", decimal.NewFromInt(100), nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = escrow.Withdraw(ctx, accepted.ProviderID, "EUR", decimal.NewFromInt(1), nil)
	assert.ErrorIs(t, err, ErrWalletNotFound)

	txn, err := escrow.Withdraw(ctx, accepted.ProviderID, "USD", decimal.NewFromInt(50), nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionTypeWithdrawal, txn.TransactionType)

	wallets, err = escrow.GetWallets(ctx, accepted.ProviderID)
	require.NoError(t, err)
	assert.True(t, wallets[0].Balance.Equal(decimal.NewFromInt(38)))

	discrepancies, err := escrow.FindDiscrepancies(ctx)
	require.NoError(t, err)
	for _, d := range discrepancies {
		assert.NotEqual(t, wallets[0].ID, d.WalletID)
	}

	gig, err := NewGigRepository(conn).GetByID(ctx, fx.gig.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.GigStatusCompleted, gig.Status)
}

func TestNotificationRepository_FilterByGigAndMarkRead(t *testing.T) {
	conn := testDB(t)
	repo := NewNotificationRepository(conn)
	ctx := context.Background()
	user := uuid.New()
	gigA, gigB := uuid.New(), uuid.New()

	for _, n := range []*models.Notification{
		{UserID: user, Event: "gig.offer", GigID: &gigA, Payload: []byte(`{"event":"gig.offer"}`)},
		{UserID: user, Event: "gig.expired", GigID: &gigA, Payload: []byte(`{"event":"gig.expired"}`)},
		{UserID: user, Event: "gig.offer", GigID: &gigB, Payload: []byte(`{"event":"gig.offer"}`)},
		{UserID: user, Event: "payout.sent", Payload: []byte(`{}`)},
	} {
		require.NoError(t, repo.Create(ctx, n))
		assert.NotEqual(t, uuid.Nil, n.ID)
		assert.False(t, n.IsRead)
	}

	byGig, err := repo.List(ctx, user, NotificationFilter{GigID: &gigA}, 10, 0)
	require.NoError(t, err)
	require.Len(t, byGig, 2)
	assert.Equal(t, "gig.expired", byGig[0].Event)

	unread, err := repo.CountUnread(ctx, user, NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, unread)

	assert.ErrorIs(t, repo.MarkAsRead(ctx, uuid.New(), byGig[0].ID), ErrNotificationNotFound)
	require.NoError(t, repo.MarkAsRead(ctx, user, byGig[0].ID))

	marked, err := repo.MarkAllAsRead(ctx, user, NotificationFilter{GigID: &gigA})
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	unread, err = repo.CountUnread(ctx, user, NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	marked, err = repo.MarkAllAsRead(ctx, user, NotificationFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)
}
