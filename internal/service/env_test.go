package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/config"
	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/payment"
	"github.com/ignatzorin/gigmarket-backend/internal/storage"
)

var london = struct{ lat, lng float64 }{51.5074, -0.1278}

type sentPush struct {
	userID uuid.UUID
	event  string
	data   map[string]string
}

type recordingPush struct {
	mu   sync.Mutex
	sent []sentPush
	fail bool
}

func (p *recordingPush) Send(_ context.Context, userID uuid.UUID, _, _ string, data map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("push offline")
	}
	p.sent = append(p.sent, sentPush{userID: userID, event: data["event"], data: data})
	return nil
}

func (p *recordingPush) events(userID uuid.UUID) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, s := range p.sent {
		if s.userID == userID {
			out = append(out, s.event)
		}
	}
	return out
}

type testEnv struct {
	db       *memDB
	gateway  *payment.SandboxGateway
	push     *recordingPush
	notifier *Notifier

	escrow   *EscrowService
	matcher  *MatcherService
	arbiter  *ArbiterService
	gigs     *GigService
	sweeper  *SweeperService
	disputes *DisputeService
	ratings  *RatingService
	avail    *AvailabilityService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newMemDB()
	gateway := payment.NewSandboxGateway()
	push := &recordingPush{}
	notifier := NewNotifier(push, time.Second)

	evidence, err := storage.NewEvidenceStorage(t.TempDir(), 1)
	require.NoError(t, err)

	gigStore := memGigs{db}
	responses := memResponses{db}
	projects := memProjects{db}

	escrow := NewEscrowService(memEscrow{db}, projects, gigStore, gateway, notifier, time.Second)
	matcher := NewMatcherService(memProviders{db}, responses, notifier, 50)
	env := &testEnv{
		db:       db,
		gateway:  gateway,
		push:     push,
		notifier: notifier,
		escrow:   escrow,
		matcher:  matcher,
		arbiter:  NewArbiterService(gigStore, responses, projects, escrow, config.DefaultFeePolicy(), notifier),
		gigs:     NewGigService(gigStore, responses, projects, matcher, escrow, 3, 6*time.Hour),
		sweeper:  NewSweeperService(gigStore, escrow, 5*time.Minute, notifier),
		disputes: NewDisputeService(memDisputes{db}, projects, evidence, escrow, notifier),
		ratings:  NewRatingService(memRatings{db}, projects, memProfiles{db}, notifier),
		avail:    NewAvailabilityService(memAvailability{db}),
	}
	t.Cleanup(notifier.Wait)
	return env
}

// addProvider регистрирует доступного исполнителя со смещением offsetKm к северу от Лондона.
func (e *testEnv) addProvider(skill string, offsetKm float64, rating float64) uuid.UUID {
	id := uuid.New()
	lat := london.lat + offsetKm/111.2
	lng := london.lng
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	e.db.providers = append(e.db.providers, models.ProviderCandidate{
		UserAvailability: models.UserAvailability{
			UserID:                 id,
			AvailableForUrgentGigs: true,
			CurrentLat:             &lat,
			CurrentLng:             &lng,
			MaxRadiusKm:            50,
			MaxNotificationsPerDay: 10,
		},
		Skills:    []string{skill},
		RatingAvg: rating,
	})
	e.db.profiles[id] = models.Profile{UserID: id, DisplayName: "provider"}
	return id
}

func gigInput(amount, currency string) CreateGigInput {
	return CreateGigInput{
		SkillRequired:    "saxophone",
		DateNeeded:       time.Now().Add(2 * time.Hour),
		DurationHours:    decimal.NewFromInt(3),
		PaymentAmount:    decimal.RequireFromString(amount),
		PaymentCurrency:  currency,
		PaymentMethodID:  "pm_card_visa",
		LocationLat:      london.lat,
		LocationLng:      london.lng,
		LocationAddress:  "Jazz Cafe, Camden",
		LocationRadiusKm: 20,
		Description:      "Нужен саксофонист на вечер",
	}
}

func (e *testEnv) createGig(t *testing.T, requester uuid.UUID) *models.UrgentGig {
	t.Helper()
	res, err := e.gigs.Create(context.Background(), requester, gigInput("100.00", "GBP"))
	require.NoError(t, err)
	return res.Gig
}

func (e *testEnv) responseOf(t *testing.T, gigID, providerID uuid.UUID) *models.GigResponse {
	t.Helper()
	resp, err := memResponses{e.db}.GetByGigAndProvider(context.Background(), gigID, providerID)
	require.NoError(t, err)
	return resp
}

// selectedProject проводит гиг до выбранного исполнителя (awaiting_acceptance).
func (e *testEnv) selectedProject(t *testing.T) (requester, provider uuid.UUID, gig *models.UrgentGig, project *models.OpportunityProject) {
	t.Helper()
	ctx := context.Background()
	provider = e.addProvider("saxophone", 2, 4.5)
	requester = uuid.New()
	gig = e.createGig(t, requester)

	resp, err := e.arbiter.Respond(ctx, gig.ID, provider, valueobject.ResponseActionAccept, nil)
	require.NoError(t, err)
	project, err = e.arbiter.SelectProvider(ctx, gig.ID, requester, resp.ID)
	require.NoError(t, err)
	return requester, provider, gig, project
}

// activeProject проводит гиг до active с захваченными деньгами.
func (e *testEnv) activeProject(t *testing.T) (requester, provider uuid.UUID, gig *models.UrgentGig, project *models.OpportunityProject) {
	t.Helper()
	requester, provider, gig, project = e.selectedProject(t)
	project, err := e.escrow.CaptureAndHoldInEscrow(context.Background(), project.ID, provider)
	require.NoError(t, err)
	return requester, provider, gig, project
}

func (e *testEnv) gig(id uuid.UUID) models.UrgentGig {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.gigs[id]
}

func (e *testEnv) project(id uuid.UUID) models.OpportunityProject {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	return e.db.projects[id]
}

func (e *testEnv) hold(gigID uuid.UUID) models.EscrowHold {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	h, _ := e.db.holdByGigLocked(gigID)
	return h
}

func (e *testEnv) balance(userID uuid.UUID, currency string) decimal.Decimal {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	for _, w := range e.db.wallets {
		if w.UserID == userID && w.Currency == currency {
			return w.Balance
		}
	}
	return decimal.Zero
}

func (e *testEnv) transactions(userID uuid.UUID) []models.WalletTransaction {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	var out []models.WalletTransaction
	for _, tx := range e.db.txns {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
