package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
)

// memDB хранилище в памяти с семантикой условных UPDATE и уникальных индексов.
// Один мьютекс играет роль транзакции.
type memDB struct {
	mu        sync.Mutex
	gigs      map[uuid.UUID]models.UrgentGig
	history   []models.GigStatusChange
	responses map[uuid.UUID]models.GigResponse
	projects  map[uuid.UUID]models.OpportunityProject
	holds     map[uuid.UUID]models.EscrowHold
	disputes  map[uuid.UUID]models.Dispute
	ratings   []models.GigRating
	wallets   map[uuid.UUID]models.Wallet
	txns      []models.WalletTransaction
	providers []models.ProviderCandidate
	avail     map[uuid.UUID]models.UserAvailability
	profiles  map[uuid.UUID]models.Profile
}

func newMemDB() *memDB {
	return &memDB{
		gigs:      map[uuid.UUID]models.UrgentGig{},
		responses: map[uuid.UUID]models.GigResponse{},
		projects:  map[uuid.UUID]models.OpportunityProject{},
		holds:     map[uuid.UUID]models.EscrowHold{},
		disputes:  map[uuid.UUID]models.Dispute{},
		wallets:   map[uuid.UUID]models.Wallet{},
		avail:     map[uuid.UUID]models.UserAvailability{},
		profiles:  map[uuid.UUID]models.Profile{},
	}
}

func (db *memDB) holdByGigLocked(gigID uuid.UUID) (models.EscrowHold, bool) {
	for _, h := range db.holds {
		if h.GigID == gigID {
			return h, true
		}
	}
	return models.EscrowHold{}, false
}

func (db *memDB) projectByGigLocked(gigID uuid.UUID) (models.OpportunityProject, bool) {
	for _, p := range db.projects {
		if p.OpportunityID == gigID {
			return p, true
		}
	}
	return models.OpportunityProject{}, false
}

func (db *memDB) transitionGigLocked(gigID uuid.UUID, from, to valueobject.GigStatus, actor *uuid.UUID, reason string) error {
	if err := valueobject.CheckGigTransition(from, to); err != nil {
		return err
	}
	gig, ok := db.gigs[gigID]
	if !ok || gig.Status != from {
		return repository.ErrStaleState
	}
	gig.Status = to
	db.gigs[gigID] = gig
	db.history = append(db.history, models.GigStatusChange{
		ID: uuid.New(), GigID: gigID, FromStatus: &from, ToStatus: to, ActorID: actor, Reason: reason, CreatedAt: time.Now(),
	})
	return nil
}

func (db *memDB) markHoldLocked(holdID uuid.UUID, from []valueobject.HoldStatus, to valueobject.HoldStatus, upd repository.HoldUpdate) (models.EscrowHold, error) {
	hold, ok := db.holds[holdID]
	if !ok {
		return models.EscrowHold{}, repository.ErrStaleState
	}
	allowed := false
	for _, s := range from {
		if hold.Status == s {
			allowed = true
		}
	}
	if !allowed {
		return models.EscrowHold{}, repository.ErrStaleState
	}
	now := time.Now()
	hold.Status = to
	if upd.PaymentIntentID != nil {
		hold.PaymentIntentID = upd.PaymentIntentID
	}
	if upd.RefundAmount != nil {
		hold.RefundAmount = upd.RefundAmount
	}
	if upd.FailureReason != nil {
		hold.FailureReason = upd.FailureReason
	}
	switch to {
	case valueobject.HoldStatusAuthorized:
		hold.AuthorizedAt = &now
	case valueobject.HoldStatusCaptured:
		hold.CapturedAt = &now
	}
	if to.IsSettled() {
		hold.SettledAt = &now
	}
	hold.UpdatedAt = now
	db.holds[holdID] = hold
	return hold, nil
}

// snapshot сохраняет состояние для отката "транзакции".
type memSnapshot struct {
	gigs     map[uuid.UUID]models.UrgentGig
	history  int
	projects map[uuid.UUID]models.OpportunityProject
	holds    map[uuid.UUID]models.EscrowHold
	disputes map[uuid.UUID]models.Dispute
	wallets  map[uuid.UUID]models.Wallet
	resps    map[uuid.UUID]models.GigResponse
	txns     int
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (db *memDB) snapshotLocked() memSnapshot {
	return memSnapshot{
		gigs: copyMap(db.gigs), history: len(db.history), projects: copyMap(db.projects),
		holds: copyMap(db.holds), disputes: copyMap(db.disputes), wallets: copyMap(db.wallets),
		resps: copyMap(db.responses), txns: len(db.txns),
	}
}

func (db *memDB) restoreLocked(s memSnapshot) {
	db.gigs, db.projects, db.holds, db.disputes, db.wallets, db.responses = s.gigs, s.projects, s.holds, s.disputes, s.wallets, s.resps
	db.history = db.history[:s.history]
	db.txns = db.txns[:s.txns]
}

// tx выполняет fn атомарно: при ошибке состояние откатывается.
func (db *memDB) tx(fn func() error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	snap := db.snapshotLocked()
	if err := fn(); err != nil {
		db.restoreLocked(snap)
		return err
	}
	return nil
}

// ---- gigs ----

type memGigs struct{ db *memDB }

func (r memGigs) CreateWithHold(_ context.Context, gig *models.UrgentGig, hold *models.EscrowHold) error {
	return r.db.tx(func() error {
		now := time.Now()
		gig.CreatedAt, gig.UpdatedAt = now, now
		hold.CreatedAt, hold.UpdatedAt = now, now
		r.db.gigs[gig.ID] = *gig
		r.db.holds[hold.ID] = *hold
		r.db.history = append(r.db.history, models.GigStatusChange{ID: uuid.New(), GigID: gig.ID, ToStatus: gig.Status, ActorID: &gig.RequesterID, Reason: "created", CreatedAt: now})
		return nil
	})
}

func (r memGigs) GetByID(_ context.Context, id uuid.UUID) (*models.UrgentGig, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	gig, ok := r.db.gigs[id]
	if !ok {
		return nil, repository.ErrGigNotFound
	}
	return &gig, nil
}

func (r memGigs) ListExpirable(_ context.Context, now time.Time, limit int) ([]models.UrgentGig, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.UrgentGig
	for _, g := range r.db.gigs {
		if (g.Status == valueobject.GigStatusSearching || g.Status == valueobject.GigStatusAwaitingAcceptance) && g.ExpiresAt.Before(now) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memGigs) Expire(_ context.Context, gigID uuid.UUID, reason string) (*models.EscrowHold, error) {
	var voiding *models.EscrowHold
	err := r.db.tx(func() error {
		hold, hasHold := r.db.holdByGigLocked(gigID)
		if hasHold && hold.Status == valueobject.HoldStatusCapturing {
			return repository.ErrStaleState
		}
		gig, ok := r.db.gigs[gigID]
		if !ok {
			return repository.ErrGigNotFound
		}
		if !gig.Status.CanTransitionTo(valueobject.GigStatusExpired) {
			return repository.ErrStaleState
		}
		if err := r.db.transitionGigLocked(gigID, gig.Status, valueobject.GigStatusExpired, nil, reason); err != nil {
			return err
		}
		gig = r.db.gigs[gigID]
		gig.SelectedProviderID = nil
		r.db.gigs[gigID] = gig

		if p, ok := r.db.projectByGigLocked(gigID); ok && p.Status == valueobject.ProjectStatusAwaitingAcceptance {
			p.Status = valueobject.ProjectStatusExpired
			r.db.projects[p.ID] = p
		}
		for id, resp := range r.db.responses {
			if resp.GigID == gigID && resp.Status == valueobject.ResponseStatusPending {
				resp.Status = valueobject.ResponseStatusInvalidated
				r.db.responses[id] = resp
			}
		}
		if hasHold {
			h, err := r.db.markHoldLocked(hold.ID, []valueobject.HoldStatus{valueobject.HoldStatusPending, valueobject.HoldStatusAuthorized},
				valueobject.HoldStatusVoiding, repository.HoldUpdate{})
			if err == nil {
				voiding = &h
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return voiding, nil
}

func (r memGigs) History(_ context.Context, gigID uuid.UUID) ([]models.GigStatusChange, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.GigStatusChange
	for _, h := range r.db.history {
		if h.GigID == gigID {
			out = append(out, h)
		}
	}
	return out, nil
}

// ---- responses ----

type memResponses struct{ db *memDB }

func (r memResponses) GetByID(_ context.Context, id uuid.UUID) (*models.GigResponse, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	resp, ok := r.db.responses[id]
	if !ok {
		return nil, repository.ErrResponseNotFound
	}
	return &resp, nil
}

func (r memResponses) GetByGigAndProvider(_ context.Context, gigID, providerID uuid.UUID) (*models.GigResponse, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, resp := range r.db.responses {
		if resp.GigID == gigID && resp.ProviderID == providerID {
			return &resp, nil
		}
	}
	return nil, repository.ErrResponseNotFound
}

func (r memResponses) ListByGig(_ context.Context, gigID uuid.UUID) ([]models.GigResponse, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.GigResponse
	for _, resp := range r.db.responses {
		if resp.GigID == gigID {
			out = append(out, resp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID.String() < out[j].ProviderID.String() })
	return out, nil
}

func (r memResponses) CreatePending(_ context.Context, gigID uuid.UUID, providerIDs []uuid.UUID, notifiedAt time.Time) ([]models.GigResponse, error) {
	var created []models.GigResponse
	err := r.db.tx(func() error {
		for _, pid := range providerIDs {
			exists := false
			for _, resp := range r.db.responses {
				if resp.GigID == gigID && resp.ProviderID == pid {
					exists = true
				}
			}
			if exists {
				continue
			}
			resp := models.GigResponse{ID: uuid.New(), GigID: gigID, ProviderID: pid, Status: valueobject.ResponseStatusPending, NotifiedAt: notifiedAt}
			r.db.responses[resp.ID] = resp
			created = append(created, resp)
		}
		return nil
	})
	return created, err
}

func (r memResponses) Decline(_ context.Context, responseID uuid.UUID, message *string, respondedAt time.Time) (*models.GigResponse, error) {
	var out models.GigResponse
	err := r.db.tx(func() error {
		resp, ok := r.db.responses[responseID]
		if !ok || resp.Status != valueobject.ResponseStatusPending {
			return repository.ErrStaleState
		}
		resp.Status = valueobject.ResponseStatusDeclined
		resp.Message = message
		resp.RespondedAt = &respondedAt
		r.db.responses[responseID] = resp
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memResponses) Accept(_ context.Context, responseID uuid.UUID, message *string, respondedAt time.Time) (*models.GigResponse, error) {
	var out models.GigResponse
	err := r.db.tx(func() error {
		resp, ok := r.db.responses[responseID]
		if !ok || resp.Status != valueobject.ResponseStatusPending {
			return repository.ErrStaleState
		}
		if gig := r.db.gigs[resp.GigID]; gig.Status != valueobject.GigStatusSearching {
			return repository.ErrStaleState
		}
		for _, other := range r.db.responses {
			if other.GigID == resp.GigID && other.Status == valueobject.ResponseStatusAccepted {
				return repository.ErrAcceptTaken
			}
		}
		resp.Status = valueobject.ResponseStatusAccepted
		resp.Message = message
		resp.RespondedAt = &respondedAt
		r.db.responses[responseID] = resp
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- projects ----

type memProjects struct{ db *memDB }

func (r memProjects) Select(_ context.Context, project *models.OpportunityProject) error {
	return r.db.tx(func() error {
		hold, ok := r.db.holdByGigLocked(project.OpportunityID)
		if !ok {
			return repository.ErrHoldNotFound
		}
		gig := r.db.gigs[project.OpportunityID]
		if gig.Status != valueobject.GigStatusSearching {
			if _, exists := r.db.projectByGigLocked(project.OpportunityID); exists {
				return repository.ErrProjectExists
			}
			return repository.ErrStaleState
		}
		if err := r.db.transitionGigLocked(gig.ID, valueobject.GigStatusSearching, valueobject.GigStatusAwaitingAcceptance,
			&project.PosterUserID, "provider selected"); err != nil {
			return err
		}
		gig = r.db.gigs[gig.ID]
		provider := project.CreatorUserID
		gig.SelectedProviderID = &provider
		r.db.gigs[gig.ID] = gig

		if _, exists := r.db.projectByGigLocked(project.OpportunityID); exists {
			return repository.ErrProjectExists
		}
		if hold.Status != valueobject.HoldStatusAuthorized {
			return repository.ErrStaleState
		}
		now := time.Now()
		project.CreatedAt, project.UpdatedAt = now, now
		r.db.projects[project.ID] = *project

		pid := project.ID
		hold.ProjectID = &pid
		r.db.holds[hold.ID] = hold

		for id, resp := range r.db.responses {
			if resp.GigID == gig.ID && resp.Status == valueobject.ResponseStatusPending {
				resp.Status = valueobject.ResponseStatusInvalidated
				r.db.responses[id] = resp
			}
		}
		return nil
	})
}

func (r memProjects) GetByID(_ context.Context, id uuid.UUID) (*models.OpportunityProject, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.projects[id]
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	return &p, nil
}

func (r memProjects) GetByGigID(_ context.Context, gigID uuid.UUID) (*models.OpportunityProject, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.projectByGigLocked(gigID)
	if !ok {
		return nil, repository.ErrProjectNotFound
	}
	return &p, nil
}

// ---- escrow ----

type memEscrow struct{ db *memDB }

func (r memEscrow) GetHoldByGig(_ context.Context, gigID uuid.UUID) (*models.EscrowHold, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	h, ok := r.db.holdByGigLocked(gigID)
	if !ok {
		return nil, repository.ErrHoldNotFound
	}
	return &h, nil
}

func (r memEscrow) MarkHold(_ context.Context, holdID uuid.UUID, from []valueobject.HoldStatus, to valueobject.HoldStatus, upd repository.HoldUpdate) (*models.EscrowHold, error) {
	var out models.EscrowHold
	err := r.db.tx(func() error {
		var err error
		out, err = r.db.markHoldLocked(holdID, from, to, upd)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memEscrow) MarkAuthorized(_ context.Context, holdID uuid.UUID, intentID string) (*models.EscrowHold, error) {
	var out models.EscrowHold
	err := r.db.tx(func() error {
		var err error
		out, err = r.db.markHoldLocked(holdID, []valueobject.HoldStatus{valueobject.HoldStatusPending},
			valueobject.HoldStatusAuthorized, repository.HoldUpdate{PaymentIntentID: &intentID})
		if err != nil {
			return err
		}
		gig := r.db.gigs[out.GigID]
		gig.PaymentIntentID = &intentID
		r.db.gigs[gig.ID] = gig
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memEscrow) FinalizeCapture(_ context.Context, holdID, projectID uuid.UUID, actor *uuid.UUID) error {
	return r.db.tx(func() error {
		hold, err := r.db.markHoldLocked(holdID, []valueobject.HoldStatus{valueobject.HoldStatusCapturing}, valueobject.HoldStatusCaptured, repository.HoldUpdate{})
		if err != nil {
			return err
		}
		p, ok := r.db.projects[projectID]
		if !ok || p.Status != valueobject.ProjectStatusAwaitingAcceptance {
			return repository.ErrStaleState
		}
		p.Status = valueobject.ProjectStatusActive
		r.db.projects[projectID] = p
		return r.db.transitionGigLocked(hold.GigID, valueobject.GigStatusAwaitingAcceptance, valueobject.GigStatusActive, actor, "agreement accepted")
	})
}

func (r memEscrow) Settle(_ context.Context, s repository.Settlement) error {
	return r.db.tx(func() error {
		if _, err := r.db.markHoldLocked(s.HoldID, []valueobject.HoldStatus{s.HoldFrom}, s.HoldTo, repository.HoldUpdate{}); err != nil {
			return err
		}
		p, ok := r.db.projects[s.ProjectID]
		if !ok || p.Status != s.ProjectFrom {
			return repository.ErrStaleState
		}
		now := time.Now()
		p.Status = valueobject.ProjectStatusCompleted
		p.CompletedAt = &now
		r.db.projects[p.ID] = p
		if err := r.db.transitionGigLocked(s.GigID, s.GigFrom, valueobject.GigStatusCompleted, s.ActorID, s.Reason); err != nil {
			return err
		}
		if s.Dispute != nil {
			d, ok := r.db.disputes[s.Dispute.DisputeID]
			if !ok || d.Status != valueobject.DisputeStatusOpen {
				return repository.ErrStaleState
			}
			note := s.Dispute.Note
			by := s.Dispute.ResolvedBy
			d.Status = s.Dispute.Status
			d.SplitRatio = s.Dispute.SplitRatio
			d.Resolution = &note
			d.ResolvedBy = &by
			d.ResolvedAt = &now
			r.db.disputes[d.ID] = d
		}
		if s.Credit != nil && s.Credit.Amount.IsPositive() {
			return r.creditLocked(*s.Credit)
		}
		return nil
	})
}

func (r memEscrow) walletLocked(userID uuid.UUID, currency string) (models.Wallet, bool) {
	for _, w := range r.db.wallets {
		if w.UserID == userID && w.Currency == currency {
			return w, true
		}
	}
	return models.Wallet{}, false
}

func (r memEscrow) creditLocked(c repository.WalletCredit) error {
	w, ok := r.walletLocked(c.UserID, c.Currency)
	if !ok {
		w = models.Wallet{ID: uuid.New(), UserID: c.UserID, Currency: c.Currency, Balance: decimal.Zero, CreatedAt: time.Now()}
	}
	if w.Frozen {
		return repository.ErrWalletFrozen
	}
	for _, t := range r.db.txns {
		if t.ReferenceType == c.ReferenceType && t.ReferenceID == c.ReferenceID && t.TransactionType == c.TransactionType {
			return repository.ErrAlreadyCredited
		}
	}
	meta, _ := json.Marshal(c.Metadata)
	r.db.txns = append(r.db.txns, models.WalletTransaction{
		ID: uuid.New(), WalletID: w.ID, UserID: w.UserID, TransactionType: c.TransactionType, Amount: c.Amount,
		Currency: w.Currency, ReferenceType: c.ReferenceType, ReferenceID: c.ReferenceID,
		Status: models.TransactionStatusCompleted, Metadata: meta, CreatedAt: time.Now(),
	})
	w.Balance = w.Balance.Add(c.Amount)
	r.db.wallets[w.ID] = w
	return nil
}

func (r memEscrow) HasTransaction(_ context.Context, referenceType string, referenceID uuid.UUID, txType string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, t := range r.db.txns {
		if t.ReferenceType == referenceType && t.ReferenceID == referenceID && t.TransactionType == txType {
			return true, nil
		}
	}
	return false, nil
}

func (r memEscrow) GetWallets(_ context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Wallet
	for _, w := range r.db.wallets {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out, nil
}

func (r memEscrow) ListTransactions(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.WalletTransaction
	for _, t := range r.db.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memEscrow) Withdraw(_ context.Context, userID uuid.UUID, currency string, amount decimal.Decimal, metadata map[string]interface{}) (*models.WalletTransaction, error) {
	var out models.WalletTransaction
	err := r.db.tx(func() error {
		w, ok := r.walletLocked(userID, currency)
		if !ok {
			return repository.ErrWalletNotFound
		}
		if w.Frozen {
			return repository.ErrWalletFrozen
		}
		if w.Balance.LessThan(amount) {
			return repository.ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(amount)
		r.db.wallets[w.ID] = w
		meta, _ := json.Marshal(metadata)
		out = models.WalletTransaction{
			ID: uuid.New(), WalletID: w.ID, UserID: userID, TransactionType: models.TransactionTypeWithdrawal, Amount: amount,
			Currency: currency, ReferenceType: models.ReferenceTypeWithdrawal, ReferenceID: uuid.New(),
			Status: models.TransactionStatusCompleted, Metadata: meta, CreatedAt: time.Now(),
		}
		r.db.txns = append(r.db.txns, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r memEscrow) FindDiscrepancies(_ context.Context) ([]models.WalletDiscrepancy, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.WalletDiscrepancy
	for _, w := range r.db.wallets {
		if w.Frozen {
			continue
		}
		total := decimal.Zero
		for _, t := range r.db.txns {
			if t.WalletID != w.ID || t.Status != models.TransactionStatusCompleted {
				continue
			}
			total = total.Add(t.Amount.Mul(decimal.NewFromInt(int64(models.TransactionSign(t.TransactionType)))))
		}
		if !total.Equal(w.Balance) {
			out = append(out, models.WalletDiscrepancy{WalletID: w.ID, UserID: w.UserID, Currency: w.Currency, Balance: w.Balance, LedgerTotal: total})
		}
	}
	return out, nil
}

func (r memEscrow) FreezeWallet(_ context.Context, walletID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	w := r.db.wallets[walletID]
	w.Frozen = true
	r.db.wallets[walletID] = w
	return nil
}

func (r memEscrow) ListStuckHolds(_ context.Context, statuses []valueobject.HoldStatus, olderThan time.Time, limit int) ([]models.EscrowHold, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.EscrowHold
	for _, h := range r.db.holds {
		for _, s := range statuses {
			if h.Status == s && h.UpdatedAt.Before(olderThan) {
				out = append(out, h)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- disputes ----

type memDisputes struct{ db *memDB }

func (r memDisputes) Open(_ context.Context, d *models.Dispute, gigID uuid.UUID) error {
	return r.db.tx(func() error {
		for _, other := range r.db.disputes {
			if other.ProjectID == d.ProjectID && other.Status == valueobject.DisputeStatusOpen {
				return repository.ErrDisputeOpen
			}
		}
		d.CreatedAt = time.Now()
		r.db.disputes[d.ID] = *d
		p, ok := r.db.projects[d.ProjectID]
		if !ok || p.Status != valueobject.ProjectStatusActive {
			return repository.ErrStaleState
		}
		p.Status = valueobject.ProjectStatusDisputed
		r.db.projects[p.ID] = p
		return r.db.transitionGigLocked(gigID, valueobject.GigStatusActive, valueobject.GigStatusDisputed, &d.RaisedBy, "dispute raised")
	})
}

func (r memDisputes) GetByID(_ context.Context, id uuid.UUID) (*models.Dispute, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	d, ok := r.db.disputes[id]
	if !ok {
		return nil, repository.ErrDisputeNotFound
	}
	return &d, nil
}

func (r memDisputes) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.Dispute
	for _, d := range r.db.disputes {
		if d.RaisedBy == userID || d.Against == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r memDisputes) AppendEvidence(_ context.Context, disputeID uuid.UUID, url string) (*models.Dispute, error) {
	var out models.Dispute
	err := r.db.tx(func() error {
		d, ok := r.db.disputes[disputeID]
		if !ok || d.Status != valueobject.DisputeStatusOpen {
			return repository.ErrStaleState
		}
		d.EvidenceURLs = append(append([]string{}, d.EvidenceURLs...), url)
		r.db.disputes[d.ID] = d
		out = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ---- ratings, providers, availability ----

type memRatings struct{ db *memDB }

func (r memRatings) Create(_ context.Context, rating *models.GigRating) error {
	return r.db.tx(func() error {
		for _, other := range r.db.ratings {
			if other.ProjectID == rating.ProjectID && other.RaterID == rating.RaterID {
				return repository.ErrAlreadyRated
			}
		}
		rating.CreatedAt = time.Now()
		r.db.ratings = append(r.db.ratings, *rating)
		return nil
	})
}

func (r memRatings) ListByRatee(_ context.Context, rateeID uuid.UUID, limit, offset int) ([]models.GigRating, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.GigRating
	for _, rt := range r.db.ratings {
		if rt.RateeID == rateeID {
			out = append(out, rt)
		}
	}
	return out, nil
}

type memProviders struct{ db *memDB }

func (r memProviders) ListActiveProviders(_ context.Context, skill string, excludeUser uuid.UUID, dayStart time.Time) ([]models.ProviderCandidate, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []models.ProviderCandidate
	for _, p := range r.db.providers {
		if p.UserID == excludeUser || !p.AvailableForUrgentGigs {
			continue
		}
		count := 0
		for _, resp := range r.db.responses {
			if resp.ProviderID == p.UserID && !resp.NotifiedAt.Before(dayStart) {
				count++
			}
		}
		p.NotificationsToday = count
		out = append(out, p)
	}
	return out, nil
}

type memAvailability struct{ db *memDB }

func (r memAvailability) Get(_ context.Context, userID uuid.UUID) (*models.UserAvailability, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a, ok := r.db.avail[userID]
	if !ok {
		return nil, repository.ErrAvailabilityNotFound
	}
	return &a, nil
}

func (r memAvailability) Upsert(_ context.Context, a *models.UserAvailability) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	a.UpdatedAt = time.Now()
	r.db.avail[a.UserID] = *a
	return nil
}

type memProfiles struct{ db *memDB }

func (r memProfiles) GetProfile(_ context.Context, userID uuid.UUID) (*models.Profile, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	sum, n := 0, 0
	for _, rt := range r.db.ratings {
		if rt.RateeID == userID {
			sum += rt.OverallRating
			n++
		}
	}
	if n > 0 {
		p.RatingAvg = float64(sum) / float64(n)
	}
	p.RatingCount = n
	return &p, nil
}
