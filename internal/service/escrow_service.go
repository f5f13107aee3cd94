package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/payment"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
)

// EscrowStore хранилище холдов и кошельков.
type EscrowStore interface {
	GetHoldByGig(ctx context.Context, gigID uuid.UUID) (*models.EscrowHold, error)
	MarkHold(ctx context.Context, holdID uuid.UUID, from []valueobject.HoldStatus, to valueobject.HoldStatus, upd repository.HoldUpdate) (*models.EscrowHold, error)
	MarkAuthorized(ctx context.Context, holdID uuid.UUID, intentID string) (*models.EscrowHold, error)
	FinalizeCapture(ctx context.Context, holdID, projectID uuid.UUID, actor *uuid.UUID) error
	Settle(ctx context.Context, s repository.Settlement) error
	HasTransaction(ctx context.Context, referenceType string, referenceID uuid.UUID, txType string) (bool, error)
	GetWallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
	Withdraw(ctx context.Context, userID uuid.UUID, currency string, amount decimal.Decimal, metadata map[string]interface{}) (*models.WalletTransaction, error)
	FindDiscrepancies(ctx context.Context) ([]models.WalletDiscrepancy, error)
	FreezeWallet(ctx context.Context, walletID uuid.UUID) error
	ListStuckHolds(ctx context.Context, statuses []valueobject.HoldStatus, olderThan time.Time, limit int) ([]models.EscrowHold, error)
}

// ProjectReader чтение проектов.
type ProjectReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.OpportunityProject, error)
}

// GigReader чтение гигов.
type GigReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UrgentGig, error)
}

// SettlementResult итог расчёта по проекту.
type SettlementResult struct {
	ProjectID uuid.UUID       `json:"project_id"`
	Released  bool            `json:"released"`
	Payout    decimal.Decimal `json:"payout"`
	Fee       decimal.Decimal `json:"fee"`
	Refund    decimal.Decimal `json:"refund"`
	Currency  string          `json:"currency"`
}

// EscrowService ведёт деньги гига: авторизация, захват, выплата, возврат и сверка кошельков.
// Каждый внешний вызов обрамлён локальным промежуточным статусом холда,
// поэтому прерванная операция всегда видна сверке.
type EscrowService struct {
	store          EscrowStore
	projects       ProjectReader
	gigs           GigReader
	gateway        payment.Gateway
	notifier       *Notifier
	gatewayTimeout time.Duration
}

func NewEscrowService(store EscrowStore, projects ProjectReader, gigs GigReader, gateway payment.Gateway, notifier *Notifier, gatewayTimeout time.Duration) *EscrowService {
	if gatewayTimeout <= 0 {
		gatewayTimeout = 10 * time.Second
	}
	return &EscrowService{
		store:          store,
		projects:       projects,
		gigs:           gigs,
		gateway:        gateway,
		notifier:       notifier,
		gatewayTimeout: gatewayTimeout,
	}
}

func (s *EscrowService) gatewayCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.gatewayTimeout)
}

// Authorize авторизует оплату гига. Идемпотентна: уже авторизованный холд возвращается как есть,
// повтор после временной ошибки идёт с тем же ключом идемпотентности.
func (s *EscrowService) Authorize(ctx context.Context, gig *models.UrgentGig) (*models.EscrowHold, error) {
	hold, err := s.store.GetHoldByGig(ctx, gig.ID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	switch hold.Status {
	case valueobject.HoldStatusAuthorized:
		return hold, nil
	case valueobject.HoldStatusPending:
	case valueobject.HoldStatusFailed:
		return nil, apperror.ErrPaymentDeclined
	default:
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition,
			"оплата гига уже в статусе "+string(hold.Status))
	}

	amount := valueobject.Money{Amount: hold.Amount, Currency: hold.Currency}
	methodID := ""
	if hold.PaymentMethodID != nil {
		methodID = *hold.PaymentMethodID
	}

	gctx, cancel := s.gatewayCtx(ctx)
	intent, gwErr := s.gateway.Authorize(gctx, payment.AuthorizeRequest{
		Amount:          amount,
		PaymentMethodID: methodID,
		Metadata: map[string]string{
			"gig_id":       gig.ID.String(),
			"requester_id": gig.RequesterID.String(),
		},
		IdempotencyKey: payment.IdempotencyKey("authorize", hold.ID.String(), amount.String()),
	})
	cancel()

	log := logger.L().WithFields(logrus.Fields{"gig_id": gig.ID, "hold_id": hold.ID})
	if gwErr != nil {
		if errors.Is(gwErr, payment.ErrDeclined) {
			reason := gwErr.Error()
			if _, err := s.store.MarkHold(ctx, hold.ID, []valueobject.HoldStatus{valueobject.HoldStatusPending},
				valueobject.HoldStatusFailed, repository.HoldUpdate{FailureReason: &reason}); err != nil && !errors.Is(err, repository.ErrStaleState) {
				log.WithError(err).Error("escrow: не удалось отметить отказ авторизации")
			}
			log.WithError(gwErr).Info("escrow: авторизация отклонена")
		} else {
			log.WithError(gwErr).Warn("escrow: шлюз недоступен при авторизации, холд остаётся pending")
		}
		return nil, translateGatewayError(gwErr)
	}

	authorized, err := s.store.MarkAuthorized(ctx, hold.ID, intent.ID)
	if errors.Is(err, repository.ErrStaleState) {
		// параллельная авторизация с тем же ключом успела раньше
		current, getErr := s.store.GetHoldByGig(ctx, gig.ID)
		if getErr == nil && current.Status == valueobject.HoldStatusAuthorized {
			return current, nil
		}
		if getErr == nil && current.IntentID() != intent.ID {
			// гиг истёк, пока шлюз авторизовал: холд уже закрыт без этого намерения
			s.cancelOrphanIntent(ctx, current, intent.ID)
		}
	}
	if err != nil {
		return nil, translateRepoError(err)
	}

	log.WithField("intent_id", intent.ID).Info("escrow: оплата авторизована")
	return authorized, nil
}

// CaptureAndHoldInEscrow выполняется, когда исполнитель подтверждает договорённость:
// деньги захватываются и остаются в escrow, проект и гиг становятся active.
func (s *EscrowService) CaptureAndHoldInEscrow(ctx context.Context, projectID, providerID uuid.UUID) (*models.OpportunityProject, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if project.CreatorUserID != providerID {
		return nil, apperror.ErrNotParty
	}
	if project.Status != valueobject.ProjectStatusAwaitingAcceptance {
		return nil, invalidProjectState(project.Status)
	}

	hold, err := s.beginCapture(ctx, project.OpportunityID)
	if err != nil {
		return nil, err
	}
	if err := s.captureAndFinalize(ctx, hold, project.ID, &providerID); err != nil {
		return nil, err
	}

	s.notifier.Notify(project.PosterUserID, "Исполнитель подтвердил гиг", project.Title, map[string]string{
		"event":      "project.active",
		"project_id": project.ID.String(),
	})

	return s.projects.GetByID(ctx, project.ID)
}

// beginCapture переводит холд authorized -> capturing; прерванный захват (capturing) продолжается.
func (s *EscrowService) beginCapture(ctx context.Context, gigID uuid.UUID) (*models.EscrowHold, error) {
	hold, err := s.store.GetHoldByGig(ctx, gigID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	switch hold.Status {
	case valueobject.HoldStatusCapturing:
		return hold, nil
	case valueobject.HoldStatusAuthorized:
		hold, err = s.store.MarkHold(ctx, hold.ID, []valueobject.HoldStatus{valueobject.HoldStatusAuthorized},
			valueobject.HoldStatusCapturing, repository.HoldUpdate{})
		if err != nil {
			return nil, translateRepoError(err)
		}
		return hold, nil
	default:
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition,
			"захват невозможен: холд в статусе "+string(hold.Status))
	}
}

func (s *EscrowService) captureAndFinalize(ctx context.Context, hold *models.EscrowHold, projectID uuid.UUID, actor *uuid.UUID) error {
	log := logger.L().WithFields(logrus.Fields{"hold_id": hold.ID, "project_id": projectID})

	gctx, cancel := s.gatewayCtx(ctx)
	_, gwErr := s.gateway.Capture(gctx, hold.IntentID(), payment.IdempotencyKey("capture", hold.ID.String()))
	cancel()

	if gwErr != nil && !errors.Is(gwErr, payment.ErrAlreadyCaptured) {
		if _, err := s.store.MarkHold(ctx, hold.ID, []valueobject.HoldStatus{valueobject.HoldStatusCapturing},
			valueobject.HoldStatusAuthorized, repository.HoldUpdate{}); err != nil {
			log.WithError(err).Error("escrow: не удалось вернуть холд в authorized после ошибки захвата")
		}
		log.WithError(gwErr).Warn("escrow: захват не выполнен")
		return translateGatewayError(gwErr)
	}

	if err := s.store.FinalizeCapture(ctx, hold.ID, projectID, actor); err != nil {
		// деньги захвачены, холд остаётся capturing и будет дожат сверкой
		log.WithError(err).Error("escrow: захват выполнен, но локальная фиксация не удалась")
		return translateRepoError(err)
	}
	return nil
}

// Release выплачивает исполнителю зафиксированную при выборе сумму, когда заказчик завершает проект.
func (s *EscrowService) Release(ctx context.Context, projectID, requesterID uuid.UUID) (*SettlementResult, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if project.PosterUserID != requesterID {
		return nil, apperror.ErrNotParty
	}
	if project.Status != valueobject.ProjectStatusActive {
		return nil, invalidProjectState(project.Status)
	}

	if err := s.settleRelease(ctx, project, valueobject.ProjectStatusActive, &requesterID, "completed by requester", nil, nil); err != nil {
		return nil, err
	}

	s.notifyPayout(project)
	return releasedResult(project), nil
}

// AdminRelease принудительная выплата оператором. Идемпотентна: повтор по уже выплаченному
// проекту ничего не меняет и возвращает Released=false.
func (s *EscrowService) AdminRelease(ctx context.Context, projectID, operatorID uuid.UUID, reason string) (*SettlementResult, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	log := logger.L().WithFields(logrus.Fields{"project_id": projectID, "operator_id": operatorID})

	credited, err := s.store.HasTransaction(ctx, models.ReferenceTypeProject, project.ID, models.TransactionTypeGigPayment)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if credited {
		log.Info("escrow: admin release повторно, проект уже выплачен")
		return &SettlementResult{ProjectID: project.ID, Released: false, Currency: project.Currency}, nil
	}

	switch project.Status {
	case valueobject.ProjectStatusAwaitingAcceptance:
		hold, err := s.beginCapture(ctx, project.OpportunityID)
		if err != nil {
			return nil, err
		}
		if err := s.captureAndFinalize(ctx, hold, project.ID, &operatorID); err != nil {
			return nil, err
		}
	case valueobject.ProjectStatusActive:
	default:
		return nil, invalidProjectState(project.Status)
	}

	metadata := map[string]interface{}{
		"admin_release": true,
		"reason":        reason,
		"operator_id":   operatorID.String(),
	}
	err = s.settleRelease(ctx, project, valueobject.ProjectStatusActive, &operatorID, "admin release", nil, metadata)
	if err != nil {
		if again, checkErr := s.store.HasTransaction(ctx, models.ReferenceTypeProject, project.ID, models.TransactionTypeGigPayment); checkErr == nil && again {
			return &SettlementResult{ProjectID: project.ID, Released: false, Currency: project.Currency}, nil
		}
		return nil, err
	}

	log.WithField("reason", reason).Warn("escrow: выплата проведена оператором")
	s.notifyPayout(project)
	return releasedResult(project), nil
}

// ReleaseDisputed закрывает спор в пользу исполнителя: полная зафиксированная выплата.
func (s *EscrowService) ReleaseDisputed(ctx context.Context, dispute *models.Dispute, operatorID uuid.UUID, note string) (*SettlementResult, error) {
	project, err := s.disputedProject(ctx, dispute)
	if err != nil {
		return nil, err
	}

	resolution := &repository.DisputeResolution{
		DisputeID:  dispute.ID,
		Status:     valueobject.DisputeStatusResolvedRelease,
		Note:       note,
		ResolvedBy: operatorID,
	}
	if err := s.settleRelease(ctx, project, valueobject.ProjectStatusDisputed, &operatorID, "dispute resolved: release", resolution, nil); err != nil {
		return nil, err
	}
	s.notifyPayout(project)
	return releasedResult(project), nil
}

// Refund закрывает спор в пользу заказчика: полный возврат на карту.
func (s *EscrowService) Refund(ctx context.Context, dispute *models.Dispute, operatorID uuid.UUID, note string) (*SettlementResult, error) {
	project, err := s.disputedProject(ctx, dispute)
	if err != nil {
		return nil, err
	}

	hold, err := s.refundAtGateway(ctx, project, project.AgreedAmount)
	if err != nil {
		return nil, err
	}

	err = s.store.Settle(ctx, repository.Settlement{
		ProjectID:   project.ID,
		ProjectFrom: valueobject.ProjectStatusDisputed,
		GigID:       project.OpportunityID,
		GigFrom:     valueobject.GigStatusDisputed,
		HoldID:      hold.ID,
		HoldFrom:    valueobject.HoldStatusRefunding,
		HoldTo:      valueobject.HoldStatusRefunded,
		Dispute: &repository.DisputeResolution{
			DisputeID:  dispute.ID,
			Status:     valueobject.DisputeStatusResolvedRefund,
			Note:       note,
			ResolvedBy: operatorID,
		},
		ActorID: &operatorID,
		Reason:  "dispute resolved: refund",
	})
	if err != nil {
		logger.L().WithFields(logrus.Fields{"project_id": project.ID, "hold_id": hold.ID}).
			WithError(err).Error("escrow: возврат проведён, но локальная фиксация не удалась")
		return nil, translateRepoError(err)
	}

	return &SettlementResult{
		ProjectID: project.ID,
		Released:  false,
		Payout:    decimal.Zero,
		Fee:       decimal.Zero,
		Refund:    project.AgreedAmount,
		Currency:  project.Currency,
	}, nil
}

// SplitResolve делит сумму: доля исполнителя round(agreed*ratio) облагается комиссией проекта,
// остаток возвращается заказчику.
func (s *EscrowService) SplitResolve(ctx context.Context, dispute *models.Dispute, ratio decimal.Decimal, operatorID uuid.UUID, note string) (*SettlementResult, error) {
	if !ratio.IsPositive() || !ratio.LessThan(decimal.NewFromInt(1)) {
		return nil, apperror.Validation("split_ratio должен быть строго между 0 и 1")
	}

	project, err := s.disputedProject(ctx, dispute)
	if err != nil {
		return nil, err
	}

	split := SplitAmounts(project, ratio)

	hold, err := s.refundAtGateway(ctx, project, split.Refund)
	if err != nil {
		return nil, err
	}

	err = s.store.Settle(ctx, repository.Settlement{
		ProjectID:   project.ID,
		ProjectFrom: valueobject.ProjectStatusDisputed,
		GigID:       project.OpportunityID,
		GigFrom:     valueobject.GigStatusDisputed,
		HoldID:      hold.ID,
		HoldFrom:    valueobject.HoldStatusRefunding,
		HoldTo:      valueobject.HoldStatusSplit,
		Dispute: &repository.DisputeResolution{
			DisputeID:  dispute.ID,
			Status:     valueobject.DisputeStatusResolvedSplit,
			SplitRatio: &ratio,
			Note:       note,
			ResolvedBy: operatorID,
		},
		Credit: &repository.WalletCredit{
			UserID:          project.CreatorUserID,
			Currency:        project.Currency,
			Amount:          split.Payout,
			TransactionType: models.TransactionTypeGigPayment,
			ReferenceType:   models.ReferenceTypeProject,
			ReferenceID:     project.ID,
			Metadata: map[string]interface{}{
				"split_ratio": ratio.String(),
				"share":       split.Share.String(),
				"fee":         split.Fee.String(),
			},
		},
		ActorID: &operatorID,
		Reason:  "dispute resolved: split",
	})
	if err != nil {
		logger.L().WithFields(logrus.Fields{"project_id": project.ID, "hold_id": hold.ID}).
			WithError(err).Error("escrow: частичный возврат проведён, но локальная фиксация не удалась")
		return nil, translateRepoError(err)
	}

	if split.Payout.IsPositive() {
		s.notifyPayout(project)
	}
	return &SettlementResult{
		ProjectID: project.ID,
		Released:  split.Payout.IsPositive(),
		Payout:    split.Payout,
		Fee:       split.Fee,
		Refund:    split.Refund,
		Currency:  project.Currency,
	}, nil
}

// Split разбиение суммы проекта при частичном решении спора.
type Split struct {
	Share  decimal.Decimal
	Fee    decimal.Decimal
	Payout decimal.Decimal
	Refund decimal.Decimal
}

// SplitAmounts считает доли спора. Share + Refund == Agreed и Payout + Fee == Share.
func SplitAmounts(project *models.OpportunityProject, ratio decimal.Decimal) Split {
	share := valueobject.RoundToMinor(project.AgreedAmount.Mul(ratio), project.Currency)
	fee := valueobject.RoundToMinor(share.Mul(project.FeeRate), project.Currency)
	return Split{
		Share:  share,
		Fee:    fee,
		Payout: share.Sub(fee),
		Refund: project.AgreedAmount.Sub(share),
	}
}

// refundAtGateway переводит холд captured -> refunding и проводит возврат у шлюза.
// Прерванный возврат (refunding) повторяется с тем же ключом идемпотентности.
func (s *EscrowService) refundAtGateway(ctx context.Context, project *models.OpportunityProject, amount decimal.Decimal) (*models.EscrowHold, error) {
	hold, err := s.store.GetHoldByGig(ctx, project.OpportunityID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	switch hold.Status {
	case valueobject.HoldStatusRefunding:
		if hold.RefundAmount == nil || !hold.RefundAmount.Equal(amount) {
			return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition,
				"по холду уже идёт возврат другой суммы")
		}
	case valueobject.HoldStatusCaptured:
		hold, err = s.store.MarkHold(ctx, hold.ID, []valueobject.HoldStatus{valueobject.HoldStatusCaptured},
			valueobject.HoldStatusRefunding, repository.HoldUpdate{RefundAmount: &amount})
		if err != nil {
			return nil, translateRepoError(err)
		}
	default:
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition,
			"возврат невозможен: холд в статусе "+string(hold.Status))
	}

	if !amount.IsPositive() {
		return hold, nil
	}

	gctx, cancel := s.gatewayCtx(ctx)
	_, gwErr := s.gateway.Refund(gctx, hold.IntentID(), valueobject.Money{Amount: amount, Currency: project.Currency},
		payment.IdempotencyKey("refund", hold.ID.String(), amount.String()))
	cancel()

	if gwErr != nil {
		log := logger.L().WithFields(logrus.Fields{"hold_id": hold.ID, "project_id": project.ID})
		if errors.Is(gwErr, payment.ErrDeclined) {
			if _, err := s.store.MarkHold(ctx, hold.ID, []valueobject.HoldStatus{valueobject.HoldStatusRefunding},
				valueobject.HoldStatusCaptured, repository.HoldUpdate{}); err != nil {
				log.WithError(err).Error("escrow: не удалось вернуть холд в captured после отказа возврата")
			}
		}
		log.WithError(gwErr).Warn("escrow: возврат не выполнен")
		return nil, translateGatewayError(gwErr)
	}
	return hold, nil
}

// Void отменяет авторизацию холда в статусе voiding.
func (s *EscrowService) Void(ctx context.Context, hold *models.EscrowHold) error {
	log := logger.L().WithFields(logrus.Fields{"hold_id": hold.ID, "gig_id": hold.GigID})
	upd := repository.HoldUpdate{}

	if hold.PaymentIntentID != nil {
		gctx, cancel := s.gatewayCtx(ctx)
		_, gwErr := s.gateway.Cancel(gctx, *hold.PaymentIntentID, payment.IdempotencyKey("cancel", hold.ID.String()))
		cancel()

		if gwErr != nil {
			if !errors.Is(gwErr, payment.ErrDeclined) {
				log.WithError(gwErr).Warn("escrow: отмена авторизации не выполнена, повторим при сверке")
				return translateGatewayError(gwErr)
			}
			reason := gwErr.Error()
			upd.FailureReason = &reason
			log.WithError(gwErr).Warn("escrow: шлюз отказал в отмене авторизации, холд закрыт")
		}
	}

	if _, err := s.store.MarkHold(ctx, hold.ID, []valueobject.HoldStatus{valueobject.HoldStatusVoiding},
		valueobject.HoldStatusVoided, upd); err != nil {
		return translateRepoError(err)
	}
	return nil
}

// cancelOrphanIntent отменяет авторизацию, которую шлюз вернул для холда,
// закрытого или закрываемого без неё (voiding, voided, failed).
func (s *EscrowService) cancelOrphanIntent(ctx context.Context, hold *models.EscrowHold, intentID string) {
	switch hold.Status {
	case valueobject.HoldStatusVoiding, valueobject.HoldStatusVoided, valueobject.HoldStatusFailed:
	default:
		return
	}

	log := logger.L().WithFields(logrus.Fields{"hold_id": hold.ID, "intent_id": intentID})
	gctx, cancel := s.gatewayCtx(ctx)
	_, err := s.gateway.Cancel(gctx, intentID, payment.IdempotencyKey("cancel", hold.ID.String(), intentID))
	cancel()
	if err != nil {
		log.WithError(err).Error("escrow: не удалось отменить авторизацию истёкшего гига")
		return
	}
	log.Info("escrow: авторизация истёкшего гига отменена")
}

// ResumeHold дожимает холд, застрявший в промежуточном статусе.
// Возвращает false, если холд требует ручного разбора оператором.
func (s *EscrowService) ResumeHold(ctx context.Context, hold *models.EscrowHold) (bool, error) {
	switch hold.Status {
	case valueobject.HoldStatusCapturing:
		if hold.ProjectID == nil {
			return false, nil
		}
		return true, s.captureAndFinalize(ctx, hold, *hold.ProjectID, nil)
	case valueobject.HoldStatusVoiding:
		return true, s.Void(ctx, hold)
	case valueobject.HoldStatusPending:
		gig, err := s.gigs.GetByID(ctx, hold.GigID)
		if err != nil {
			return true, translateRepoError(err)
		}
		if gig.Status != valueobject.GigStatusSearching {
			return true, nil
		}
		_, err = s.Authorize(ctx, gig)
		return true, err
	default:
		return false, nil
	}
}

// StuckHolds холды в промежуточных статусах старше olderThan.
func (s *EscrowService) StuckHolds(ctx context.Context, olderThan time.Time, limit int) ([]models.EscrowHold, error) {
	holds, err := s.store.ListStuckHolds(ctx, []valueobject.HoldStatus{
		valueobject.HoldStatusPending,
		valueobject.HoldStatusCapturing,
		valueobject.HoldStatusRefunding,
		valueobject.HoldStatusVoiding,
	}, olderThan, limit)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return holds, nil
}

// ReconcileWallets пересчитывает балансы по журналу и замораживает расходящиеся кошельки.
func (s *EscrowService) ReconcileWallets(ctx context.Context) ([]models.WalletDiscrepancy, error) {
	discrepancies, err := s.store.FindDiscrepancies(ctx)
	if err != nil {
		return nil, translateRepoError(err)
	}

	for _, d := range discrepancies {
		if err := s.store.FreezeWallet(ctx, d.WalletID); err != nil {
			return nil, translateRepoError(err)
		}
		logger.L().WithFields(logrus.Fields{
			"wallet_id":    d.WalletID,
			"user_id":      d.UserID,
			"currency":     d.Currency,
			"balance":      d.Balance.String(),
			"ledger_total": d.LedgerTotal.String(),
		}).Error("escrow: баланс кошелька расходится с журналом, кошелёк заморожен")
	}
	return discrepancies, nil
}

func (s *EscrowService) GetWallets(ctx context.Context, userID uuid.UUID) ([]models.Wallet, error) {
	wallets, err := s.store.GetWallets(ctx, userID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return wallets, nil
}

func (s *EscrowService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	txns, err := s.store.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return txns, nil
}

// Withdraw списывает сумму с кошелька пользователя.
func (s *EscrowService) Withdraw(ctx context.Context, userID uuid.UUID, currency string, amount decimal.Decimal) (*models.WalletTransaction, error) {
	money, err := valueobject.NewMoney(amount, currency)
	if err != nil {
		return nil, err
	}
	if !money.Amount.IsPositive() {
		return nil, apperror.Validation("сумма вывода должна быть положительной")
	}

	txn, err := s.store.Withdraw(ctx, userID, money.Currency, money.Amount, map[string]interface{}{
		"requested_by": userID.String(),
	})
	if err != nil {
		return nil, translateRepoError(err)
	}

	logger.L().WithFields(logrus.Fields{"user_id": userID, "amount": money.String()}).Info("escrow: вывод средств")
	return txn, nil
}

func (s *EscrowService) disputedProject(ctx context.Context, dispute *models.Dispute) (*models.OpportunityProject, error) {
	if dispute.Status != valueobject.DisputeStatusOpen {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition, "спор уже разрешён")
	}
	project, err := s.projects.GetByID(ctx, dispute.ProjectID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if project.Status != valueobject.ProjectStatusDisputed {
		return nil, invalidProjectState(project.Status)
	}
	return project, nil
}

func (s *EscrowService) settleRelease(ctx context.Context, project *models.OpportunityProject, from valueobject.ProjectStatus, actor *uuid.UUID, reason string, dispute *repository.DisputeResolution, metadata map[string]interface{}) error {
	hold, err := s.store.GetHoldByGig(ctx, project.OpportunityID)
	if err != nil {
		return translateRepoError(err)
	}

	gigFrom := valueobject.GigStatusActive
	if from == valueobject.ProjectStatusDisputed {
		gigFrom = valueobject.GigStatusDisputed
	}

	err = s.store.Settle(ctx, repository.Settlement{
		ProjectID:   project.ID,
		ProjectFrom: from,
		GigID:       project.OpportunityID,
		GigFrom:     gigFrom,
		HoldID:      hold.ID,
		HoldFrom:    valueobject.HoldStatusCaptured,
		HoldTo:      valueobject.HoldStatusReleased,
		Dispute:     dispute,
		Credit: &repository.WalletCredit{
			UserID:          project.CreatorUserID,
			Currency:        project.Currency,
			Amount:          project.CreatorPayoutAmount,
			TransactionType: models.TransactionTypeGigPayment,
			ReferenceType:   models.ReferenceTypeProject,
			ReferenceID:     project.ID,
			Metadata:        metadata,
		},
		ActorID: actor,
		Reason:  reason,
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			// статус мог смениться между чтением и транзакцией (например, открыт спор)
			if fresh, getErr := s.projects.GetByID(ctx, project.ID); getErr == nil && fresh.Status != from {
				return invalidProjectState(fresh.Status)
			}
		}
		return translateRepoError(err)
	}

	logger.L().WithFields(logrus.Fields{
		"project_id": project.ID,
		"payout":     project.CreatorPayoutAmount.String(),
		"fee":        project.PlatformFeeAmount.String(),
		"currency":   project.Currency,
	}).Info("escrow: выплата исполнителю проведена")
	return nil
}

func (s *EscrowService) notifyPayout(project *models.OpportunityProject) {
	s.notifier.Notify(project.CreatorUserID, "Выплата за гиг", project.Title, map[string]string{
		"event":      "project.paid",
		"project_id": project.ID.String(),
	})
}

func releasedResult(project *models.OpportunityProject) *SettlementResult {
	return &SettlementResult{
		ProjectID: project.ID,
		Released:  true,
		Payout:    project.CreatorPayoutAmount,
		Fee:       project.PlatformFeeAmount,
		Refund:    decimal.Zero,
		Currency:  project.Currency,
	}
}

func invalidProjectState(status valueobject.ProjectStatus) error {
	return apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition,
		"операция недопустима для проекта в статусе "+string(status))
}
