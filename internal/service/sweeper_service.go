package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
)

const sweepBatchSize = 100

// ExpiryStore гиги с истёкшим сроком.
type ExpiryStore interface {
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]models.UrgentGig, error)
	Expire(ctx context.Context, gigID uuid.UUID, reason string) (*models.EscrowHold, error)
}

// HoldRecoverer операции escrow, нужные фоновой сверке.
type HoldRecoverer interface {
	Void(ctx context.Context, hold *models.EscrowHold) error
	ResumeHold(ctx context.Context, hold *models.EscrowHold) (bool, error)
	StuckHolds(ctx context.Context, olderThan time.Time, limit int) ([]models.EscrowHold, error)
	ReconcileWallets(ctx context.Context) ([]models.WalletDiscrepancy, error)
}

// ExpiryReport итог прохода по истёкшим гигам.
type ExpiryReport struct {
	Expired    int `json:"expired"`
	Lost       int `json:"lost"`
	Voided     int `json:"voided"`
	VoidFailed int `json:"void_failed"`
}

// ReconcileReport итог сверки.
type ReconcileReport struct {
	Resumed       int                        `json:"resumed"`
	Failed        int                        `json:"failed"`
	NeedsOperator []models.EscrowHold        `json:"needs_operator"`
	Discrepancies []models.WalletDiscrepancy `json:"discrepancies"`
}

// SweeperService фоновые проходы: истечение гигов и дожим застрявших холдов.
type SweeperService struct {
	gigs     ExpiryStore
	escrow   HoldRecoverer
	grace    time.Duration
	notifier *Notifier
}

func NewSweeperService(gigs ExpiryStore, escrow HoldRecoverer, grace time.Duration, notifier *Notifier) *SweeperService {
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &SweeperService{gigs: gigs, escrow: escrow, grace: grace, notifier: notifier}
}

// ExpireDue закрывает гиги в searching и awaiting_acceptance с expires_at < now и отменяет их холды.
// Гиг, который успели выбрать или подтвердить, условный UPDATE не трогает.
func (s *SweeperService) ExpireDue(ctx context.Context, now time.Time) (*ExpiryReport, error) {
	report := &ExpiryReport{}

	for {
		gigs, err := s.gigs.ListExpirable(ctx, now, sweepBatchSize)
		if err != nil {
			return report, translateRepoError(err)
		}

		progressed := 0
		for i := range gigs {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			gig := &gigs[i]
			log := logger.L().WithField("gig_id", gig.ID)

			hold, err := s.gigs.Expire(ctx, gig.ID, "expired without selection")
			if err != nil {
				if errors.Is(err, repository.ErrStaleState) {
					report.Lost++
					log.Debug("sweeper: гиг сменил статус раньше истечения")
					continue
				}
				return report, translateRepoError(err)
			}
			report.Expired++
			progressed++

			s.notifier.Notify(gig.RequesterID, "Гиг истёк", "Исполнитель не был выбран вовремя", map[string]string{
				"event":  "gig.expired",
				"gig_id": gig.ID.String(),
			})

			if hold == nil {
				continue
			}
			if err := s.escrow.Void(ctx, hold); err != nil {
				report.VoidFailed++
				log.WithError(err).Warn("sweeper: отмена холда отложена до сверки")
				continue
			}
			report.Voided++
		}

		if len(gigs) < sweepBatchSize || progressed == 0 {
			break
		}
	}

	if report.Expired > 0 || report.Lost > 0 {
		logger.L().WithFields(logrus.Fields{
			"expired":     report.Expired,
			"lost":        report.Lost,
			"voided":      report.Voided,
			"void_failed": report.VoidFailed,
		}).Info("sweeper: истёкшие гиги закрыты")
	}
	return report, nil
}

// Reconcile дожимает холды, застрявшие в промежуточных статусах дольше grace,
// затем сверяет кошельки с журналом.
func (s *SweeperService) Reconcile(ctx context.Context, now time.Time) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	holds, err := s.escrow.StuckHolds(ctx, now.Add(-s.grace), sweepBatchSize)
	if err != nil {
		return report, err
	}

	for i := range holds {
		hold := &holds[i]
		log := logger.L().WithFields(logrus.Fields{"hold_id": hold.ID, "gig_id": hold.GigID, "status": hold.Status})

		handled, err := s.escrow.ResumeHold(ctx, hold)
		switch {
		case !handled:
			report.NeedsOperator = append(report.NeedsOperator, *hold)
			log.Error("sweeper: холд требует ручного разбора оператором")
		case err != nil:
			report.Failed++
			log.WithError(err).Warn("sweeper: не удалось дожать холд")
		default:
			report.Resumed++
			log.Info("sweeper: холд дожат")
		}
	}

	discrepancies, err := s.escrow.ReconcileWallets(ctx)
	if err != nil {
		return report, err
	}
	report.Discrepancies = discrepancies
	return report, nil
}

// Run выполняет оба прохода каждые interval до отмены контекста.
func (s *SweeperService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.L().WithField("interval", interval.String()).Info("sweeper: запущен")
	for {
		select {
		case <-ctx.Done():
			logger.L().Info("sweeper: остановлен")
			return
		case <-ticker.C:
			s.RunOnce(ctx, time.Now())
		}
	}
}

// RunOnce один проход истечения и сверки; ошибки логируются.
func (s *SweeperService) RunOnce(ctx context.Context, now time.Time) {
	if _, err := s.ExpireDue(ctx, now); err != nil && !errors.Is(err, context.Canceled) {
		logger.L().WithError(err).Error("sweeper: проход истечения завершился ошибкой")
	}
	if _, err := s.Reconcile(ctx, now); err != nil && !errors.Is(err, context.Canceled) {
		logger.L().WithError(err).Error("sweeper: сверка завершилась ошибкой")
	}
}
