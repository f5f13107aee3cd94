package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/logger"
	"github.com/ignatzorin/gigmarket-backend/internal/models"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/repository"
	"github.com/ignatzorin/gigmarket-backend/internal/storage"
	"github.com/ignatzorin/gigmarket-backend/internal/validation"
)

const maxEvidenceItems = 20

// DisputeStore хранилище споров.
type DisputeStore interface {
	Open(ctx context.Context, d *models.Dispute, gigID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	AppendEvidence(ctx context.Context, disputeID uuid.UUID, url string) (*models.Dispute, error)
}

// EvidenceStore файловое хранилище доказательств.
type EvidenceStore interface {
	Save(ctx context.Context, disputeID uuid.UUID, r io.Reader) (*storage.StoredFile, error)
	Delete(ctx context.Context, relativePath string) error
}

// DisputeSettler денежные исходы спора.
type DisputeSettler interface {
	ReleaseDisputed(ctx context.Context, dispute *models.Dispute, operatorID uuid.UUID, note string) (*SettlementResult, error)
	Refund(ctx context.Context, dispute *models.Dispute, operatorID uuid.UUID, note string) (*SettlementResult, error)
	SplitResolve(ctx context.Context, dispute *models.Dispute, ratio decimal.Decimal, operatorID uuid.UUID, note string) (*SettlementResult, error)
}

// RaiseDisputeInput данные нового спора.
type RaiseDisputeInput struct {
	ProjectID   uuid.UUID
	Reason      string
	Description string
	Evidence    []string
}

// DisputeService открытие и разрешение споров по активным проектам.
type DisputeService struct {
	disputes DisputeStore
	projects ProjectReader
	evidence EvidenceStore
	escrow   DisputeSettler
	notifier *Notifier
}

func NewDisputeService(disputes DisputeStore, projects ProjectReader, evidence EvidenceStore, escrow DisputeSettler, notifier *Notifier) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		projects: projects,
		evidence: evidence,
		escrow:   escrow,
		notifier: notifier,
	}
}

// Raise открывает спор. Только стороны проекта и только пока проект active.
func (s *DisputeService) Raise(ctx context.Context, raisedBy uuid.UUID, in RaiseDisputeInput) (*models.Dispute, error) {
	reason := strings.TrimSpace(in.Reason)
	if err := validation.ValidateLength("причина спора", reason, 1, validation.MaxDisputeReasonLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	description := strings.TrimSpace(in.Description)
	if err := validation.ValidateLength("описание спора", description, 0, validation.MaxDisputeDescLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if len(in.Evidence) > maxEvidenceItems {
		return nil, apperror.Validation("не более %d доказательств", maxEvidenceItems)
	}
	evidence := make([]string, 0, len(in.Evidence))
	for _, link := range in.Evidence {
		if err := validation.ValidateExternalLink(link); err != nil {
			return nil, apperror.Validation("%s", err.Error())
		}
		evidence = append(evidence, strings.TrimSpace(link))
	}

	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !project.IsParty(raisedBy) {
		return nil, apperror.ErrNotParty
	}
	if project.Status != valueobject.ProjectStatusActive {
		if project.Status == valueobject.ProjectStatusDisputed {
			return nil, apperror.ErrDisputeAlreadyOpen
		}
		return nil, invalidProjectState(project.Status)
	}

	dispute := &models.Dispute{
		ID:           uuid.New(),
		ProjectID:    project.ID,
		RaisedBy:     raisedBy,
		Against:      project.Counterparty(raisedBy),
		Reason:       reason,
		Description:  description,
		EvidenceURLs: evidence,
		Status:       valueobject.DisputeStatusOpen,
	}
	if err := s.disputes.Open(ctx, dispute, project.OpportunityID); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			if fresh, getErr := s.projects.GetByID(ctx, project.ID); getErr == nil {
				return nil, invalidProjectState(fresh.Status)
			}
		}
		return nil, translateRepoError(err)
	}

	logger.L().WithFields(logrus.Fields{
		"dispute_id": dispute.ID,
		"project_id": project.ID,
		"raised_by":  raisedBy,
	}).Info("dispute: спор открыт")

	s.notifier.Notify(dispute.Against, "Открыт спор", project.Title, map[string]string{
		"event":      "dispute.opened",
		"dispute_id": dispute.ID.String(),
		"project_id": project.ID.String(),
	})
	return dispute, nil
}

// AttachEvidence сохраняет файл-доказательство и добавляет его к открытому спору.
func (s *DisputeService) AttachEvidence(ctx context.Context, disputeID, userID uuid.UUID, file io.Reader) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if dispute.RaisedBy != userID && dispute.Against != userID {
		return nil, apperror.ErrNotParty
	}
	if dispute.Status != valueobject.DisputeStatusOpen {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeInvalidStateTransition, "спор уже разрешён")
	}
	if len(dispute.EvidenceURLs) >= maxEvidenceItems {
		return nil, apperror.Validation("не более %d доказательств", maxEvidenceItems)
	}

	stored, err := s.evidence.Save(ctx, dispute.ID, file)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrUnsupportedType), errors.Is(err, storage.ErrTooLarge), errors.Is(err, storage.ErrEmptyFile):
			return nil, apperror.Validation("%s", err.Error())
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось сохранить файл")
	}

	updated, err := s.disputes.AppendEvidence(ctx, dispute.ID, "/evidence/"+stored.RelativePath)
	if err != nil {
		if delErr := s.evidence.Delete(ctx, stored.RelativePath); delErr != nil {
			logger.L().WithError(delErr).WithField("path", stored.RelativePath).Warn("dispute: не удалось удалить файл доказательства")
		}
		return nil, translateRepoError(err)
	}
	return updated, nil
}

// Resolve решение оператора по спору. Деньги распределяет escrow.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, operatorID uuid.UUID, outcome valueobject.DisputeOutcome, splitRatio *decimal.Decimal, note string) (*SettlementResult, error) {
	note = strings.TrimSpace(note)
	if err := validation.ValidateLength("комментарий", note, 0, validation.MaxResolutionNoteLength); err != nil {
		return nil, apperror.Validation("%s", err.Error())
	}
	if outcome == valueobject.DisputeOutcomeSplit && splitRatio == nil {
		return nil, apperror.Validation("для split нужен split_ratio")
	}
	if outcome != valueobject.DisputeOutcomeSplit && splitRatio != nil {
		return nil, apperror.Validation("split_ratio допустим только для split")
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, translateRepoError(err)
	}

	var result *SettlementResult
	switch outcome {
	case valueobject.DisputeOutcomeRefund:
		result, err = s.escrow.Refund(ctx, dispute, operatorID, note)
	case valueobject.DisputeOutcomeRelease:
		result, err = s.escrow.ReleaseDisputed(ctx, dispute, operatorID, note)
	case valueobject.DisputeOutcomeSplit:
		result, err = s.escrow.SplitResolve(ctx, dispute, *splitRatio, operatorID, note)
	default:
		return nil, apperror.Validation("outcome должен быть refund, release или split")
	}
	if err != nil {
		return nil, err
	}

	logger.L().WithFields(logrus.Fields{
		"dispute_id":  dispute.ID,
		"operator_id": operatorID,
		"outcome":     outcome,
	}).Info("dispute: спор разрешён")

	data := map[string]string{
		"event":      "dispute.resolved",
		"dispute_id": dispute.ID.String(),
		"outcome":    string(outcome),
	}
	s.notifier.Notify(dispute.RaisedBy, "Спор разрешён", string(outcome.ResolvedStatus()), data)
	s.notifier.Notify(dispute.Against, "Спор разрешён", string(outcome.ResolvedStatus()), data)
	return result, nil
}

// Get спор виден сторонам.
func (s *DisputeService) Get(ctx context.Context, disputeID, userID uuid.UUID, isOperator bool) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		return nil, translateRepoError(err)
	}
	if !isOperator && dispute.RaisedBy != userID && dispute.Against != userID {
		return nil, apperror.ErrNotParty
	}
	return dispute, nil
}

func (s *DisputeService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if offset < 0 {
		offset = 0
	}
	disputes, err := s.disputes.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, translateRepoError(err)
	}
	return disputes, nil
}
