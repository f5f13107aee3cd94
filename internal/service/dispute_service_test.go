package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/gigmarket-backend/internal/domain/valueobject"
	"github.com/ignatzorin/gigmarket-backend/internal/payment"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 2, 0, 0, 0}

func TestDispute_RaiseRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	requester, provider, gig, project := env.selectedProject(t)

	_, err := env.disputes.Raise(ctx, requester, RaiseDisputeInput{ProjectID: project.ID, Reason: "late"})
	assert.Equal(t, apperror.ErrCodeInvalidStateTransition, apperror.CodeOf(err), "awaiting acceptance")

	_, err = env.escrow.CaptureAndHoldInEscrow(ctx, project.ID, provider)
	require.NoError(t, err)

	_, err = env.disputes.Raise(ctx, uuid.New(), RaiseDisputeInput{ProjectID: project.ID, Reason: "late"})
	require.ErrorIs(t, err, apperror.ErrNotParty)

	_, err = env.disputes.Raise(ctx, requester, RaiseDisputeInput{ProjectID: project.ID, Reason: "  "})
	assert.True(t, apperror.IsValidation(err))

	_, err = env.disputes.Raise(ctx, requester, RaiseDisputeInput{ProjectID: project.ID, Reason: "late", Evidence: []string{"javascript:alert(1)"}})
	assert.True(t, apperror.IsValidation(err))

	dispute, err := env.disputes.Raise(ctx, requester, RaiseDisputeInput{
		ProjectID:   project.ID,
		Reason:      "no-show",
		Description: "Исполнитель не пришёл",
		Evidence:    []string{"https://example.com/chat.png"},
	})
	require.NoError(t, err)
	assert.Equal(t, provider, dispute.Against)
	assert.Equal(t, valueobject.DisputeStatusOpen, dispute.Status)
	assert.Equal(t, valueobject.ProjectStatusDisputed, env.project(project.ID).Status)
	assert.Equal(t, valueobject.GigStatusDisputed, env.gig(gig.ID).Status)

	_, err = env.disputes.Raise(ctx, provider, RaiseDisputeInput{ProjectID: project.ID, Reason: "counter"})
	require.ErrorIs(t, err, apperror.ErrDisputeAlreadyOpen)

	env.notifier.Wait()
	assert.Contains(t, env.push.events(provider), "dispute.opened")
}

func openDispute(t *testing.T, env *testEnv) (requester, provider uuid.UUID, gigID uuid.UUID, disputeID uuid.UUID) {
	t.Helper()
	requester, provider, gig, project := env.activeProject(t)
	d, err := env.disputes.Raise(context.Background(), requester, RaiseDisputeInput{ProjectID: project.ID, Reason: "no-show"})
	require.NoError(t, err)
	return requester, provider, gig.ID, d.ID
}

func TestDispute_ResolveRefund(t *testing.T) {
	env := newTestEnv(t)
	requester, provider, gigID, disputeID := openDispute(t, env)
	operator := uuid.New()

	res, err := env.disputes.Resolve(context.Background(), disputeID, operator, valueobject.DisputeOutcomeRefund, nil, "провайдер не явился")
	require.NoError(t, err)
	assert.False(t, res.Released)
	assert.True(t, dec("100.00").Equal(res.Refund))

	hold := env.hold(gigID)
	assert.Equal(t, valueobject.HoldStatusRefunded, hold.Status)
	assert.True(t, dec("100.00").Equal(env.gateway.Refunded(hold.IntentID())))
	assert.True(t, env.balance(provider, "GBP").IsZero())
	assert.Equal(t, valueobject.GigStatusCompleted, env.gig(gigID).Status)

	d, err := env.disputes.Get(context.Background(), disputeID, requester, false)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusResolvedRefund, d.Status)
	require.NotNil(t, d.ResolvedBy)
	assert.Equal(t, operator, *d.ResolvedBy)

	_, err = env.disputes.Resolve(context.Background(), disputeID, operator, valueobject.DisputeOutcomeRelease, nil, "")
	assert.Equal(t, apperror.ErrCodeInvalidStateTransition, apperror.CodeOf(err))

	env.notifier.Wait()
	assert.Contains(t, env.push.events(requester), "dispute.resolved")
	assert.Contains(t, env.push.events(provider), "dispute.resolved")
}

func TestDispute_ResolveSplit(t *testing.T) {
	env := newTestEnv(t)
	_, provider, gigID, disputeID := openDispute(t, env)
	ratio := decimal.RequireFromString("0.5")

	res, err := env.disputes.Resolve(context.Background(), disputeID, uuid.New(), valueobject.DisputeOutcomeSplit, &ratio, "")
	require.NoError(t, err)
	assert.True(t, dec("44.00").Equal(res.Payout))
	assert.True(t, dec("6.00").Equal(res.Fee))
	assert.True(t, dec("50.00").Equal(res.Refund))

	hold := env.hold(gigID)
	assert.Equal(t, valueobject.HoldStatusSplit, hold.Status)
	assert.True(t, dec("50.00").Equal(env.gateway.Refunded(hold.IntentID())))
	assert.True(t, dec("44.00").Equal(env.balance(provider, "GBP")))
	require.Len(t, env.transactions(provider), 1)
	assert.Contains(t, string(env.transactions(provider)[0].Metadata), "split_ratio")
}

func TestDispute_ResolveRelease(t *testing.T) {
	env := newTestEnv(t)
	_, provider, gigID, disputeID := openDispute(t, env)

	res, err := env.disputes.Resolve(context.Background(), disputeID, uuid.New(), valueobject.DisputeOutcomeRelease, nil, "работа выполнена")
	require.NoError(t, err)
	assert.True(t, res.Released)
	assert.Equal(t, valueobject.HoldStatusReleased, env.hold(gigID).Status)
	assert.True(t, dec("88.00").Equal(env.balance(provider, "GBP")))
}

func TestDispute_ResolveValidatesRatio(t *testing.T) {
	env := newTestEnv(t)
	_, _, gigID, disputeID := openDispute(t, env)
	ctx := context.Background()

	_, err := env.disputes.Resolve(ctx, disputeID, uuid.New(), valueobject.DisputeOutcomeSplit, nil, "")
	assert.True(t, apperror.IsValidation(err))

	for _, r := range []string{"0", "1", "1.5", "-0.2"} {
		ratio := dec(r)
		_, err = env.disputes.Resolve(ctx, disputeID, uuid.New(), valueobject.DisputeOutcomeSplit, &ratio, "")
		assert.True(t, apperror.IsValidation(err), "ratio %s", r)
	}

	half := dec("0.5")
	_, err = env.disputes.Resolve(ctx, disputeID, uuid.New(), valueobject.DisputeOutcomeRefund, &half, "")
	assert.True(t, apperror.IsValidation(err))

	assert.Equal(t, valueobject.HoldStatusCaptured, env.hold(gigID).Status)
}

func TestDispute_DeclinedRefundKeepsDisputeOpen(t *testing.T) {
	env := newTestEnv(t)
	requester, _, gigID, disputeID := openDispute(t, env)
	env.gateway.FailNext("refund", payment.ErrDeclined)

	_, err := env.disputes.Resolve(context.Background(), disputeID, uuid.New(), valueobject.DisputeOutcomeRefund, nil, "")
	assert.Equal(t, apperror.ErrCodePaymentDeclined, apperror.CodeOf(err))
	assert.Equal(t, valueobject.HoldStatusCaptured, env.hold(gigID).Status)

	d, err := env.disputes.Get(context.Background(), disputeID, requester, false)
	require.NoError(t, err)
	assert.Equal(t, valueobject.DisputeStatusOpen, d.Status)
}

func TestDispute_AttachEvidence(t *testing.T) {
	env := newTestEnv(t)
	requester, _, _, disputeID := openDispute(t, env)
	ctx := context.Background()

	d, err := env.disputes.AttachEvidence(ctx, disputeID, requester, bytes.NewReader(pngHeader))
	require.NoError(t, err)
	require.Len(t, d.EvidenceURLs, 1)
	assert.True(t, strings.HasPrefix(d.EvidenceURLs[0], "/evidence/"))
	assert.True(t, strings.HasSuffix(d.EvidenceURLs[0], ".png"))

	_, err = env.disputes.AttachEvidence(ctx, disputeID, requester, strings.NewReader("just some text"))
	assert.True(t, apperror.IsValidation(err))

	_, err = env.disputes.AttachEvidence(ctx, disputeID, uuid.New(), bytes.NewReader(pngHeader))
	require.ErrorIs(t, err, apperror.ErrNotParty)

	_, err = env.disputes.Get(ctx, disputeID, uuid.New(), false)
	require.ErrorIs(t, err, apperror.ErrNotParty)
	_, err = env.disputes.Get(ctx, disputeID, uuid.New(), true)
	require.NoError(t, err)

	mine, err := env.disputes.ListMine(ctx, requester, 20, 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}
