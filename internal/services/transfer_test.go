package services

import (
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops-system/internal/dto"
	"fieldops-system/pkg/constants"
	apperrors "fieldops-system/pkg/errors"
)

func TestPause_PreviewDoesNotChangeOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	preview, err := env.transferSvc.PreviewPause(ctx, order.ID, dto.PausePreviewDTO{Remark: "Перерыв на обед"})
	require.NoError(t, err)
	assert.NotEmpty(t, preview.ConfirmationToken)
	assert.Equal(t, "Перерыв на обед", preview.Remark)

	current, err := env.orders.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusInProgress, current.Status)
	assert.Empty(t, env.history.forOrder(order.ID))
}

func TestPause_CommitUsesPreviewRemark(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	preview, err := env.transferSvc.PreviewPause(ctx, order.ID, dto.PausePreviewDTO{Remark: "Перерыв на обед"})
	require.NoError(t, err)

	updated, err := env.transferSvc.CommitPause(ctx, order.ID, dto.PauseCommitDTO{
		ConfirmationToken: preview.ConfirmationToken,
	})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusPaused, updated.Status)

	entries := env.history.forOrder(order.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "Перерыв на обед", entries[0].Remark)

	// Токен одноразовый.
	_, err = env.cache.Get(ctx, pauseTokenKey(order.ID))
	assert.ErrorIs(t, err, redis.Nil)
}

func TestPause_CommitWithoutPreviewConflicts(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	_, err := env.transferSvc.CommitPause(ctx, order.ID, dto.PauseCommitDTO{ConfirmationToken: "nope"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestPause_CommitWrongTokenRejected(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	_, err := env.transferSvc.PreviewPause(ctx, order.ID, dto.PausePreviewDTO{Remark: "Перерыв"})
	require.NoError(t, err)

	_, err = env.transferSvc.CommitPause(ctx, order.ID, dto.PauseCommitDTO{ConfirmationToken: "другой"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestPause_CommitByAnotherActorRejected(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)

	preview, err := env.transferSvc.PreviewPause(
		ctxWithActor(2, constants.RoleTechnician, 1), order.ID, dto.PausePreviewDTO{Remark: "Перерыв"})
	require.NoError(t, err)

	_, err = env.transferSvc.CommitPause(
		ctxWithActor(3, constants.RoleTechnician, 1), order.ID,
		dto.PauseCommitDTO{ConfirmationToken: preview.ConfirmationToken})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestPause_PreviewBlockedByDraftBill(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)
	env.inventory.addGeneric(2, "Кабель UTP", 5, 50)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	_, err := env.billingSvc.CreateBill(ctx, order.ID, dto.CreateBillDTO{
		Items: []dto.BillLineDTO{{ItemType: constants.ItemTypeGeneric, Name: "Кабель UTP", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = env.transferSvc.PreviewPause(ctx, order.ID, dto.PausePreviewDTO{Remark: "Перерыв"})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestRequestStop_MovesOrderToTransferring(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	updated, err := env.transferSvc.RequestStop(ctx, order.ID, dto.StopRequestDTO{Remark: "Не хватает оборудования"})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusTransferring, updated.Status)
}

func TestPendingTransfer_ReturnsRequestDetails(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)

	_, err := env.transferSvc.RequestStop(
		ctxWithActor(2, constants.RoleTechnician, 1), order.ID,
		dto.StopRequestDTO{Remark: "Не хватает оборудования"})
	require.NoError(t, err)

	pending, err := env.transferSvc.PendingTransfer(ctxWithActor(1, constants.RoleManager, 1), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, pending.OrderID)
	assert.Equal(t, 2, pending.RequesterID)
	assert.Equal(t, "Не хватает оборудования", pending.Remark)
	assert.NotEmpty(t, pending.RequestedAt)
}

func TestPendingTransfer_NoneOpen(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)

	_, err := env.transferSvc.PendingTransfer(ctxWithActor(1, constants.RoleManager, 1), order.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound))
}

func TestApproveTransfer_ReassignsOrder(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusTransferring)

	updated, err := env.transferSvc.ApproveTransfer(
		ctxWithActor(1, constants.RoleManager, 1), order.ID,
		dto.TransferDecisionDTO{NewTechnicianID: 3})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusTransferred, updated.Status)
	assert.Equal(t, 3, updated.TechnicianID)

	stored, err := env.orders.FindOrder(ctxWithActor(1, constants.RoleManager, 1), order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.TechnicianID)
	assert.Equal(t, constants.StatusTransferred, stored.Status)
}

func TestApproveTransfer_RequiresNewTechnician(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusTransferring)

	_, err := env.transferSvc.ApproveTransfer(
		ctxWithActor(1, constants.RoleManager, 1), order.ID, dto.TransferDecisionDTO{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestApproveTransfer_NewAssigneeMustBeTechnician(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusTransferring)

	_, err := env.transferSvc.ApproveTransfer(
		ctxWithActor(1, constants.RoleManager, 1), order.ID,
		dto.TransferDecisionDTO{NewTechnicianID: 1})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestApproveTransfer_ManagerOnly(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusTransferring)

	_, err := env.transferSvc.ApproveTransfer(
		ctxWithActor(2, constants.RoleTechnician, 1), order.ID,
		dto.TransferDecisionDTO{NewTechnicianID: 3})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestRejectTransfer_ReturnsOrderToWork(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusTransferring)

	updated, err := env.transferSvc.RejectTransfer(
		ctxWithActor(1, constants.RoleManager, 1), order.ID, dto.TransferDecisionDTO{})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusInProgress, updated.Status)

	entries := env.history.forOrder(order.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "Запрос на передачу отклонен", entries[0].Remark)
}

func TestRejectTransfer_BlockedWhenTechnicianBusy(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusTransferring)
	env.addOrder(2, constants.StatusInProgress)

	_, err := env.transferSvc.RejectTransfer(
		ctxWithActor(1, constants.RoleManager, 1), order.ID, dto.TransferDecisionDTO{})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}
