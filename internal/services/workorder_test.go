package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/events"
	"fieldops-system/pkg/constants"
	apperrors "fieldops-system/pkg/errors"
	"fieldops-system/pkg/eventbus"
)

func TestCreateOrder_OnlyManager(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	_, err := env.orderSvc.CreateOrder(ctx, dto.CreateWorkOrderDTO{
		CustomerID: 10, ProjectID: 100,
		ProjectCategory: constants.CategoryNewInstallation,
		TechnicianID:    2, CustomerName: "Клиент",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestCreateOrder_RepairRequiresOriginalTechnician(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxWithActor(1, constants.RoleManager, 1)

	_, err := env.orderSvc.CreateOrder(ctx, dto.CreateWorkOrderDTO{
		CustomerID: 10, ProjectID: 100,
		ProjectCategory: constants.CategoryRepair,
		TechnicianID:    2, CustomerName: "Клиент",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestCreateOrder_FirstHistoryEntryIsManagerComment(t *testing.T) {
	env := newTestEnv(t)
	ctx := ctxWithActor(1, constants.RoleManager, 1)

	orderID, err := env.orderSvc.CreateOrder(ctx, dto.CreateWorkOrderDTO{
		CustomerID: 10, ProjectID: 100,
		ProjectCategory: constants.CategoryNewInstallation,
		TechnicianID:    2,
		Instructions:    "Взять лестницу",
		CustomerName:    "Клиент",
	})
	require.NoError(t, err)

	entries := env.history.forOrder(orderID)
	require.Len(t, entries, 1)
	assert.Equal(t, constants.StatusAssigned, entries[0].Status)
	assert.Equal(t, "Взять лестницу", entries[0].Remark)
	assert.Equal(t, 1, entries[0].UpdatedBy)
}

func TestTransition_StartProject(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusAssigned)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	updated, err := env.orderSvc.Transition(ctx, order.ID, dto.TransitionDTO{
		TargetStatus: string(constants.StatusInProgress),
	})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusInProgress, updated.Status)

	entries := env.history.forOrder(order.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, constants.StatusInProgress, entries[0].Status)
	assert.Equal(t, "Status changed to in-progress", entries[0].Remark)
}

func TestTransition_SingleActiveProjectPerTechnician(t *testing.T) {
	env := newTestEnv(t)
	env.addOrder(2, constants.StatusInProgress)
	second := env.addOrder(2, constants.StatusAssigned)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	_, err := env.orderSvc.Transition(ctx, second.ID, dto.TransitionDTO{
		TargetStatus: string(constants.StatusInProgress),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	stored, _ := env.orders.FindOrder(context.Background(), second.ID)
	assert.Equal(t, constants.StatusAssigned, stored.Status)
}

func TestTransition_IllegalTransitionRejected(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusPaused)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	_, err := env.orderSvc.Transition(ctx, order.ID, dto.TransitionDTO{
		TargetStatus: string(constants.StatusTransferring),
		Remark:       "не хватает оборудования",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	assert.Empty(t, env.history.forOrder(order.ID))
}

func TestTransition_PauseRequiresRemark(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	preview, err := env.transferSvc.PreviewPause(ctx, order.ID, dto.PausePreviewDTO{})
	require.NoError(t, err)

	_, err = env.transferSvc.CommitPause(ctx, order.ID, dto.PauseCommitDTO{
		ConfirmationToken: preview.ConfirmationToken,
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestTransition_DirectPauseRejected(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	// Пауза доступна только через preview/commit с токеном подтверждения.
	_, err := env.orderSvc.Transition(ctx, order.ID, dto.TransitionDTO{
		TargetStatus: string(constants.StatusPaused),
		Remark:       "обед",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))

	current, err := env.orders.FindOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusInProgress, current.Status)
	assert.Empty(t, env.history.forOrder(order.ID))
}

func TestTransition_PendingApprovalNotRequestable(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusInProgress)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	_, err := env.orderSvc.Transition(ctx, order.ID, dto.TransitionDTO{
		TargetStatus: string(constants.StatusPendingApproval),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

func TestTransition_OnlyAssigneeActs(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusAssigned)
	ctx := ctxWithActor(3, constants.RoleTechnician, 1)

	_, err := env.orderSvc.Transition(ctx, order.ID, dto.TransitionDTO{
		TargetStatus: string(constants.StatusInProgress),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))
}

func TestTransition_CompletedOnlyByManager(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusPendingApproval)

	_, err := env.orderSvc.Transition(ctxWithActor(2, constants.RoleTechnician, 1), order.ID, dto.TransitionDTO{
		TargetStatus: string(constants.StatusCompleted),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	updated, err := env.orderSvc.Transition(ctxWithActor(1, constants.RoleManager, 1), order.ID, dto.TransitionDTO{
		TargetStatus: string(constants.StatusCompleted),
		Remark:       "Работа принята",
	})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusCompleted, updated.Status)
}

func TestTransition_TerminalStatusIsFinal(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusCompleted)
	ctx := ctxWithActor(1, constants.RoleManager, 1)

	_, err := env.orderSvc.Transition(ctx, order.ID, dto.TransitionDTO{
		TargetStatus: string(constants.StatusInProgress),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindConflict))
}

// Событие project.started возникает только на первом старте assigned →
// in-progress, но не на возобновлении после паузы.
func TestProjectStartedEmittedOnceOnFirstStart(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusAssigned)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	started := make(chan events.ProjectStartedEvent, 4)
	env.bus.Subscribe("project.started", func(ctx context.Context, event eventbus.Event) error {
		if e, ok := event.(events.ProjectStartedEvent); ok {
			started <- e
		}
		return nil
	})

	_, err := env.orderSvc.Transition(ctx, order.ID, dto.TransitionDTO{TargetStatus: string(constants.StatusInProgress)})
	require.NoError(t, err)

	select {
	case e := <-started:
		assert.Equal(t, order.ID, e.OrderID)
	case <-time.After(time.Second):
		t.Fatal("ожидалось событие project.started")
	}

	preview, err := env.transferSvc.PreviewPause(ctx, order.ID, dto.PausePreviewDTO{Remark: "обед"})
	require.NoError(t, err)
	_, err = env.transferSvc.CommitPause(ctx, order.ID, dto.PauseCommitDTO{ConfirmationToken: preview.ConfirmationToken})
	require.NoError(t, err)
	_, err = env.orderSvc.Transition(ctx, order.ID, dto.TransitionDTO{TargetStatus: string(constants.StatusInProgress)})
	require.NoError(t, err)

	select {
	case <-started:
		t.Fatal("возобновление после паузы не должно публиковать project.started")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestProjectStartedCarriesOriginalTechnicianForRepair(t *testing.T) {
	env := newTestEnv(t)
	original := 3
	order := env.orders.add(entitiesWorkOrderRepair(2, original))
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	started := make(chan events.ProjectStartedEvent, 1)
	env.bus.Subscribe("project.started", func(ctx context.Context, event eventbus.Event) error {
		if e, ok := event.(events.ProjectStartedEvent); ok {
			started <- e
		}
		return nil
	})

	_, err := env.orderSvc.Transition(ctx, order.ID, dto.TransitionDTO{TargetStatus: string(constants.StatusInProgress)})
	require.NoError(t, err)

	select {
	case e := <-started:
		assert.Equal(t, constants.CategoryRepair, e.ProjectCategory)
		assert.Equal(t, original, e.OriginalTechnicianID)
	case <-time.After(time.Second):
		t.Fatal("ожидалось событие project.started")
	}
}

func TestTransition_TransferDecisionIsManagerOnly(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusTransferring)

	// Сам заявитель отозвать запрос передачи не может.
	_, err := env.orderSvc.Transition(
		ctxWithActor(2, constants.RoleTechnician, 1), order.ID,
		dto.TransitionDTO{TargetStatus: string(constants.StatusInProgress)})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	// Посторонний техник — тем более.
	_, err = env.orderSvc.Transition(
		ctxWithActor(3, constants.RoleTechnician, 1), order.ID,
		dto.TransitionDTO{TargetStatus: string(constants.StatusInProgress)})
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuthorization))

	current, err := env.orders.FindOrder(ctxWithActor(1, constants.RoleManager, 1), order.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.StatusTransferring, current.Status)

	updated, err := env.orderSvc.Transition(
		ctxWithActor(1, constants.RoleManager, 1), order.ID,
		dto.TransitionDTO{TargetStatus: string(constants.StatusInProgress), Remark: "Запрос отклонен"})
	require.NoError(t, err)
	assert.Equal(t, constants.StatusInProgress, updated.Status)
}

func TestGetMyOrders_ServedFromCacheUntilInvalidation(t *testing.T) {
	env := newTestEnv(t)
	order := env.addOrder(2, constants.StatusAssigned)
	ctx := ctxWithActor(2, constants.RoleTechnician, 1)

	list, err := env.orderSvc.GetMyOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, order.ID, list[0].ID)

	// Новый наряд до инвалидации кешом не виден.
	env.addOrder(2, constants.StatusAssigned)
	stale, err := env.orderSvc.GetMyOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, stale, 1)

	env.snapshotSvc.InvalidateOrderList(ctx, 2)
	fresh, err := env.orderSvc.GetMyOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}
