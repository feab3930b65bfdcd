package utils

import (
	"context"

	"fieldops-system/pkg/contextkeys"
	apperrors "fieldops-system/pkg/errors"
)

// Actor — идентичность, которую auth-middleware кладет в контекст запроса.
// Ядро доверяет этой идентичности и проверяет владение нарядом против неё.
type Actor struct {
	UserID   int
	Role     string
	BranchID int
}

func GetUserIDFromCtx(ctx context.Context) (int, error) {
	userID, ok := ctx.Value(contextkeys.UserIDKey).(int)
	if !ok || userID == 0 {
		return 0, apperrors.ErrActorNotFoundInContext
	}
	return userID, nil
}

func GetActorFromCtx(ctx context.Context) (Actor, error) {
	userID, err := GetUserIDFromCtx(ctx)
	if err != nil {
		return Actor{}, err
	}
	role, _ := ctx.Value(contextkeys.UserRoleKey).(string)
	branchID, _ := ctx.Value(contextkeys.BranchIDKey).(int)
	return Actor{UserID: userID, Role: role, BranchID: branchID}, nil
}
