package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fieldops-system/internal/entities"
	apperrors "fieldops-system/pkg/errors"
)

type UserRepositoryInterface interface {
	FindByID(ctx context.Context, id int) (*entities.User, error)
	FindByLogin(ctx context.Context, login string) (*entities.User, string, error)
}

type UserRepository struct {
	storage *pgxpool.Pool
}

func NewUserRepository(storage *pgxpool.Pool) UserRepositoryInterface {
	return &UserRepository{storage: storage}
}

func (r *UserRepository) FindByID(ctx context.Context, id int) (*entities.User, error) {
	var user entities.User
	err := r.storage.QueryRow(ctx, `
		SELECT id, fio, COALESCE(login, ''), role, branch_id, created_at
		FROM users WHERE id = $1`, id,
	).Scan(&user.ID, &user.Fio, &user.Login, &user.Role, &user.BranchID, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("Пользователь %d не найден", id)
		}
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}
	return &user, nil
}

// FindByLogin возвращает пользователя и хеш пароля для аутентификации.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (*entities.User, string, error) {
	var user entities.User
	var passwordHash string
	err := r.storage.QueryRow(ctx, `
		SELECT id, fio, COALESCE(login, ''), role, branch_id, created_at, COALESCE(password_hash, '')
		FROM users WHERE login = $1`, login,
	).Scan(&user.ID, &user.Fio, &user.Login, &user.Role, &user.BranchID, &user.CreatedAt, &passwordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", apperrors.NewNotFoundError("Пользователь %s не найден", login)
		}
		return nil, "", fmt.Errorf("ошибка поиска пользователя: %w", err)
	}
	return &user, passwordHash, nil
}
