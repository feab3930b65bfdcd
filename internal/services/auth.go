package services

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"fieldops-system/internal/dto"
	"fieldops-system/internal/repositories"
	apperrors "fieldops-system/pkg/errors"
	"fieldops-system/pkg/service"
)

type AuthServiceInterface interface {
	Login(ctx context.Context, data dto.LoginDTO) (*dto.TokenResponseDTO, error)
	Refresh(ctx context.Context, data dto.RefreshTokenDTO) (*dto.TokenResponseDTO, error)
}

type AuthService struct {
	userRepo   repositories.UserRepositoryInterface
	jwtService service.JWTService
	logger     *zap.Logger
}

func NewAuthService(userRepo repositories.UserRepositoryInterface, jwtService service.JWTService, logger *zap.Logger) AuthServiceInterface {
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
		logger:     logger,
	}
}

func (s *AuthService) Login(ctx context.Context, data dto.LoginDTO) (*dto.TokenResponseDTO, error) {
	user, passwordHash, err := s.userRepo.FindByLogin(ctx, data.Login)
	if err != nil {
		// Не раскрываем, существует ли логин.
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.NewAuthorizationError("Неверный логин или пароль")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(data.Password)); err != nil {
		s.logger.Warn("Неудачная попытка входа", zap.String("login", data.Login))
		return nil, apperrors.NewAuthorizationError("Неверный логин или пароль")
	}

	accessToken, refreshToken, err := s.jwtService.GenerateTokens(user.ID, user.Role, user.BranchID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Пользователь вошел в систему",
		zap.Int("user_id", user.ID), zap.String("role", user.Role))
	return &dto.TokenResponseDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		Fio:          user.Fio,
		Role:         user.Role,
		BranchID:     user.BranchID,
	}, nil
}

func (s *AuthService) Refresh(ctx context.Context, data dto.RefreshTokenDTO) (*dto.TokenResponseDTO, error) {
	claims, err := s.jwtService.ValidateToken(data.RefreshToken)
	if err != nil {
		return nil, apperrors.NewAuthorizationError("Недействительный refresh-токен")
	}
	if !claims.IsRefreshToken {
		return nil, apperrors.NewAuthorizationError("Ожидался refresh-токен")
	}

	// Пользователь перечитывается: роль и филиал могли измениться.
	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	accessToken, refreshToken, err := s.jwtService.GenerateTokens(user.ID, user.Role, user.BranchID)
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponseDTO{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		Fio:          user.Fio,
		Role:         user.Role,
		BranchID:     user.BranchID,
	}, nil
}
