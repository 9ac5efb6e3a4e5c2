package profile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/dashboard/domain"
	"github.com/fastygo/dashboard/repository"
	"github.com/fastygo/dashboard/usecase"
)

const maxPreferenceKeys = 64

type UseCase struct {
	users  repository.UserRepository
	buffer usecase.WriteBuffer
	logger *zap.Logger
}

func New(users repository.UserRepository, buffer usecase.WriteBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		buffer: buffer,
		logger: logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, email string) (*domain.User, error) {
	return uc.users.FindByEmail(ctx, email)
}

// UpdatePreferences merges prefs into the stored preferences. A nil value removes the key.
func (uc *UseCase) UpdatePreferences(ctx context.Context, email string, prefs map[string]any) (*domain.User, error) {
	if len(prefs) == 0 {
		return nil, domain.ErrInvalidPayload
	}

	user, err := uc.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	user.MergePreferences(prefs)
	if len(user.Preferences) > maxPreferenceKeys {
		return nil, domain.NewError(domain.ErrCodeInvalid, fmt.Sprintf("at most %d preferences are allowed", maxPreferenceKeys))
	}

	if err := uc.users.Update(ctx, user); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) || uc.buffer == nil {
			return nil, err
		}
		if bufErr := uc.buffer.BufferPreferences(ctx, &domain.PreferenceChanges{Email: user.Email, Changes: prefs}); bufErr != nil {
			uc.logger.Error("failed to buffer profile update", zap.Error(bufErr))
			return nil, err
		}
		uc.logger.Warn("profile update buffered due to repository error", zap.Error(err))
	}
	return user, nil
}

func (uc *UseCase) ListUsers(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	return uc.users.List(ctx, filter)
}

// SetRole changes the stored role. Self-demotion is rejected so the last
// admin cannot lock themselves out by accident.
func (uc *UseCase) SetRole(ctx context.Context, actor, email string, role domain.Role) (*domain.User, error) {
	if role == "" || role == domain.RoleAnonymous {
		return nil, domain.NewError(domain.ErrCodeInvalid, "role must be a non-anonymous role")
	}
	if actor != "" && domain.NormalizeEmail(actor) == domain.NormalizeEmail(email) && role != domain.RoleAdmin {
		return nil, domain.NewError(domain.ErrCodeForbidden, "admins cannot demote themselves")
	}

	user, err := uc.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}

	previous := user.Role
	user.Role = role
	if err := uc.users.Update(ctx, user); err != nil {
		return nil, err
	}
	uc.logger.Info("user_role_changed",
		zap.String("actor", actor),
		zap.String("email", email),
		zap.String("from", previous.String()),
		zap.String("to", role.String()))
	return user, nil
}
