package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

// UserStore captures the persistence operations needed by the user service.
type UserStore interface {
	CreateUser(ctx context.Context, creds persistence.UserCredentials) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserService manages worker accounts. Mutations require an administrator
// principal; listing is open to any authenticated user so schedules can name
// their subjects.
type UserService struct {
	users       UserStore
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService constructs a user service with the provided dependencies.
func NewUserService(users UserStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input, hashes the initial password, and persists the
// account.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	vErr := validateUserInput(params.Input, true)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	hash, hashErr := CreatePasswordHash(params.Input.Password, DefaultArgon2idParams)
	if hashErr != nil {
		err = hashErr
		return
	}

	now := s.now()
	record := persistence.UserCredentials{
		User: persistence.User{
			ID:          s.idGenerator(),
			Email:       strings.ToLower(strings.TrimSpace(params.Input.Email)),
			DisplayName: strings.TrimSpace(params.Input.DisplayName),
			IsAdmin:     params.Input.IsAdmin,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: hash,
	}

	if err = s.users.CreateUser(ctx, record); err != nil {
		err = mapUserStoreError(err)
		return
	}

	user = toUser(record.User)
	return
}

// UpdateUser applies profile changes for administrators. Credentials are not
// touched here.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil || s.users == nil {
		err = fmt.Errorf("user store not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser", "principal_id", params.Principal.UserID, "user_id", params.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	if !params.Principal.IsAdmin {
		err = ErrUnauthorized
		return
	}

	existing, getErr := s.users.GetUser(ctx, params.UserID)
	if getErr != nil {
		err = mapUserStoreError(getErr)
		return
	}

	vErr := validateUserInput(params.Input, false)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Email = strings.ToLower(strings.TrimSpace(params.Input.Email))
	existing.DisplayName = strings.TrimSpace(params.Input.DisplayName)
	existing.IsAdmin = params.Input.IsAdmin
	existing.UpdatedAt = s.now()

	if err = s.users.UpdateUser(ctx, existing); err != nil {
		err = mapUserStoreError(err)
		return
	}

	user = toUser(existing)
	return
}

// DeleteUser removes an account when requested by an administrator. Accounts
// referenced by assignment or exception history cannot be deleted.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil || s.users == nil {
		return fmt.Errorf("user store not configured")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "DeleteUser", "principal_id", principal.UserID, "user_id", userID)
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		err = mapUserStoreError(err)
		logger.ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "user deleted")
	return nil
}

// ListUsers returns all accounts for any authenticated principal.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil || s.users == nil {
		return nil, nil
	}

	records, err := s.users.ListUsers(ctx)
	if err != nil {
		s.loggerWith(ctx, "ListUsers", "principal_id", principal.UserID).
			ErrorContext(ctx, "failed to list users", "error", err, "error_kind", ErrorKind(err))
		return nil, err
	}

	users := make([]User, len(records))
	for i, record := range records {
		users[i] = toUser(record)
	}
	return users, nil
}

func validateUserInput(input UserInput, requirePassword bool) *ValidationError {
	vErr := &ValidationError{}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		vErr.add("email", "email is invalid")
	}

	if strings.TrimSpace(input.DisplayName) == "" {
		vErr.add("display_name", "display name is required")
	}

	if requirePassword && len(input.Password) < 8 {
		vErr.add("password", "password must be at least 8 characters")
	}

	return vErr
}

func mapUserStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("user_id", "user is referenced by schedule history")
		return vErr
	case errors.Is(err, persistence.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
