package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/princinho/authgate/models"
	"github.com/princinho/authgate/store"
	"github.com/princinho/authgate/utils"
	"github.com/sirupsen/logrus"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

// Observer is notified after every identity operation with its outcome.
type Observer func(op string, err error)

type RegisterInput struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"password"`
}

// An empty Password is not a validation failure; it fails as invalid credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password"`
}

type ResetPasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword" validate:"password"`
}

var fieldMessages = map[string]string{
	"username":    "username is required",
	"email":       "enter a valid email address",
	"password":    "enter a password of 6 to 72 characters",
	"newPassword": "enter a new password of 6 to 72 characters",
}

// IdentityService implements the identity operations. It holds no identity
// state of its own; every check re-reads the store.
type IdentityService struct {
	users    store.CredentialStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	timeout  time.Duration
	log      *logrus.Entry
	validate *validator.Validate
	observe  Observer
	now      func() time.Time

	dummyHash string
}

type Option func(*IdentityService)

func WithObserver(o Observer) Option {
	return func(s *IdentityService) { s.observe = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *IdentityService) { s.now = now }
}

func NewIdentityService(users store.CredentialStore, hasher PasswordHasher, tokens TokenIssuer, timeout time.Duration, log *logrus.Entry, opts ...Option) *IdentityService {
	s := &IdentityService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		timeout:  timeout,
		log:      log,
		validate: newValidator(),
		observe:  func(string, error) {},
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	// Timing resistance for unknown emails on login.
	if hash, err := hasher.Hash("dummy-password-for-timing-only"); err == nil {
		s.dummyHash = hash
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(JSONFieldName)
	// bcrypt reads at most 72 bytes, so the bound is on bytes, not runes.
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		n := len(fl.Field().String())
		return n >= 6 && n <= utils.MaxPasswordBytes
	})
	return v
}

func (s *IdentityService) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return NewValidationError(verrs)
}

// JSONFieldName reports struct fields by their JSON key in validation errors.
func JSONFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// FieldMessage is the client-facing message for a rejected input field.
func FieldMessage(field string) string {
	if msg, ok := fieldMessages[field]; ok {
		return msg
	}
	return "invalid value"
}

// NewValidationError converts validator output. Field names must already be
// the JSON names.
func NewValidationError(verrs validator.ValidationErrors) ValidationError {
	ve := ValidationError{}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{Field: fe.Field(), Message: FieldMessage(fe.Field())})
	}
	return ve
}

func (s *IdentityService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// storeErr maps store failures onto the service taxonomy. notFound is what
// ErrNotFound becomes for this call site.
func (s *IdentityService) storeErr(op string, err error, notFound error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return notFound
	case errors.Is(err, store.ErrInvalidID):
		return ValidationError{Msg: "invalid user id"}
	case errors.Is(err, store.ErrUnavailable):
		s.log.WithError(err).WithField("op", op).Warn("store unavailable")
		return fmt.Errorf("%s: %w", op, ErrUnavailable)
	}
	if field, ok := store.IsDuplicate(err); ok {
		return ConflictError{Field: field}
	}
	s.log.WithError(err).WithField("op", op).Error("store failure")
	return fmt.Errorf("%s: %w", op, ErrInternal)
}

func (s *IdentityService) done(op string, err error) {
	s.observe(op, err)
}

// Register creates a non-admin identity and returns a session token for it.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (token string, err error) {
	defer func() { s.done("register", err) }()

	in.Username = utils.NormalizeUsername(in.Username)
	in.Email = utils.NormalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return "", err
	}

	if err := s.ensureFree(ctx, in.Email, in.Username); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.log.WithError(err).Error("hash password")
		return "", fmt.Errorf("register: %w", ErrInternal)
	}

	sctx, cancel := s.storeCtx(ctx)
	created, err := s.users.Create(sctx, &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      false,
		CreatedAt:    s.now(),
	})
	cancel()
	if err != nil {
		return "", s.storeErr("register", err, ErrInternal)
	}

	s.log.WithField("userId", created.ID).Info("user registered")
	return s.issue(created.ID)
}

func (s *IdentityService) ensureFree(ctx context.Context, email, username string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if _, err := s.users.FindByEmail(sctx, email); err == nil {
		return ConflictError{Field: "email"}
	} else if !errors.Is(err, store.ErrNotFound) {
		return s.storeErr("register", err, ErrInternal)
	}

	if _, err := s.users.FindByUsername(sctx, username); err == nil {
		return ConflictError{Field: "username"}
	} else if !errors.Is(err, store.ErrNotFound) {
		return s.storeErr("register", err, ErrInternal)
	}
	return nil
}

// Login exchanges an email and password for a session token. Unknown email
// and wrong password fail identically.
func (s *IdentityService) Login(ctx context.Context, in LoginInput) (token string, err error) {
	defer func() { s.done("login", err) }()

	in.Email = utils.NormalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return "", err
	}

	sctx, cancel := s.storeCtx(ctx)
	user, err := s.users.FindByEmail(sctx, in.Email)
	cancel()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if s.dummyHash != "" {
				_ = s.hasher.Verify(in.Password, s.dummyHash)
			}
			return "", ErrInvalidCredentials
		}
		return "", s.storeErr("login", err, ErrInvalidCredentials)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.issue(user.ID)
}

func (s *IdentityService) issue(userID string) (string, error) {
	token, err := s.tokens.Issue(userID)
	if err != nil {
		s.log.WithError(err).Error("issue token")
		return "", fmt.Errorf("issue token: %w", ErrInternal)
	}
	return token, nil
}

// GetSelf returns the caller's own identity.
func (s *IdentityService) GetSelf(ctx context.Context, callerID string) (user *models.User, err error) {
	defer func() { s.done("get_self", err) }()

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err = s.users.FindByID(sctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrInvalidID) {
			return nil, ErrNotFound
		}
		return nil, s.storeErr("get_self", err, ErrNotFound)
	}
	return user, nil
}

// requireAdmin re-reads the caller so a demotion takes effect immediately.
func (s *IdentityService) requireAdmin(ctx context.Context, op, callerID string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	caller, err := s.users.FindByID(sctx, callerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidID) {
			return ErrForbidden
		}
		return s.storeErr(op, err, ErrForbidden)
	}
	if !caller.IsAdmin {
		return ErrForbidden
	}
	return nil
}

// ListUsers returns every identity, oldest first. Admin only.
func (s *IdentityService) ListUsers(ctx context.Context, callerID string) (users []models.User, err error) {
	defer func() { s.done("list_users", err) }()

	if err := s.requireAdmin(ctx, "list_users", callerID); err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	users, err = s.users.List(sctx)
	if err != nil {
		return nil, s.storeErr("list_users", err, ErrInternal)
	}
	return users, nil
}

// ToggleAdmin flips targetID's admin flag. Admin only; callers may demote themselves.
func (s *IdentityService) ToggleAdmin(ctx context.Context, callerID, targetID string) (user *models.User, err error) {
	defer func() { s.done("toggle_admin", err) }()

	if err := s.requireAdmin(ctx, "toggle_admin", callerID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(targetID) == "" {
		return nil, ValidationError{Msg: "invalid user id"}
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err = s.users.ToggleAdmin(sctx, targetID)
	if err != nil {
		return nil, s.storeErr("toggle_admin", err, ErrNotFound)
	}
	s.log.WithFields(logrus.Fields{
		"callerId": callerID,
		"targetId": user.ID,
		"isAdmin":  user.IsAdmin,
	}).Info("admin flag toggled")
	return user, nil
}

// ResetPassword replaces the password of the identity owning in.Email after
// checking the current one. No session is required.
func (s *IdentityService) ResetPassword(ctx context.Context, in ResetPasswordInput) (err error) {
	defer func() { s.done("reset_password", err) }()

	in.Email = utils.NormalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return err
	}

	sctx, cancel := s.storeCtx(ctx)
	user, err := s.users.FindByEmail(sctx, in.Email)
	cancel()
	if err != nil {
		return s.storeErr("reset_password", err, ErrNotFound)
	}

	if !s.hasher.Verify(in.OldPassword, user.PasswordHash) {
		return ErrCurrentPassword
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		s.log.WithError(err).Error("hash password")
		return fmt.Errorf("reset_password: %w", ErrInternal)
	}

	sctx, cancel = s.storeCtx(ctx)
	defer cancel()
	if err := s.users.UpdatePasswordHash(sctx, user.ID, hash); err != nil {
		return s.storeErr("reset_password", err, ErrNotFound)
	}

	s.log.WithField("userId", user.ID).Info("password reset")
	return nil
}
