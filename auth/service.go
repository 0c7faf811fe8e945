package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Hardikdarji921/esp32-datalogger/errors"
)

// ErrCannotDeleteAdmin rejects deletion of admin accounts.
var ErrCannotDeleteAdmin = stderrors.New("cannot delete admin")

// RegisterRequest carries a new account application.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Company  string `json:"company"`
}

// ProfileUpdate overlays present fields onto the stored profile; nil
// fields keep their previous value.
type ProfileUpdate struct {
	FullName     *string `json:"full_name"`
	Email        *string `json:"email"`
	DOB          *string `json:"dob"`
	BirthPlace   *string `json:"birth_place"`
	MobileNumber *string `json:"mobile_number"`
	Address      *string `json:"address"`
}

// Service implements registration, login, profile management, password
// recovery, and admin account operations over a UserStore.
type Service struct {
	store  UserStore
	tokens *TokenManager
	mailer Mailer
	logger *slog.Logger

	resetTTL time.Duration
	now      func() time.Time
}

// ServiceOption configures an auth Service.
type ServiceOption func(*Service)

// WithMailer sets the password-reset mail transport.
func WithMailer(m Mailer) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.mailer = m
		}
	}
}

// WithResetTTL sets the reset-token lifetime.
func WithResetTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithServiceClock overrides the time source, for tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates an auth service.
func NewService(store UserStore, tokens *TokenManager, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		tokens:   tokens,
		logger:   slog.Default(),
		resetTTL: 15 * time.Minute,
		now:      time.Now,
	}
	s.mailer = LogMailer{Logger: s.logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a pending account. An admin must approve it before
// login succeeds.
func (s *Service) Register(ctx context.Context, req RegisterRequest) error {
	if req.Username == "" || req.Password == "" || req.FullName == "" || req.Email == "" {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Auth", "Register", "required fields missing")
	}

	users, err := s.store.List(ctx)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Username == req.Username || u.Email == req.Email {
			return errors.WrapInvalid(errors.ErrAccountExists, "Auth", "Register", "username or email taken")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.WrapFatal(err, "Auth", "Register", "hash password")
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		Role:         RoleUser,
		IsActive:     false,
		FullName:     req.FullName,
		Email:        req.Email,
		Company:      req.Company,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return err
	}

	s.logger.Info("account registered, pending approval", "username", req.Username)
	return nil
}

// Login checks the password for the account with the given email and
// returns a session token. Pending accounts are refused.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		// Same answer for unknown email and wrong password.
		return "", errors.WrapInvalid(errors.ErrInvalidCredentials, "Auth", "Login", "check credentials")
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return "", errors.WrapInvalid(errors.ErrInvalidCredentials, "Auth", "Login", "check credentials")
	}
	if !user.IsActive {
		return "", errors.WrapInvalid(errors.ErrAccountPending, "Auth", "Login", "check account state")
	}

	return s.tokens.Generate(user.ID, user.Role)
}

// Authenticate verifies a session token and confirms the account still
// exists. The returned principal carries the stored role, so a role
// change takes effect without reissuing tokens.
func (s *Service) Authenticate(ctx context.Context, token string) (Principal, error) {
	principal, err := s.tokens.Verify(token)
	if err != nil {
		return Principal{}, err
	}

	user, err := s.store.Get(ctx, principal.UserID)
	if err != nil {
		if errors.IsNotFound(err) {
			return Principal{}, errors.WrapInvalid(errors.ErrUnauthorized, "Auth", "Authenticate", "user no longer exists")
		}
		return Principal{}, err
	}

	return Principal{UserID: user.ID, Role: user.Role}, nil
}

// Profile returns the self-service view of an account.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.store.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return user.profile(), nil
}

// UpdateProfile overlays the present fields of update onto the account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (Profile, error) {
	user, err := s.store.Update(ctx, userID, func(u *User) error {
		apply := func(dst *string, src *string) {
			if src != nil {
				*dst = *src
			}
		}
		apply(&u.FullName, update.FullName)
		apply(&u.Email, update.Email)
		apply(&u.DOB, update.DOB)
		apply(&u.BirthPlace, update.BirthPlace)
		apply(&u.MobileNumber, update.MobileNumber)
		apply(&u.Address, update.Address)
		return nil
	})
	if err != nil {
		return Profile{}, err
	}
	return user.profile(), nil
}

// ChangePassword replaces the password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Auth", "ChangePassword", "passwords required")
	}

	_, err := s.store.Update(ctx, userID, func(u *User) error {
		if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(current)) != nil {
			return errors.WrapInvalid(errors.ErrInvalidCredentials, "Auth", "ChangePassword", "check current password")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
		if err != nil {
			return errors.WrapFatal(err, "Auth", "ChangePassword", "hash password")
		}
		u.PasswordHash = hash
		return nil
	})
	return err
}

// ForgotPassword issues a short-lived reset token and hands it to the
// mailer. Unknown emails are reported so the frontend can say so, as
// the original dashboard did.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.findByEmail(ctx, email)
	if err != nil {
		return errors.WrapInvalid(errors.ErrKeyNotFound, "Auth", "ForgotPassword", "email not registered")
	}

	token, err := urlsafeToken(32)
	if err != nil {
		return errors.WrapFatal(err, "Auth", "ForgotPassword", "generate reset token")
	}

	updated, err := s.store.Update(ctx, user.ID, func(u *User) error {
		u.ResetToken = token
		u.ResetTokenExpires = s.now().Add(s.resetTTL)
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.mailer.SendPasswordReset(ctx, updated, token); err != nil {
		return errors.WrapTransient(err, "Auth", "ForgotPassword", "send reset mail")
	}
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" || password == "" {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Auth", "ResetPassword", "token and password required")
	}

	users, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	for _, u := range users {
		if u.ResetToken != token {
			continue
		}
		if s.now().After(u.ResetTokenExpires) {
			return errors.WrapInvalid(errors.ErrTokenExpired, "Auth", "ResetPassword", "check token expiry")
		}

		_, err := s.store.Update(ctx, u.ID, func(stored *User) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return errors.WrapFatal(err, "Auth", "ResetPassword", "hash password")
			}
			stored.PasswordHash = hash
			stored.ResetToken = ""
			stored.ResetTokenExpires = time.Time{}
			return nil
		})
		return err
	}

	return errors.WrapInvalid(errors.ErrTokenExpired, "Auth", "ResetPassword", "unknown token")
}

// ListUsers returns every account for the admin view.
func (s *Service) ListUsers(ctx context.Context) ([]AccountSummary, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]AccountSummary, 0, len(users))
	for _, u := range users {
		out = append(out, u.summary())
	}
	return out, nil
}

// ApproveUser activates a pending account.
func (s *Service) ApproveUser(ctx context.Context, userID string) (AccountSummary, error) {
	user, err := s.store.Update(ctx, userID, func(u *User) error {
		u.IsActive = true
		return nil
	})
	if err != nil {
		return AccountSummary{}, err
	}
	return user.summary(), nil
}

// DeleteUser removes an account. Admin accounts cannot be deleted.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	user, err := s.store.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.Role == RoleAdmin {
		return errors.WrapInvalid(ErrCannotDeleteAdmin, "Auth", "DeleteUser", "check role")
	}
	return s.store.Delete(ctx, userID)
}

func (s *Service) findByEmail(ctx context.Context, email string) (User, error) {
	users, err := s.store.List(ctx)
	if err != nil {
		return User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, errors.WrapInvalid(errors.ErrKeyNotFound, "Auth", "findByEmail", "lookup "+email)
}

// urlsafeToken returns n random bytes base64url-encoded without
// padding, matching the original reset-token format.
func urlsafeToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
