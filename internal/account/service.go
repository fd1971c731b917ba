package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"tuition/internal/auth"
	"tuition/internal/metrics"
)

const (
	minPasswordLen = 6
	// bcrypt refuses longer input.
	maxPasswordLen = 72
)

// Session is what a successful sign-in hands back to the client.
type Session struct {
	Teacher Teacher        `json:"teacher"`
	Tokens  auth.TokenPair `json:"tokens"`
}

// Service signs teachers in and keeps their profile in step with their session.
type Service struct {
	store  Store
	signer *auth.Signer
	google GoogleVerifier
	log    *slog.Logger
	now    func() time.Time
}

// NewService creates the account service. google may be nil to disable Google sign-in.
func NewService(store Store, signer *auth.Signer, google GoogleVerifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, signer: signer, google: google, log: logger, now: time.Now}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (s *Service) startSession(ctx context.Context, t Teacher) (Session, error) {
	pair, err := s.signer.Issue(auth.Identity{TeacherID: t.ID, Email: t.Email, Name: t.Name})
	if err != nil {
		return Session{}, fmt.Errorf("issue tokens: %w", err)
	}
	if err := s.store.SaveRefreshToken(ctx, t.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return Session{}, fmt.Errorf("save refresh token: %w", err)
	}
	return Session{Teacher: t, Tokens: pair}, nil
}

// SignUp creates a password account.
func (s *Service) SignUp(ctx context.Context, name, email, password string) (Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Session{}, ErrNameRequired
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	if len(password) < minPasswordLen {
		return Session{}, ErrWeakPassword
	}
	if len(password) > maxPasswordLen {
		return Session{}, ErrLongPassword
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, err
	}
	t, err := s.store.CreateTeacher(ctx, Teacher{Name: name, Email: email}, Credentials{PasswordHash: hash})
	if err != nil {
		return Session{}, err
	}
	s.log.Info("teacher signed up", "teacher_id", t.ID, "method", "password")
	return s.startSession(ctx, t)
}

// Login signs in with email and password.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Session{}, err
	}
	t, cred, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		metrics.SignIns.WithLabelValues("password", "unknown_user").Inc()
		return Session{}, ErrUserNotFound
	}
	if err != nil {
		return Session{}, err
	}
	if cred.PasswordHash == "" {
		return Session{}, ErrUseGoogle
	}
	if !auth.CheckPassword(cred.PasswordHash, password) {
		metrics.SignIns.WithLabelValues("password", "wrong_password").Inc()
		return Session{}, ErrWrongPassword
	}
	metrics.SignIns.WithLabelValues("password", "ok").Inc()
	return s.startSession(ctx, t)
}

// GoogleSignIn verifies a Google ID token and signs the owner in, creating or
// linking a profile as needed.
func (s *Service) GoogleSignIn(ctx context.Context, idToken string) (Session, error) {
	if s.google == nil {
		return Session{}, ErrGoogleDisabled
	}
	id, err := s.google.Verify(ctx, idToken)
	if err != nil {
		metrics.SignIns.WithLabelValues("google", "invalid_token").Inc()
		return Session{}, err
	}

	t, err := s.store.FindByGoogleSub(ctx, id.Subject)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		t, err = s.linkOrCreate(ctx, id)
		if err != nil {
			return Session{}, err
		}
	default:
		return Session{}, err
	}

	if t.PhotoURL == "" && id.Picture != "" {
		t.PhotoURL = id.Picture
		if err := s.store.UpdateTeacher(ctx, t); err != nil {
			s.log.Warn("could not store google photo", "teacher_id", t.ID, "error", err)
		}
	}
	metrics.SignIns.WithLabelValues("google", "ok").Inc()
	return s.startSession(ctx, t)
}

func (s *Service) linkOrCreate(ctx context.Context, id GoogleIdentity) (Teacher, error) {
	email, err := normalizeEmail(id.Email)
	if err != nil {
		return Teacher{}, err
	}
	if !id.EmailVerified {
		return Teacher{}, ErrEmailUnverified
	}
	t, _, err := s.store.FindByEmail(ctx, email)
	if err == nil {
		if err := s.store.LinkGoogle(ctx, t.ID, id.Subject); err != nil {
			return Teacher{}, err
		}
		s.log.Info("google account linked", "teacher_id", t.ID)
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Teacher{}, err
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = email[:strings.IndexByte(email, '@')]
	}
	t, err = s.store.CreateTeacher(ctx, Teacher{Name: name, Email: email, PhotoURL: id.Picture}, Credentials{GoogleSub: id.Subject})
	if err != nil {
		return Teacher{}, err
	}
	s.log.Info("teacher signed up", "teacher_id", t.ID, "method", "google")
	return t, nil
}

// Refresh rotates a refresh token into a new session. Each refresh token works once.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	if _, err := s.signer.Parse(refreshToken, auth.TypeRefresh); err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	teacherID, err := s.store.ConsumeRefreshToken(ctx, refreshToken, s.now())
	if err != nil {
		return Session{}, err
	}
	t, err := s.store.GetTeacher(ctx, teacherID)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrSessionExpired
	}
	if err != nil {
		return Session{}, err
	}
	return s.startSession(ctx, t)
}

// Logout revokes the refresh token. The profile stays.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.store.RevokeRefreshToken(ctx, refreshToken)
}

// Reconcile returns the stored profile for a session. The stored profile wins
// over the token; when it has gone missing it is rebuilt from the token claims.
func (s *Service) Reconcile(ctx context.Context, claims auth.Claims) (Teacher, error) {
	t, err := s.store.GetTeacher(ctx, claims.Subject)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Teacher{}, err
	}
	if claims.Email == "" {
		return Teacher{}, ErrSessionExpired
	}
	name := claims.Name
	if name == "" {
		name = claims.Email
	}
	t, err = s.store.CreateTeacher(ctx, Teacher{ID: claims.Subject, Name: name, Email: claims.Email}, Credentials{})
	if errors.Is(err, ErrEmailInUse) {
		return Teacher{}, ErrSessionExpired
	}
	if err != nil {
		return Teacher{}, err
	}
	s.log.Warn("profile rebuilt from session", "teacher_id", t.ID)
	return t, nil
}

// UpdateProfile changes the display name.
func (s *Service) UpdateProfile(ctx context.Context, teacherID, name string) (Teacher, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Teacher{}, ErrNameRequired
	}
	t, err := s.store.GetTeacher(ctx, teacherID)
	if err != nil {
		return Teacher{}, err
	}
	t.Name = name
	if err := s.store.UpdateTeacher(ctx, t); err != nil {
		return Teacher{}, err
	}
	return t, nil
}

// SetPhoto stores the URL of an uploaded profile photo.
func (s *Service) SetPhoto(ctx context.Context, teacherID, url string) (Teacher, error) {
	t, err := s.store.GetTeacher(ctx, teacherID)
	if err != nil {
		return Teacher{}, err
	}
	t.PhotoURL = url
	if err := s.store.UpdateTeacher(ctx, t); err != nil {
		return Teacher{}, err
	}
	return t, nil
}
