package account

import (
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("teacher not found")
	ErrUserNotFound    = errors.New("user-not-found")
	ErrWrongPassword   = errors.New("wrong-password")
	ErrEmailInUse      = errors.New("email-already-in-use")
	ErrInvalidEmail    = errors.New("invalid-email")
	ErrWeakPassword    = errors.New("weak-password")
	ErrLongPassword    = errors.New("password-too-long")
	ErrNameRequired    = errors.New("name-required")
	ErrUseGoogle       = errors.New("account-uses-google-sign-in")
	ErrGoogleDisabled  = errors.New("google-sign-in-disabled")
	ErrEmailUnverified = errors.New("google-email-not-verified")
	ErrSessionExpired  = errors.New("session-expired")
)

var messages = []struct {
	err error
	msg string
}{
	{ErrUserNotFound, "No account found with this email"},
	{ErrWrongPassword, "Incorrect password"},
	{ErrEmailInUse, "Email already registered"},
	{ErrInvalidEmail, "Invalid email address"},
	{ErrWeakPassword, "Password must be at least 6 characters"},
	{ErrLongPassword, "Password must be at most 72 bytes"},
	{ErrNameRequired, "Name is required"},
	{ErrUseGoogle, "This account uses Google sign-in"},
	{ErrGoogleDisabled, "Google sign-in is not available"},
	{ErrEmailUnverified, "Google account email is not verified"},
	{ErrSessionExpired, "Session expired. Please sign in again"},
	{ErrNotFound, "Account not found"},
}

// Provider errors arrive as opaque strings; these fragments pick the message.
var fragments = []struct {
	needle string
	msg    string
}{
	{"wrong-password", "Incorrect password"},
	{"invalid-credential", "Incorrect password"},
	{"user-not-found", "No account found with this email"},
	{"email-already-in-use", "Email already registered"},
	{"invalid-email", "Invalid email address"},
	{"weak-password", "Password must be at least 6 characters"},
	{"network", "Network error. Please try again"},
	{"timeout", "Network error. Please try again"},
	{"deadline exceeded", "Network error. Please try again"},
	{"connection refused", "Network error. Please try again"},
	{"token", "Session expired. Please sign in again"},
}

const fallbackMessage = "Something went wrong. Please try again"

// UserMessage turns an auth error into a short string fit for a sign-in form.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, m := range messages {
		if errors.Is(err, m.err) {
			return m.msg
		}
	}
	text := strings.ToLower(err.Error())
	for _, f := range fragments {
		if strings.Contains(text, f.needle) {
			return f.msg
		}
	}
	return fallbackMessage
}
