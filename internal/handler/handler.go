package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tuition/internal/account"
	"tuition/internal/auth"
	"tuition/internal/cloudinary"
	"tuition/internal/tuition"
)

// PhotoUploader stores profile photos; *cloudinary.Client satisfies it.
type PhotoUploader interface {
	UploadBytes(ctx context.Context, data []byte, filename, publicID string) (*cloudinary.UploadResult, error)
	UploadBase64(ctx context.Context, data, publicID string) (*cloudinary.UploadResult, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

type Handler struct {
	accounts *account.Service
	tuition  *tuition.Service
	signer   *auth.Signer
	photos   PhotoUploader // nil if Cloudinary is not configured
	checks   map[string]HealthCheck
	log      *slog.Logger
}

func New(accounts *account.Service, svc *tuition.Service, signer *auth.Signer, photos PhotoUploader, checks map[string]HealthCheck, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{accounts: accounts, tuition: svc, signer: signer, photos: photos, checks: checks, log: logger}
}

// Register mounts every route on r. Extra middleware runs on the /v1 group
// before authentication.
func (h *Handler) Register(r gin.IRouter, v1Middleware ...gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1", v1Middleware...)

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/signup", h.SignUp)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/google", h.GoogleSignIn)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
	}

	api := v1.Group("", auth.TeacherAuth(h.signer))
	{
		api.GET("/me", h.Me)
		api.PUT("/me", h.UpdateMe)
		api.POST("/me/photo", h.UploadPhoto)

		api.GET("/dashboard", h.Dashboard)

		api.GET("/batches", h.ListBatches)
		api.POST("/batches", h.CreateBatch)
		api.GET("/batches/:id", h.GetBatch)
		api.PUT("/batches/:id", h.UpdateBatch)
		api.DELETE("/batches/:id", h.DeleteBatch)
		api.GET("/batches/:id/students", h.ListStudents)
		api.POST("/batches/:id/students", h.CreateStudent)
		api.GET("/batches/:id/fees", h.MonthView)
		api.POST("/batches/:id/reminders", h.SendReminders)

		api.GET("/students/:id", h.GetStudent)
		api.PUT("/students/:id", h.UpdateStudent)
		api.DELETE("/students/:id", h.DeleteStudent)
		api.GET("/students/:id/fees", h.FeeHistory)
		api.PUT("/students/:id/fees/:month", h.SetFee)

		api.GET("/reminders", h.ListReminders)
	}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Errors ----------

// fail writes the HTTP form of err. Unknown errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, tuition.ErrNotFound), errors.Is(err, account.ErrNotFound):
		return http.StatusNotFound, "Not found"
	case errors.Is(err, tuition.ErrNothingToRemind):
		return http.StatusConflict, tuition.ErrNothingToRemind.Error()
	case tuition.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, account.ErrWrongPassword), errors.Is(err, account.ErrUserNotFound), errors.Is(err, account.ErrSessionExpired):
		return http.StatusUnauthorized, account.UserMessage(err)
	case errors.Is(err, account.ErrEmailInUse), errors.Is(err, account.ErrUseGoogle):
		return http.StatusConflict, account.UserMessage(err)
	case errors.Is(err, account.ErrInvalidEmail), errors.Is(err, account.ErrWeakPassword),
		errors.Is(err, account.ErrLongPassword), errors.Is(err, account.ErrNameRequired):
		return http.StatusBadRequest, account.UserMessage(err)
	case errors.Is(err, account.ErrEmailUnverified):
		return http.StatusForbidden, account.UserMessage(err)
	case errors.Is(err, account.ErrGoogleDisabled):
		return http.StatusServiceUnavailable, account.UserMessage(err)
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again"
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
