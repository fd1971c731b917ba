package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tuition/internal/account"
	"tuition/internal/auth"
	"tuition/internal/cloudinary"
)

type signUpRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name, email and password are required")
		return
	}
	sess, err := h.accounts.SignUp(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}
	sess, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) GoogleSignIn(c *gin.Context) {
	var req struct {
		IDToken string `json:"id_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "id_token is required")
		return
	}
	sess, err := h.accounts.GoogleSignIn(c.Request.Context(), req.IDToken)
	if err != nil {
		status, msg := classify(err)
		if status == http.StatusInternalServerError {
			// Verification failures come back as provider errors.
			h.log.Warn("google sign-in failed", "error", err)
			status, msg = http.StatusUnauthorized, account.UserMessage(err)
		}
		c.AbortWithStatusJSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, sess)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh_token is required")
		return
	}
	sess, err := h.accounts.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) Logout(c *gin.Context) {
	var req refreshRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.accounts.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Me(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	t, err := h.accounts.Reconcile(c.Request.Context(), claims)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateMe(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}
	t, err := h.accounts.UpdateProfile(c.Request.Context(), auth.TeacherID(c), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

const (
	maxPhotoBytes = 5 << 20
	maxPhotoBody  = maxPhotoBytes*4/3 + 64<<10 // base64 plus form or JSON framing
)

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func photoTooLarge(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Photo must be 5 MB or smaller"})
}

// UploadPhoto accepts a multipart "file" or a JSON {"data": "<base64 data URL>"}
// and stores the resulting URL on the profile.
func (h *Handler) UploadPhoto(c *gin.Context) {
	if h.photos == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Photo uploads are not available"})
		return
	}
	teacherID := auth.TeacherID(c)
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoBody)

	var (
		result *cloudinary.UploadResult
		err    error
	)
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, header, ferr := c.Request.FormFile("file")
		if ferr != nil {
			if isTooLarge(ferr) {
				photoTooLarge(c)
				return
			}
			badRequest(c, "file field required")
			return
		}
		defer file.Close()
		if header.Size > maxPhotoBytes {
			photoTooLarge(c)
			return
		}
		data, ferr := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
		if ferr != nil {
			badRequest(c, "could not read file")
			return
		}
		if len(data) > maxPhotoBytes {
			photoTooLarge(c)
			return
		}
		result, err = h.photos.UploadBytes(ctx, data, header.Filename, teacherID)
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if berr := c.ShouldBindJSON(&body); berr != nil {
			if isTooLarge(berr) {
				photoTooLarge(c)
				return
			}
			badRequest(c, `provide {"data": "<base64 data URL>"}`)
			return
		}
		result, err = h.photos.UploadBase64(ctx, body.Data, teacherID)
	}
	if err != nil {
		h.log.Error("photo upload failed", "teacher_id", teacherID, "error", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Photo upload failed"})
		return
	}

	t, err := h.accounts.SetPhoto(ctx, teacherID, result.SecureURL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
