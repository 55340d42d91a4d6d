package handlers

import (
	stdErrors "errors"
	"fmt"
	"math"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/lguportal/portal/internal/auth"
	"github.com/lguportal/portal/internal/services"
	"github.com/lguportal/portal/pkg/errors"
	"github.com/lguportal/portal/pkg/logger"
	"github.com/lguportal/portal/pkg/response"
)

// translateError maps service errors onto the API error taxonomy. Anything
// unrecognised becomes ErrInternalServer so storage details never reach the caller.
func translateError(err error) *errors.AppError {
	var appErr *errors.AppError
	if stdErrors.As(err, &appErr) {
		return appErr
	}

	var locked *services.LockedError
	switch {
	case stdErrors.As(err, &locked):
		minutes := int(math.Ceil(float64(locked.Remaining) / 60))
		if minutes < 1 {
			minutes = 1
		}
		return errors.ErrAccountLocked.WithMessage(
			fmt.Sprintf("Too many failed login attempts. Please try again in %d minute(s).", minutes))
	case stdErrors.Is(err, services.ErrInvalidCredentials):
		return errors.ErrInvalidCredentials
	case stdErrors.Is(err, services.ErrAccountInactive):
		return errors.ErrAccountInactive
	case stdErrors.Is(err, services.ErrNotFound):
		return errors.ErrNotFound
	case stdErrors.Is(err, services.ErrInvalidStatus):
		return errors.NewBadRequest("invalid status")
	case stdErrors.Is(err, services.ErrEmailTaken):
		return errors.ErrConflict.WithMessage("Email is already registered")
	case stdErrors.Is(err, services.ErrVerificationNotFound):
		return errors.NewBadRequest("Verification link is invalid")
	case stdErrors.Is(err, services.ErrVerificationExpired):
		return errors.NewBadRequest("Verification link has expired")
	case stdErrors.Is(err, services.ErrVerificationUsed):
		return errors.NewBadRequest("Verification link has already been used")
	case stdErrors.Is(err, iauth.ErrSessionExpired):
		return errors.ErrSessionExpired
	case stdErrors.Is(err, iauth.ErrSessionNotFound), stdErrors.Is(err, iauth.ErrSessionInactive):
		return errors.ErrUnauthorized
	}
	return errors.ErrInternalServer.WithInternal(err)
}

// respondError writes the translated error, logging unexpected failures.
func respondError(c *gin.Context, err error) {
	appErr := translateError(err)
	if appErr.StatusCode >= 500 {
		logger.FromContext(requestContext(c), "handlers").Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	response.Error(c, appErr)
}
