package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/lguportal/portal/pkg/errors"
)

// Response defines the base API envelope: {success, message|error, code?, data?}.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta describes list metadata.
type Meta struct {
	Limit  int   `json:"limit,omitempty"`
	Offset int   `json:"offset,omitempty"`
	Total  int64 `json:"total,omitempty"`
}

// Success writes a JSON success response.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
	})
}

// Message writes a JSON success response carrying only a human readable message.
func Message(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
	})
}

// SuccessWithMeta writes a JSON success response including metadata.
func SuccessWithMeta(c *gin.Context, statusCode int, data interface{}, meta *Meta) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

// Fields writes a flat success envelope, merging the supplied keys next to "success".
// Used by endpoints whose clients expect top-level fields such as unread_count.
func Fields(c *gin.Context, statusCode int, fields gin.H) {
	payload := gin.H{}
	for k, v := range fields {
		payload[k] = v
	}
	payload["success"] = true
	c.JSON(statusCode, payload)
}

// Error writes a JSON error response derived from an AppError.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, Response{
		Success: false,
		Error:   appErr.Message,
		Code:    appErr.Code,
	})
}
