package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kylevidrine/portal/internal/apperr"
	"github.com/kylevidrine/portal/pkg/logger"
)

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	ReauthURL string `json:"reauth_url,omitempty"`
}

func abortJSON(c *gin.Context, status int, code, msg, reauth string) {
	c.AbortWithStatusJSON(status, errorBody{Error: code, Message: msg, ReauthURL: reauth})
}

// writeError maps err onto its HTTP status and error code. Only *apperr.Error
// messages reach the client; anything else is logged and answered generically.
func writeError(c *gin.Context, err error, reauth string) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		abortJSON(c, http.StatusInternalServerError, "internal_error", "internal server error", "")
		return
	}
	status := apperr.HTTPStatus(ae.Kind)
	if status >= http.StatusInternalServerError {
		logger.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		reauth = ""
	}
	code := ae.Code
	if code == "" {
		code = "internal_error"
	}
	abortJSON(c, status, code, ae.Message, reauth)
}
