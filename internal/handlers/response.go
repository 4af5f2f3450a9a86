package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
)

type APIError struct {
  Message string `json:"message"`
  Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
  Error APIError `json:"error"`
}

// RespondError maps a service error onto the wire envelope, using the
// status and code the service attached.
func RespondError(c *gin.Context, err error) {
  msg := "unknown error"
  if err != nil {
    msg = err.Error()
  }
  c.JSON(apierr.StatusOf(err), ErrorEnvelope{
    Error: APIError{
      Message: msg,
      Code:    apierr.CodeOf(err),
    },
  })
}

func RespondOK(c *gin.Context, payload any) {
  c.JSON(http.StatusOK, payload)
}
