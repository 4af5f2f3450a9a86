package handlers

import (
  "net/http"
  "time"

  "github.com/gin-gonic/gin"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/services"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

type AuthHandler struct {
  authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
  return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Register(c *gin.Context) {
  var req struct {
    Email       string     `json:"email"`
    Password    string     `json:"password"`
    DisplayName string     `json:"display_name"`
    RealName    string     `json:"real_name"`
    Gender      string     `json:"gender"`
    Birthdate   *time.Time `json:"birthdate"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, apierr.Validation("invalid request body"))
    return
  }
  user := types.User{
    Email:       req.Email,
    Password:    req.Password,
    DisplayName: req.DisplayName,
    RealName:    req.RealName,
    Gender:      req.Gender,
    Birthdate:   req.Birthdate,
  }
  if err := ah.authService.RegisterUser(c.Request.Context(), &user); err != nil {
    RespondError(c, err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

func (ah *AuthHandler) Login(c *gin.Context) {
  var req struct {
    Email    string `json:"email"`
    Password string `json:"password"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, apierr.Validation("invalid request body"))
    return
  }
  accessToken, refreshToken, err := ah.authService.LoginUser(c.Request.Context(), req.Email, req.Password)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{
    "access_token":  accessToken,
    "refresh_token": refreshToken,
    "expires_in":    int(ah.authService.GetAccessTTL().Seconds()),
  })
}

func (ah *AuthHandler) Refresh(c *gin.Context) {
  accessToken, refreshToken, err := ah.authService.RefreshUser(c.Request.Context())
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{
    "access_token":  accessToken,
    "refresh_token": refreshToken,
    "expires_in":    int(ah.authService.GetAccessTTL().Seconds()),
  })
}

func (ah *AuthHandler) Logout(c *gin.Context) {
  if err := ah.authService.LogoutUser(c.Request.Context()); err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{"message": "logged out"})
}
