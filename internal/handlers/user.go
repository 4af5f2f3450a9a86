package handlers

import (
  "io"

  "github.com/gin-gonic/gin"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/requestdata"
  "github.com/veilmatch/veilmatch-backend/internal/services"
)

// Uploads above this size are rejected before decoding.
const maxAvatarUploadBytes = 10 << 20

type UserHandler struct {
  userService   services.UserService
  avatarService services.AvatarService
}

func NewUserHandler(userService services.UserService, avatarService services.AvatarService) *UserHandler {
  return &UserHandler{userService: userService, avatarService: avatarService}
}

func (uh *UserHandler) GetMe(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    RespondError(c, apierr.Unauthenticated("no request data in context"))
    return
  }
  user, err := uh.userService.GetMe(c.Request.Context(), rd.UserID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) UpdateProfile(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    RespondError(c, apierr.Unauthenticated("no request data in context"))
    return
  }
  var req services.ProfileUpdate
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, apierr.Validation("invalid request body"))
    return
  }
  user, err := uh.userService.UpdateProfile(c.Request.Context(), rd.UserID, req)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) UploadAvatar(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    RespondError(c, apierr.Unauthenticated("no request data in context"))
    return
  }
  fileHeader, err := c.FormFile("photo")
  if err != nil {
    RespondError(c, apierr.Validation("multipart field 'photo' is required"))
    return
  }
  if fileHeader.Size > maxAvatarUploadBytes {
    RespondError(c, apierr.Validation("photo exceeds the 10MB limit"))
    return
  }
  file, err := fileHeader.Open()
  if err != nil {
    RespondError(c, apierr.Validation("unreadable upload"))
    return
  }
  defer file.Close()
  raw, err := io.ReadAll(io.LimitReader(file, maxAvatarUploadBytes))
  if err != nil {
    RespondError(c, apierr.Validation("unreadable upload"))
    return
  }
  user, err := uh.avatarService.SetUserPhoto(c.Request.Context(), rd.UserID, raw)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{"user": user})
}

func (uh *UserHandler) UpdateMask(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    RespondError(c, apierr.Unauthenticated("no request data in context"))
    return
  }
  var req struct {
    PosX  float64 `json:"pos_x"`
    PosY  float64 `json:"pos_y"`
    Scale float64 `json:"scale"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, apierr.Validation("invalid request body"))
    return
  }
  user, err := uh.avatarService.UpdateMaskPlacement(c.Request.Context(), rd.UserID, req.PosX, req.PosY, req.Scale)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{"user": user})
}
