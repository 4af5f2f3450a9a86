package handlers

import (
  "net/http"
  "strconv"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/requestdata"
  "github.com/veilmatch/veilmatch-backend/internal/services"
)

type ChatHandler struct {
  chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
  return &ChatHandler{chatService: chatService}
}

func currentUserID(c *gin.Context) (uuid.UUID, bool) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil || rd.UserID == uuid.Nil {
    RespondError(c, apierr.Unauthenticated("no request data in context"))
    return uuid.Nil, false
  }
  return rd.UserID, true
}

func chatIDParam(c *gin.Context) (uuid.UUID, bool) {
  chatID, err := uuid.Parse(c.Param("chatID"))
  if err != nil {
    RespondError(c, apierr.Validation("invalid chat id"))
    return uuid.Nil, false
  }
  return chatID, true
}

func (ch *ChatHandler) CreateChat(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  var req struct {
    PartnerID uuid.UUID `json:"partner_id"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.PartnerID == uuid.Nil {
    RespondError(c, apierr.Validation("partner_id is required"))
    return
  }
  chat, err := ch.chatService.CreateChat(c.Request.Context(), userID, req.PartnerID)
  if err != nil {
    RespondError(c, err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"chat": chat})
}

func (ch *ChatHandler) ListChats(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  views, err := ch.chatService.ListChats(c.Request.Context(), userID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{"chats": views})
}

func (ch *ChatHandler) GetChat(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  chatID, ok := chatIDParam(c)
  if !ok {
    return
  }
  view, err := ch.chatService.GetChat(c.Request.Context(), userID, chatID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, view)
}

func (ch *ChatHandler) ListMessages(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  chatID, ok := chatIDParam(c)
  if !ok {
    return
  }
  limit := 0
  if raw := c.Query("limit"); raw != "" {
    parsed, err := strconv.Atoi(raw)
    if err != nil || parsed < 0 {
      RespondError(c, apierr.Validation("limit must be a non-negative integer"))
      return
    }
    limit = parsed
  }
  messages, err := ch.chatService.ListMessages(c.Request.Context(), userID, chatID, limit)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{"messages": messages})
}

func (ch *ChatHandler) SendMessage(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  chatID, ok := chatIDParam(c)
  if !ok {
    return
  }
  var req struct {
    Content string `json:"content"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, apierr.Validation("invalid request body"))
    return
  }
  msg, flags, err := ch.chatService.SendMessage(c.Request.Context(), userID, chatID, req.Content)
  if err != nil {
    RespondError(c, err)
    return
  }
  payload := gin.H{"message": msg}
  if len(flags) > 0 {
    payload["flags"] = flags
  }
  c.JSON(http.StatusCreated, payload)
}
