package handlers

import (
  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/sse"
)

type SSEHandler struct {
  hub      *sse.SSEHub
  chatRepo repos.ChatRepo
}

func NewSSEHandler(hub *sse.SSEHub, chatRepo repos.ChatRepo) *SSEHandler {
  return &SSEHandler{hub: hub, chatRepo: chatRepo}
}

// Stream opens the event stream and subscribes the client to its own user
// topic plus the topics of every chat it participates in.
func (sh *SSEHandler) Stream(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }

  client := sh.hub.NewSSEClient(userID)
  sh.hub.AddChannel(client, sse.UserChannel(userID))

  chats, err := sh.chatRepo.GetByUserID(c.Request.Context(), nil, userID)
  if err != nil {
    RespondError(c, apierr.Persistence(err))
    return
  }
  for _, chat := range chats {
    sh.hub.AddChannel(client, sse.ChatChannel(chat.ID))
  }

  defer sh.hub.CloseClient(client)
  sh.hub.ServeHTTP(c.Writer, c.Request, client)
}

// Subscribe attaches a live stream to an additional chat topic, used when a
// chat is created while the stream is already open.
func (sh *SSEHandler) Subscribe(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  var req struct {
    ChatID uuid.UUID `json:"chat_id"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.ChatID == uuid.Nil {
    RespondError(c, apierr.Validation("chat_id is required"))
    return
  }
  chats, err := sh.chatRepo.GetByIDs(c.Request.Context(), nil, []uuid.UUID{req.ChatID})
  if err != nil {
    RespondError(c, apierr.Persistence(err))
    return
  }
  if len(chats) == 0 || !chats[0].HasParticipant(userID) {
    RespondError(c, apierr.AccessDenied("not a participant of this chat"))
    return
  }
  sh.hub.SubscribeUser(userID, sse.ChatChannel(req.ChatID))
  RespondOK(c, gin.H{"subscribed": sse.ChatChannel(req.ChatID)})
}
