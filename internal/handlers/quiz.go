package handlers

import (
  "github.com/gin-gonic/gin"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/services"
)

type QuizHandler struct {
  quizSessions services.QuizSessionService
}

func NewQuizHandler(quizSessions services.QuizSessionService) *QuizHandler {
  return &QuizHandler{quizSessions: quizSessions}
}

func (qh *QuizHandler) Start(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  chatID, ok := chatIDParam(c)
  if !ok {
    return
  }
  state, err := qh.quizSessions.Start(c.Request.Context(), userID, chatID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, state)
}

func (qh *QuizHandler) Begin(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  chatID, ok := chatIDParam(c)
  if !ok {
    return
  }
  state, err := qh.quizSessions.Begin(c.Request.Context(), userID, chatID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, state)
}

func (qh *QuizHandler) Answer(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  chatID, ok := chatIDParam(c)
  if !ok {
    return
  }
  var req struct {
    Option *int `json:"option"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Option == nil {
    RespondError(c, apierr.Validation("option is required"))
    return
  }
  state, err := qh.quizSessions.Answer(c.Request.Context(), userID, chatID, *req.Option)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, state)
}

func (qh *QuizHandler) State(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  chatID, ok := chatIDParam(c)
  if !ok {
    return
  }
  state, err := qh.quizSessions.State(c.Request.Context(), userID, chatID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, state)
}

func (qh *QuizHandler) Finish(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  chatID, ok := chatIDParam(c)
  if !ok {
    return
  }
  state, err := qh.quizSessions.Finish(c.Request.Context(), userID, chatID)
  if err != nil {
    RespondError(c, err)
    return
  }
  RespondOK(c, gin.H{
    "state":  state,
    "passed": state.Passed(),
  })
}
