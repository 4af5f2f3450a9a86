package handlers

import (
  "github.com/gin-gonic/gin"

  "github.com/veilmatch/veilmatch-backend/internal/services"
)

type FeedHandler struct {
  feedService services.FeedService
}

func NewFeedHandler(feedService services.FeedService) *FeedHandler {
  return &FeedHandler{feedService: feedService}
}

func (fh *FeedHandler) GetDailyFeed(c *gin.Context) {
  userID, ok := currentUserID(c)
  if !ok {
    return
  }
  candidates, err := fh.feedService.GetDailyFeed(c.Request.Context(), userID)
  if err != nil {
    RespondError(c, err)
    return
  }
  // Feed candidates are strangers, so everyone renders at the locked tier.
  cards := make([]services.PartnerCard, 0, len(candidates))
  for _, candidate := range candidates {
    cards = append(cards, services.BuildPartnerCard(candidate, services.RevealLocked))
  }
  RespondOK(c, gin.H{"candidates": cards})
}
