package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"

  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/types"
  "github.com/veilmatch/veilmatch-backend/internal/utils"
)

const (
  scorerExcerptSize = 20
  scorerMaxScore    = 12
)

// ScorerService grades the recent conversation for both participants.
// It never returns an error: any failure of the external model, the network
// or the response schema degrades to a neutral {0,0} so message delivery is
// never blocked by scoring.
type ScorerService interface {
  ScoreRecent(ctx context.Context, chat *types.Chat, recent []*types.Message) (int, int)
}

type scorerService struct {
  log     *logger.Logger
  openai  OpenAIClient
  timeout time.Duration
}

func NewScorerService(log *logger.Logger, openai OpenAIClient) ScorerService {
  serviceLog := log.With("service", "ScorerService")
  timeoutSec := utils.GetEnvAsInt("SCORER_TIMEOUT_SECONDS", 20, serviceLog)
  return &scorerService{
    log:     serviceLog,
    openai:  openai,
    timeout: time.Duration(timeoutSec) * time.Second,
  }
}

var scorerSchema = map[string]any{
  "type": "object",
  "properties": map[string]any{
    "userA": map[string]any{"type": "integer"},
    "userB": map[string]any{"type": "integer"},
  },
  "required":             []string{"userA", "userB"},
  "additionalProperties": false,
}

const scorerSystemPrompt = `You grade how much genuine conversational effort each participant of a two-person chat is putting in. Score each participant from 0 to 12. Reward curiosity, follow-up questions and self-disclosure; penalize one-word filler. Respond with JSON only.`

func (s *scorerService) ScoreRecent(ctx context.Context, chat *types.Chat, recent []*types.Message) (int, int) {
  if chat == nil || len(recent) == 0 {
    return 0, 0
  }

  ctx, cancel := context.WithTimeout(ctx, s.timeout)
  defer cancel()

  excerpt := recent
  if len(excerpt) > scorerExcerptSize {
    excerpt = excerpt[len(excerpt)-scorerExcerptSize:]
  }

  var sb strings.Builder
  for _, m := range excerpt {
    label := "B"
    if m.SenderID == chat.UserAID {
      label = "A"
    }
    fmt.Fprintf(&sb, "%s: %s\n", label, m.Content)
  }
  prompt := fmt.Sprintf("Transcript (userA is A, userB is B):\n%s", sb.String())

  obj, err := s.openai.GenerateJSON(ctx, scorerSystemPrompt, prompt, "conversation_quality", scorerSchema)
  if err != nil {
    s.log.Warn("Conversation scoring failed, using neutral scores", "chatID", chat.ID, "error", err)
    return 0, 0
  }

  scoreA, okA := intField(obj, "userA")
  scoreB, okB := intField(obj, "userB")
  if !okA || !okB {
    s.log.Warn("Conversation scoring returned a malformed object, using neutral scores", "chatID", chat.ID)
    return 0, 0
  }
  return clampScore(scoreA), clampScore(scoreB)
}

func clampScore(v int) int {
  if v < 0 {
    return 0
  }
  if v > scorerMaxScore {
    return scorerMaxScore
  }
  return v
}

func intField(obj map[string]any, key string) (int, bool) {
  raw, ok := obj[key]
  if !ok {
    return 0, false
  }
  switch v := raw.(type) {
  case float64:
    return int(v), true
  case int:
    return v, true
  case json.Number:
    i, err := v.Int64()
    if err != nil {
      return 0, false
    }
    return int(i), true
  default:
    return 0, false
  }
}
