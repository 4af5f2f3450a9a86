package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"
  "gorm.io/gorm"

  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/types"
  "github.com/veilmatch/veilmatch-backend/internal/utils"
)

// QuizGenService builds the milestone quizzes. It is invoked fire-and-forget
// after a milestone is detected; the sender's request never waits on it.
// A failed generation stores an empty list for that participant — the level
// is still consumed and is not retried.
type QuizGenService interface {
  GenerateForMilestone(ctx context.Context, chatID uuid.UUID, level int)
}

type quizGenService struct {
  db          *gorm.DB
  log         *logger.Logger
  chatRepo    repos.ChatRepo
  messageRepo repos.MessageRepo
  userRepo    repos.UserRepo
  openai      OpenAIClient
  notifier    ChatNotifier
  timeout     time.Duration
}

func NewQuizGenService(
  db *gorm.DB,
  log *logger.Logger,
  chatRepo repos.ChatRepo,
  messageRepo repos.MessageRepo,
  userRepo repos.UserRepo,
  openai OpenAIClient,
  notifier ChatNotifier,
) QuizGenService {
  serviceLog := log.With("service", "QuizGenService")
  timeoutSec := utils.GetEnvAsInt("QUIZGEN_TIMEOUT_SECONDS", 120, serviceLog)
  return &quizGenService{
    db:          db,
    log:         serviceLog,
    chatRepo:    chatRepo,
    messageRepo: messageRepo,
    userRepo:    userRepo,
    openai:      openai,
    notifier:    notifier,
    timeout:     time.Duration(timeoutSec) * time.Second,
  }
}

var quizSchema = map[string]any{
  "type": "object",
  "properties": map[string]any{
    "questions": map[string]any{
      "type": "array",
      "items": map[string]any{
        "type": "object",
        "properties": map[string]any{
          "question": map[string]any{"type": "string"},
          "options": map[string]any{
            "type":     "array",
            "items":    map[string]any{"type": "string"},
            "minItems": types.QuizOptionCount,
            "maxItems": types.QuizOptionCount,
          },
          "correct": map[string]any{"type": "integer"},
        },
        "required":             []string{"question", "options", "correct"},
        "additionalProperties": false,
      },
    },
  },
  "required":             []string{"questions"},
  "additionalProperties": false,
}

const quizSystemPrompt = `You write a short quiz testing how well one chat participant has been paying attention to the other. Every question must be answerable from the transcript alone, have exactly 3 options and exactly one correct option index (0-2). Respond with JSON only.`

func (s *quizGenService) GenerateForMilestone(ctx context.Context, chatID uuid.UUID, level int) {
  ctx, cancel := context.WithTimeout(ctx, s.timeout)
  defer cancel()

  log := s.log.With("chatID", chatID, "level", level)

  chats, err := s.chatRepo.GetByIDs(ctx, nil, []uuid.UUID{chatID})
  if err != nil || len(chats) == 0 {
    log.Warn("Quiz generation could not load chat", "error", err)
    return
  }
  chat := chats[0]
  if chat.LastQuizLevel >= level {
    log.Debug("Quiz level already consumed, skipping generation")
    return
  }

  users, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{chat.UserAID, chat.UserBID})
  if err != nil || len(users) != 2 {
    log.Warn("Quiz generation could not load participants", "error", err)
    return
  }
  var userA, userB *types.User
  for _, u := range users {
    if u.ID == chat.UserAID {
      userA = u
    } else {
      userB = u
    }
  }
  if userA == nil || userB == nil {
    log.Warn("Quiz generation participants do not match chat sides")
    return
  }

  transcript, err := s.messageRepo.GetByChatID(ctx, nil, chatID, 0)
  if err != nil {
    log.Warn("Quiz generation could not load transcript", "error", err)
    return
  }

  // Quiz for A asks about B, and vice versa. Both generations run
  // concurrently; a failed side degrades to an empty list rather than
  // failing the other side.
  var questionsForA, questionsForB []types.QuizQuestion
  group, groupCtx := errgroup.WithContext(ctx)
  group.Go(func() error {
    questionsForA = s.generateQuizAbout(groupCtx, transcript, userA, userB)
    return nil
  })
  group.Go(func() error {
    questionsForB = s.generateQuizAbout(groupCtx, transcript, userB, userA)
    return nil
  })
  _ = group.Wait()

  quizA, err := types.MarshalQuizQuestions(questionsForA)
  if err != nil {
    log.Error("Failed to encode quiz blob", "error", err)
    return
  }
  quizB, err := types.MarshalQuizQuestions(questionsForB)
  if err != nil {
    log.Error("Failed to encode quiz blob", "error", err)
    return
  }

  // Both blobs and the level advance land in one guarded update, so a
  // racing generation for the same level writes at most once.
  written, err := s.chatRepo.SetQuizzesForLevel(ctx, nil, chatID, level, quizA, quizB)
  if err != nil {
    log.Error("Failed to persist quizzes", "error", err)
    return
  }
  if !written {
    log.Debug("Another writer consumed this quiz level first")
    return
  }

  log.Info("Milestone quizzes generated",
    "questionsForA", len(questionsForA),
    "questionsForB", len(questionsForB),
  )
  if s.notifier != nil {
    // the loaded chat predates the guarded update; patch in what was just
    // written so the event payload is not stale
    chat.QuizA = quizA
    chat.QuizB = quizB
    chat.LastQuizLevel = level
    s.notifier.QuizReady(chat, level)
  }
}

// generateQuizAbout builds taker's quiz about target. Failures degrade to an
// empty list.
func (s *quizGenService) generateQuizAbout(ctx context.Context, transcript []*types.Message, taker, target *types.User) []types.QuizQuestion {
  var sb strings.Builder
  for _, m := range transcript {
    name := taker.DisplayName
    if m.SenderID == target.ID {
      name = target.DisplayName
    }
    fmt.Fprintf(&sb, "%s: %s\n", name, m.Content)
  }
  prompt := fmt.Sprintf(
    "Full transcript:\n%s\nWrite %d multiple-choice questions for %q about what %q said or revealed.",
    sb.String(), types.QuizQuestionCount, taker.DisplayName, target.DisplayName,
  )

  obj, err := s.openai.GenerateJSON(ctx, quizSystemPrompt, prompt, "milestone_quiz", quizSchema)
  if err != nil {
    s.log.Warn("Quiz generation call failed, storing empty quiz", "taker", taker.ID, "error", err)
    return []types.QuizQuestion{}
  }

  raw, err := json.Marshal(obj["questions"])
  if err != nil {
    s.log.Warn("Quiz payload not re-encodable, storing empty quiz", "taker", taker.ID, "error", err)
    return []types.QuizQuestion{}
  }
  var questions []types.QuizQuestion
  if err := json.Unmarshal(raw, &questions); err != nil {
    s.log.Warn("Quiz payload failed schema decode, storing empty quiz", "taker", taker.ID, "error", err)
    return []types.QuizQuestion{}
  }

  valid := ValidateQuizQuestions(questions)
  if valid == nil {
    valid = []types.QuizQuestion{}
  }
  return valid
}

// ValidateQuizQuestions enforces the fixed quiz shape: each record must pass
// per-question validation and a full batch needs at least QuizQuestionCount
// records, truncated down to exactly that many. Anything short of a full
// batch is unusable and collapses to empty.
func ValidateQuizQuestions(questions []types.QuizQuestion) []types.QuizQuestion {
  cleaned := make([]types.QuizQuestion, 0, len(questions))
  for _, q := range questions {
    if err := q.Validate(); err != nil {
      continue
    }
    cleaned = append(cleaned, q)
  }
  if len(cleaned) < types.QuizQuestionCount {
    return nil
  }
  return cleaned[:types.QuizQuestionCount]
}
