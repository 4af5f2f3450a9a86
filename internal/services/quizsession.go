package services

import (
  "context"
  "sync"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

// Quiz session lifecycle: loading -> intro -> playing -> result. The state is
// an explicit value and every change goes through the pure Transition
// function; side effects (persistence, notifications) happen on state entry
// in the service, never inside the transition itself.

type QuizPhase string

const (
  QuizPhaseLoading QuizPhase = "loading"
  QuizPhaseIntro   QuizPhase = "intro"
  QuizPhasePlaying QuizPhase = "playing"
  QuizPhaseResult  QuizPhase = "result"
)

// quizSettleDelay is how long an answered question stays on screen before
// the session advances; answers arriving inside the window are ignored.
const quizSettleDelay = 900 * time.Millisecond

type QuizSessionState struct {
  ChatID        uuid.UUID            `json:"chat_id"`
  UserID        uuid.UUID            `json:"user_id"`
  Level         int                  `json:"level"`
  Phase         QuizPhase            `json:"phase"`
  Questions     []types.QuizQuestion `json:"questions"`
  QuestionIndex int                  `json:"question_index"`
  Score         int                  `json:"score"`
  SettlingUntil time.Time            `json:"settling_until"`
  LastCorrect   bool                 `json:"last_correct"`
}

type QuizEventKind string

const (
  QuizEventLoad   QuizEventKind = "load"
  QuizEventStart  QuizEventKind = "start"
  QuizEventAnswer QuizEventKind = "answer"
  QuizEventSettle QuizEventKind = "settle"
)

type QuizEvent struct {
  Kind      QuizEventKind
  Questions []types.QuizQuestion
  Option    int
}

func (s QuizSessionState) settling(now time.Time) bool {
  return !s.SettlingUntil.IsZero() && now.Before(s.SettlingUntil)
}

// Passed is the strict all-or-nothing rule: every question right, no partial
// credit.
func (s QuizSessionState) Passed() bool {
  return s.Phase == QuizPhaseResult && len(s.Questions) > 0 && s.Score == len(s.Questions)
}

// Transition applies one event to a session state. It is deterministic given
// now and performs no I/O. Unknown or out-of-phase events leave the state
// unchanged.
func Transition(s QuizSessionState, ev QuizEvent, now time.Time) QuizSessionState {
  switch ev.Kind {
  case QuizEventLoad:
    if s.Phase != QuizPhaseLoading {
      return s
    }
    s.Questions = ev.Questions
    s.QuestionIndex = 0
    s.Score = 0
    s.Phase = QuizPhaseIntro
    return s

  case QuizEventStart:
    if s.Phase != QuizPhaseIntro {
      return s
    }
    s.Phase = QuizPhasePlaying
    return s

  case QuizEventAnswer:
    if s.Phase != QuizPhasePlaying {
      return s
    }
    if s.settling(now) {
      // already processing an answer
      return s
    }
    if s.QuestionIndex >= len(s.Questions) {
      return s
    }
    question := s.Questions[s.QuestionIndex]
    s.LastCorrect = ev.Option == question.Correct
    if s.LastCorrect {
      s.Score++
    }
    s.SettlingUntil = now.Add(quizSettleDelay)
    return s

  case QuizEventSettle:
    if s.Phase != QuizPhasePlaying {
      return s
    }
    if s.SettlingUntil.IsZero() || now.Before(s.SettlingUntil) {
      return s
    }
    s.SettlingUntil = time.Time{}
    if s.QuestionIndex == len(s.Questions)-1 {
      s.Phase = QuizPhaseResult
      return s
    }
    s.QuestionIndex++
    return s

  default:
    return s
  }
}

// QuizSessionService holds at most one live session per (chat, user) pair
// and drives the reveal confirmation when a session ends passed.
type QuizSessionService interface {
  Start(ctx context.Context, userID, chatID uuid.UUID) (*QuizSessionState, error)
  Begin(ctx context.Context, userID, chatID uuid.UUID) (*QuizSessionState, error)
  Answer(ctx context.Context, userID, chatID uuid.UUID, option int) (*QuizSessionState, error)
  State(ctx context.Context, userID, chatID uuid.UUID) (*QuizSessionState, error)
  Finish(ctx context.Context, userID, chatID uuid.UUID) (*QuizSessionState, error)
}

type quizSessionService struct {
  db       *gorm.DB
  log      *logger.Logger
  chatRepo repos.ChatRepo
  notifier ChatNotifier

  mu       sync.Mutex
  sessions map[string]*QuizSessionState

  now func() time.Time
}

func NewQuizSessionService(db *gorm.DB, log *logger.Logger, chatRepo repos.ChatRepo, notifier ChatNotifier) QuizSessionService {
  return &quizSessionService{
    db:       db,
    log:      log.With("service", "QuizSessionService"),
    chatRepo: chatRepo,
    notifier: notifier,
    sessions: make(map[string]*QuizSessionState),
    now:      time.Now,
  }
}

func sessionKey(userID, chatID uuid.UUID) string {
  return chatID.String() + "/" + userID.String()
}

func (s *quizSessionService) loadChatFor(ctx context.Context, userID, chatID uuid.UUID) (*types.Chat, error) {
  chats, err := s.chatRepo.GetByIDs(ctx, nil, []uuid.UUID{chatID})
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  if len(chats) == 0 {
    return nil, apierr.NotFound("chat not found")
  }
  chat := chats[0]
  if !chat.HasParticipant(userID) {
    return nil, apierr.AccessDenied("not a participant of this chat")
  }
  return chat, nil
}

// Start creates (or restarts) a session: the loading phase parses the stored
// quiz payload for this user and, when present, lands in intro.
func (s *quizSessionService) Start(ctx context.Context, userID, chatID uuid.UUID) (*QuizSessionState, error) {
  chat, err := s.loadChatFor(ctx, userID, chatID)
  if err != nil {
    return nil, err
  }
  if chat.LastQuizLevel < 1 {
    return nil, apierr.Validation("no milestone reached yet")
  }

  questions, parseErr := types.ParseQuizQuestions(chat.QuizFor(userID))
  if parseErr != nil || len(questions) == 0 {
    // absent or unusable payload: surface an error, the caller returns to
    // the chat and may try again once a future generation succeeds
    return nil, apierr.NotFound("quiz not available for this milestone")
  }

  state := QuizSessionState{
    ChatID: chatID,
    UserID: userID,
    Level:  chat.LastQuizLevel,
    Phase:  QuizPhaseLoading,
  }
  state = Transition(state, QuizEvent{Kind: QuizEventLoad, Questions: questions}, s.now())

  s.mu.Lock()
  s.sessions[sessionKey(userID, chatID)] = &state
  s.mu.Unlock()

  out := state
  return &out, nil
}

// Begin advances intro -> playing; it is the explicit user action that
// leaves the idle intro screen.
func (s *quizSessionService) Begin(ctx context.Context, userID, chatID uuid.UUID) (*QuizSessionState, error) {
  return s.apply(userID, chatID, QuizEvent{Kind: QuizEventStart})
}

func (s *quizSessionService) Answer(ctx context.Context, userID, chatID uuid.UUID, option int) (*QuizSessionState, error) {
  if option < 0 || option >= types.QuizOptionCount {
    return nil, apierr.Validation("option index out of range")
  }
  return s.apply(userID, chatID, QuizEvent{Kind: QuizEventAnswer, Option: option})
}

// State returns the current session, first applying any elapsed settle
// window so a poll after the delay sees the advanced question.
func (s *quizSessionService) State(ctx context.Context, userID, chatID uuid.UUID) (*QuizSessionState, error) {
  return s.apply(userID, chatID, QuizEvent{Kind: QuizEventSettle})
}

func (s *quizSessionService) apply(userID, chatID uuid.UUID, ev QuizEvent) (*QuizSessionState, error) {
  s.mu.Lock()
  defer s.mu.Unlock()

  state, ok := s.sessions[sessionKey(userID, chatID)]
  if !ok {
    return nil, apierr.NotFound("no active quiz session")
  }

  now := s.now()
  // a pending settle window may already be over; advance it before the
  // event so an answer always lands on the current question
  next := Transition(*state, QuizEvent{Kind: QuizEventSettle}, now)
  next = Transition(next, ev, now)
  *state = next

  out := next
  return &out, nil
}

// Finish closes a session in the result phase. A passed session confirms
// disclosure: the partner's identity is revealed to this user, one-shot and
// irreversible. A failed session just returns to the chat, no penalty.
func (s *quizSessionService) Finish(ctx context.Context, userID, chatID uuid.UUID) (*QuizSessionState, error) {
  s.mu.Lock()
  state, ok := s.sessions[sessionKey(userID, chatID)]
  if ok {
    *state = Transition(*state, QuizEvent{Kind: QuizEventSettle}, s.now())
  }
  s.mu.Unlock()

  if !ok {
    return nil, apierr.NotFound("no active quiz session")
  }
  if state.Phase != QuizPhaseResult {
    return nil, apierr.Validation("quiz session still in progress")
  }

  final := *state

  s.mu.Lock()
  delete(s.sessions, sessionKey(userID, chatID))
  s.mu.Unlock()

  if final.Passed() {
    chat, err := s.loadChatFor(ctx, userID, chatID)
    if err != nil {
      return nil, err
    }
    if err := s.chatRepo.MarkRevealed(ctx, nil, chatID, userID, chat.IsUserA(userID)); err != nil {
      return nil, apierr.Persistence(err)
    }
    s.log.Info("Full reveal confirmed", "chatID", chatID, "userID", userID, "level", final.Level)
    if s.notifier != nil {
      s.notifier.RevealConfirmed(chat, userID)
    }
  }

  return &final, nil
}
