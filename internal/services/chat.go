package services

import (
  "context"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

// ChatView is a chat plus the tier-filtered partner card for the viewer.
type ChatView struct {
  Chat    *types.Chat `json:"chat"`
  Partner PartnerCard `json:"partner"`
  Tier    RevealTier  `json:"tier"`
}

type ChatService interface {
  CreateChat(ctx context.Context, userID, partnerID uuid.UUID) (*types.Chat, error)
  ListChats(ctx context.Context, userID uuid.UUID) ([]ChatView, error)
  GetChat(ctx context.Context, userID, chatID uuid.UUID) (*ChatView, error)
  ListMessages(ctx context.Context, userID, chatID uuid.UUID, limit int) ([]*types.Message, error)
  SendMessage(ctx context.Context, userID, chatID uuid.UUID, content string) (*types.Message, []types.ContentFlag, error)
}

type chatService struct {
  db          *gorm.DB
  log         *logger.Logger
  chatRepo    repos.ChatRepo
  messageRepo repos.MessageRepo
  userRepo    repos.UserRepo
  ghostwall   GhostwallService
  scorer      ScorerService
  quizGen     QuizGenService
  notifier    ChatNotifier
}

func NewChatService(
  db *gorm.DB,
  log *logger.Logger,
  chatRepo repos.ChatRepo,
  messageRepo repos.MessageRepo,
  userRepo repos.UserRepo,
  ghostwall GhostwallService,
  scorer ScorerService,
  quizGen QuizGenService,
  notifier ChatNotifier,
) ChatService {
  serviceLog := log.With("service", "ChatService")
  return &chatService{
    db:          db,
    log:         serviceLog,
    chatRepo:    chatRepo,
    messageRepo: messageRepo,
    userRepo:    userRepo,
    ghostwall:   ghostwall,
    scorer:      scorer,
    quizGen:     quizGen,
    notifier:    notifier,
  }
}

func (s *chatService) CreateChat(ctx context.Context, userID, partnerID uuid.UUID) (*types.Chat, error) {
  if userID == partnerID {
    return nil, apierr.Validation("cannot start a chat with yourself")
  }

  partners, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{partnerID})
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  if len(partners) == 0 {
    return nil, apierr.NotFound("partner not found")
  }

  existing, err := s.chatRepo.GetByPair(ctx, nil, userID, partnerID)
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  if existing != nil {
    return existing, nil
  }

  chat := &types.Chat{
    ID:      uuid.New(),
    UserAID: userID,
    UserBID: partnerID,
  }
  if _, err := s.chatRepo.Create(ctx, nil, []*types.Chat{chat}); err != nil {
    return nil, apierr.Persistence(err)
  }

  s.log.Info("Chat created", "chatID", chat.ID, "userA", userID, "userB", partnerID)
  s.notifier.ChatCreated(chat)
  return chat, nil
}

func (s *chatService) loadChatFor(ctx context.Context, userID, chatID uuid.UUID) (*types.Chat, error) {
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

func (s *chatService) buildView(ctx context.Context, userID uuid.UUID, chat *types.Chat) (*ChatView, error) {
  partnerID := chat.PartnerOf(userID)
  partners, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{partnerID})
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  if len(partners) == 0 {
    return nil, apierr.NotFound("partner not found")
  }
  tier := RevealTierFor(chat, userID)
  return &ChatView{
    Chat:    chat,
    Partner: BuildPartnerCard(partners[0], tier),
    Tier:    tier,
  }, nil
}

func (s *chatService) ListChats(ctx context.Context, userID uuid.UUID) ([]ChatView, error) {
  chats, err := s.chatRepo.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, apierr.Persistence(err)
  }

  views := make([]ChatView, 0, len(chats))
  for _, chat := range chats {
    view, err := s.buildView(ctx, userID, chat)
    if err != nil {
      s.log.Warn("Skipping chat with unresolvable partner", "chatID", chat.ID, "error", err)
      continue
    }
    views = append(views, *view)
  }
  return views, nil
}

func (s *chatService) GetChat(ctx context.Context, userID, chatID uuid.UUID) (*ChatView, error) {
  chat, err := s.loadChatFor(ctx, userID, chatID)
  if err != nil {
    return nil, err
  }
  return s.buildView(ctx, userID, chat)
}

func (s *chatService) ListMessages(ctx context.Context, userID, chatID uuid.UUID, limit int) ([]*types.Message, error) {
  if _, err := s.loadChatFor(ctx, userID, chatID); err != nil {
    return nil, err
  }
  messages, err := s.messageRepo.GetByChatID(ctx, nil, chatID, limit)
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  return messages, nil
}

// SendMessage is the engagement pipeline: ghost wall -> persist -> ledger
// update (single atomic expression, scorer folded in on every 10th message)
// -> fan-out -> milestone check -> background quiz generation.
func (s *chatService) SendMessage(ctx context.Context, userID, chatID uuid.UUID, content string) (*types.Message, []types.ContentFlag, error) {
  if len(content) == 0 {
    return nil, nil, apierr.Validation("empty message")
  }

  chat, err := s.loadChatFor(ctx, userID, chatID)
  if err != nil {
    return nil, nil, err
  }

  senders, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
  if err != nil {
    return nil, nil, apierr.Persistence(err)
  }
  if len(senders) == 0 {
    return nil, nil, apierr.NotFound("sender not found")
  }
  sender := senders[0]

  // sanitization runs before persistence: the stored transcript is already
  // redacted, so history reads and fan-out never see the raw leak
  previous, err := s.messageRepo.GetRecentByChatID(ctx, nil, chatID, 2)
  if err != nil {
    return nil, nil, apierr.Persistence(err)
  }
  previousContents := make([]string, 0, len(previous))
  for _, m := range previous {
    previousContents = append(previousContents, m.Content)
  }
  flags := s.ghostwall.Inspect(content, previousContents, sender.RealName)
  if len(flags) > 0 {
    s.log.Info("Ghost wall flagged outgoing message", "chatID", chatID, "flags", len(flags))
    content = s.ghostwall.Sanitize(content, flags)
  }

  msg := &types.Message{
    ID:       uuid.New(),
    ChatID:   chatID,
    SenderID: userID,
    Content:  content,
  }
  if _, err := s.messageRepo.Create(ctx, nil, []*types.Message{msg}); err != nil {
    return nil, nil, apierr.Persistence(err)
  }

  // newCount is the application-side guess; the true increment happens
  // inside ApplyLedgerUpdate. Two participants sending at the same instant
  // can disagree with the database at the regime boundary or the 10th-message
  // trigger, which is accepted: the scorer has to run before the update so
  // its result lands in the same atomic expression as this message's delta,
  // and each sender's own requests are serial.
  newCount := chat.MessageCount + 1
  delta := ProgressDelta(content, newCount)
  deltaA, deltaB := 0.0, 0.0
  if chat.IsUserA(userID) {
    deltaA = delta
  } else {
    deltaB = delta
  }

  // every 10th message the quality scorer runs on the critical path and its
  // result lands in the same atomic update as this message's delta
  if newCount%10 == 0 {
    recent, err := s.messageRepo.GetRecentByChatID(ctx, nil, chatID, 20)
    if err != nil {
      s.log.Warn("Could not load excerpt for scoring, skipping", "chatID", chatID, "error", err)
    } else {
      scoreA, scoreB := s.scorer.ScoreRecent(ctx, chat, recent)
      deltaA += float64(scoreA)
      deltaB += float64(scoreB)
    }
  }

  updated, err := s.chatRepo.ApplyLedgerUpdate(ctx, nil, chatID, deltaA, deltaB)
  if err != nil {
    return nil, nil, apierr.Persistence(err)
  }
  if updated == nil {
    return nil, nil, apierr.Persistence(fmt.Errorf("chat %s vanished during ledger update", chatID))
  }

  if !updated.PartialReached &&
    updated.ProgressA > PartialRevealThreshold &&
    updated.ProgressB > PartialRevealThreshold {
    flipped, err := s.chatRepo.MarkPartialReached(ctx, nil, chatID, PartialRevealThreshold)
    if err != nil {
      s.log.Warn("Failed to latch partial reveal", "chatID", chatID, "error", err)
    } else if flipped {
      updated.PartialReached = true
      s.log.Info("Partial reveal reached", "chatID", chatID)
    }
  }

  s.notifier.MessageCreated(updated, msg, flags)
  s.notifier.ChatUpdated(updated)

  if level, crossed := CrossedMilestone(updated.ProgressA, updated.ProgressB, updated.LastQuizLevel); crossed {
    s.log.Info("Milestone crossed, generating quizzes in background", "chatID", chatID, "level", level)
    // fire-and-forget with a fresh context: the sender's request does not
    // wait, and the quiz may be absent for a short window after crossing
    go s.quizGen.GenerateForMilestone(context.Background(), chatID, level)
  }

  return msg, flags, nil
}
