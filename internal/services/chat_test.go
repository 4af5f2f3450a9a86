package services

import (
  "context"
  "strings"
  "sync"
  "testing"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

type fakeScorer struct {
  scoreA int
  scoreB int
  calls  int
}

func (f *fakeScorer) ScoreRecent(ctx context.Context, chat *types.Chat, recent []*types.Message) (int, int) {
  f.calls++
  return f.scoreA, f.scoreB
}

type fakeQuizGen struct {
  mu     sync.Mutex
  levels []int
}

func (f *fakeQuizGen) GenerateForMilestone(ctx context.Context, chatID uuid.UUID, level int) {
  f.mu.Lock()
  defer f.mu.Unlock()
  f.levels = append(f.levels, level)
}

func (f *fakeQuizGen) calledLevels() []int {
  f.mu.Lock()
  defer f.mu.Unlock()
  out := make([]int, len(f.levels))
  copy(out, f.levels)
  return out
}

type chatFixture struct {
  svc      ChatService
  scorer   *fakeScorer
  quizGen  *fakeQuizGen
  chatRepo repos.ChatRepo
  userA    *types.User
  userB    *types.User
  chat     *types.Chat
}

func newChatFixture(t *testing.T, db *gorm.DB) *chatFixture {
  t.Helper()
  log := mustTestLogger(t)
  userRepo := repos.NewUserRepo(db, log)
  chatRepo := repos.NewChatRepo(db, log)
  messageRepo := repos.NewMessageRepo(db, log)

  scorer := &fakeScorer{}
  quizGen := &fakeQuizGen{}
  ghostwall := NewGhostwallService(log)
  notifier := NewChatNotifier(nil)
  svc := NewChatService(db, log, chatRepo, messageRepo, userRepo, ghostwall, scorer, quizGen, notifier)

  userA := &types.User{ID: uuid.New(), Email: uuid.New().String() + "@example.com", Password: "x", DisplayName: "aria", RealName: "陳大明"}
  userB := &types.User{ID: uuid.New(), Email: uuid.New().String() + "@example.com", Password: "x", DisplayName: "bolt", RealName: "Lily Hart"}
  if _, err := userRepo.Create(context.Background(), nil, []*types.User{userA, userB}); err != nil {
    t.Fatalf("create users: %v", err)
  }

  chat, err := svc.CreateChat(context.Background(), userA.ID, userB.ID)
  if err != nil {
    t.Fatalf("CreateChat: %v", err)
  }
  return &chatFixture{svc: svc, scorer: scorer, quizGen: quizGen, chatRepo: chatRepo, userA: userA, userB: userB, chat: chat}
}

func (fx *chatFixture) reload(t *testing.T) *types.Chat {
  t.Helper()
  chats, err := fx.chatRepo.GetByIDs(context.Background(), nil, []uuid.UUID{fx.chat.ID})
  if err != nil || len(chats) == 0 {
    t.Fatalf("reload chat: %v", err)
  }
  return chats[0]
}

func TestCreateChatDeduplicates(t *testing.T) {
  db := newTestDB(t)
  fx := newChatFixture(t, db)
  ctx := context.Background()

  again, err := fx.svc.CreateChat(ctx, fx.userB.ID, fx.userA.ID)
  if err != nil {
    t.Fatalf("CreateChat: %v", err)
  }
  if again.ID != fx.chat.ID {
    t.Fatalf("swapped pair produced a second chat")
  }

  if _, err := fx.svc.CreateChat(ctx, fx.userA.ID, fx.userA.ID); apierr.CodeOf(err) != apierr.CodeValidation {
    t.Fatalf("self chat should be a validation error, got %v", err)
  }
  if _, err := fx.svc.CreateChat(ctx, fx.userA.ID, uuid.New()); apierr.CodeOf(err) != apierr.CodeNotFound {
    t.Fatalf("unknown partner should be not-found, got %v", err)
  }
}

func TestSendMessageUpdatesSenderLedgerSide(t *testing.T) {
  db := newTestDB(t)
  fx := newChatFixture(t, db)
  ctx := context.Background()

  if _, _, err := fx.svc.SendMessage(ctx, fx.userA.ID, fx.chat.ID, "hello over there"); err != nil {
    t.Fatalf("SendMessage: %v", err)
  }

  updated := fx.reload(t)
  if updated.ProgressA != 2.0 {
    t.Fatalf("progress_a = %v, want hook delta 2.0", updated.ProgressA)
  }
  if updated.ProgressB != 0 {
    t.Fatalf("progress_b moved on a message from A: %v", updated.ProgressB)
  }
  if updated.MessageCount != 1 {
    t.Fatalf("message_count = %d, want 1", updated.MessageCount)
  }

  if _, _, err := fx.svc.SendMessage(ctx, fx.userB.ID, fx.chat.ID, "hey yourself"); err != nil {
    t.Fatalf("SendMessage: %v", err)
  }
  updated = fx.reload(t)
  if updated.ProgressB != 2.0 {
    t.Fatalf("progress_b = %v, want 2.0", updated.ProgressB)
  }
}

func TestSendMessageRejectsOutsiderAndEmpty(t *testing.T) {
  db := newTestDB(t)
  fx := newChatFixture(t, db)
  ctx := context.Background()

  if _, _, err := fx.svc.SendMessage(ctx, uuid.New(), fx.chat.ID, "hi"); apierr.CodeOf(err) != apierr.CodeAccessDenied {
    t.Fatalf("outsider should be denied, got %v", err)
  }
  if _, _, err := fx.svc.SendMessage(ctx, fx.userA.ID, fx.chat.ID, ""); apierr.CodeOf(err) != apierr.CodeValidation {
    t.Fatalf("empty message should be rejected, got %v", err)
  }
}

func TestSendMessageScorerFoldsInOnTenth(t *testing.T) {
  db := newTestDB(t)
  fx := newChatFixture(t, db)
  ctx := context.Background()
  fx.scorer.scoreA = 7
  fx.scorer.scoreB = 4

  for i := 0; i < 9; i++ {
    if _, _, err := fx.svc.SendMessage(ctx, fx.userA.ID, fx.chat.ID, "a steady stream of words"); err != nil {
      t.Fatalf("SendMessage %d: %v", i, err)
    }
  }
  if fx.scorer.calls != 0 {
    t.Fatalf("scorer ran before the 10th message")
  }

  if _, _, err := fx.svc.SendMessage(ctx, fx.userB.ID, fx.chat.ID, "and a reply to close the loop"); err != nil {
    t.Fatalf("10th SendMessage: %v", err)
  }
  if fx.scorer.calls != 1 {
    t.Fatalf("scorer calls = %d, want 1", fx.scorer.calls)
  }

  updated := fx.reload(t)
  // 6 hook messages (+2 each) from A, then 3 passive (+0.5) from A,
  // then B's passive message (+0.5) plus the scorer bonus on both sides
  if updated.ProgressA != 6*2.0+3*0.5+7 {
    t.Fatalf("progress_a = %v", updated.ProgressA)
  }
  if updated.ProgressB != 0.5+4 {
    t.Fatalf("progress_b = %v", updated.ProgressB)
  }
}

func TestSendMessageSanitizesBeforePersisting(t *testing.T) {
  db := newTestDB(t)
  fx := newChatFixture(t, db)
  ctx := context.Background()

  msg, flags, err := fx.svc.SendMessage(ctx, fx.userA.ID, fx.chat.ID, "my number is 0912345678")
  if err != nil {
    t.Fatalf("SendMessage: %v", err)
  }
  if len(flags) == 0 {
    t.Fatalf("expected a phone flag")
  }
  if strings.Contains(msg.Content, "0912345678") {
    t.Fatalf("raw number returned to caller: %q", msg.Content)
  }

  stored, err := fx.svc.ListMessages(ctx, fx.userB.ID, fx.chat.ID, 0)
  if err != nil || len(stored) != 1 {
    t.Fatalf("ListMessages: %v", err)
  }
  if strings.Contains(stored[0].Content, "0912345678") {
    t.Fatalf("raw number persisted: %q", stored[0].Content)
  }
}

func TestSendMessageTriggersQuizGenerationOnce(t *testing.T) {
  db := newTestDB(t)
  fx := newChatFixture(t, db)
  ctx := context.Background()

  // push both sides just under the first milestone, then cross it
  if _, err := fx.chatRepo.ApplyLedgerUpdate(ctx, nil, fx.chat.ID, 99, 105); err != nil {
    t.Fatalf("seed ledger: %v", err)
  }

  if _, _, err := fx.svc.SendMessage(ctx, fx.userA.ID, fx.chat.ID, "this should cross the line"); err != nil {
    t.Fatalf("SendMessage: %v", err)
  }

  waitFor(t, time.Second, func() bool { return len(fx.quizGen.calledLevels()) == 1 })
  if levels := fx.quizGen.calledLevels(); len(levels) != 1 || levels[0] != 1 {
    t.Fatalf("quiz generation calls = %v, want [1]", levels)
  }
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
  t.Helper()
  deadline := time.Now().Add(timeout)
  for time.Now().Before(deadline) {
    if cond() {
      return
    }
    time.Sleep(5 * time.Millisecond)
  }
  t.Fatalf("condition not met within %v", timeout)
}
