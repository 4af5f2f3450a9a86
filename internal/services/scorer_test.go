package services

import (
  "context"
  "errors"
  "testing"
  "time"

  "github.com/google/uuid"

  "github.com/veilmatch/veilmatch-backend/internal/types"
)

type fakeOpenAI struct {
  obj map[string]any
  err error
}

func (f *fakeOpenAI) GenerateJSON(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (map[string]any, error) {
  return f.obj, f.err
}

func scorerFixture(t *testing.T, client OpenAIClient) (ScorerService, *types.Chat, []*types.Message) {
  t.Helper()
  chat := &types.Chat{
    ID:      uuid.New(),
    UserAID: uuid.New(),
    UserBID: uuid.New(),
  }
  messages := []*types.Message{
    {ID: uuid.New(), ChatID: chat.ID, SenderID: chat.UserAID, Content: "how was the concert", CreatedAt: time.Now()},
    {ID: uuid.New(), ChatID: chat.ID, SenderID: chat.UserBID, Content: "loud but great, you should have come", CreatedAt: time.Now()},
  }
  return NewScorerService(mustTestLogger(t), client), chat, messages
}

func TestScoreRecent(t *testing.T) {
  ctx := context.Background()

  t.Run("valid scores pass through", func(t *testing.T) {
    svc, chat, msgs := scorerFixture(t, &fakeOpenAI{obj: map[string]any{"userA": float64(7), "userB": float64(4)}})
    a, b := svc.ScoreRecent(ctx, chat, msgs)
    if a != 7 || b != 4 {
      t.Fatalf("scores = %d,%d, want 7,4", a, b)
    }
  })

  t.Run("client error degrades to neutral", func(t *testing.T) {
    svc, chat, msgs := scorerFixture(t, &fakeOpenAI{err: errors.New("model unavailable")})
    if a, b := svc.ScoreRecent(ctx, chat, msgs); a != 0 || b != 0 {
      t.Fatalf("scores = %d,%d, want 0,0", a, b)
    }
  })

  t.Run("missing field degrades to neutral", func(t *testing.T) {
    svc, chat, msgs := scorerFixture(t, &fakeOpenAI{obj: map[string]any{"userA": float64(7)}})
    if a, b := svc.ScoreRecent(ctx, chat, msgs); a != 0 || b != 0 {
      t.Fatalf("scores = %d,%d, want 0,0", a, b)
    }
  })

  t.Run("non integer field degrades to neutral", func(t *testing.T) {
    svc, chat, msgs := scorerFixture(t, &fakeOpenAI{obj: map[string]any{"userA": "seven", "userB": float64(4)}})
    if a, b := svc.ScoreRecent(ctx, chat, msgs); a != 0 || b != 0 {
      t.Fatalf("scores = %d,%d, want 0,0", a, b)
    }
  })

  t.Run("out of range scores are clamped", func(t *testing.T) {
    svc, chat, msgs := scorerFixture(t, &fakeOpenAI{obj: map[string]any{"userA": float64(-3), "userB": float64(99)}})
    a, b := svc.ScoreRecent(ctx, chat, msgs)
    if a != 0 || b != 12 {
      t.Fatalf("scores = %d,%d, want 0,12", a, b)
    }
  })

  t.Run("nil chat and empty excerpt are neutral", func(t *testing.T) {
    svc, chat, msgs := scorerFixture(t, &fakeOpenAI{obj: map[string]any{"userA": float64(5), "userB": float64(5)}})
    if a, b := svc.ScoreRecent(ctx, nil, msgs); a != 0 || b != 0 {
      t.Fatalf("nil chat: scores = %d,%d, want 0,0", a, b)
    }
    if a, b := svc.ScoreRecent(ctx, chat, nil); a != 0 || b != 0 {
      t.Fatalf("empty excerpt: scores = %d,%d, want 0,0", a, b)
    }
  })
}
