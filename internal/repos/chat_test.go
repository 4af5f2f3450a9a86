package repos

import (
  "context"
  "testing"

  "github.com/google/uuid"
)

func TestApplyLedgerUpdate(t *testing.T) {
  db := newTestDB(t)
  repo := NewChatRepo(db, mustTestLogger(t))
  ctx := context.Background()

  userA := createTestUser(t, db, "aria")
  userB := createTestUser(t, db, "bolt")
  chat := createTestChat(t, db, userA, userB)

  if _, err := repo.ApplyLedgerUpdate(ctx, nil, chat.ID, 2.0, 0); err != nil {
    t.Fatalf("ApplyLedgerUpdate: %v", err)
  }
  if _, err := repo.ApplyLedgerUpdate(ctx, nil, chat.ID, 0, 0.5); err != nil {
    t.Fatalf("ApplyLedgerUpdate: %v", err)
  }

  // the returned row carries the post-update counters, no reload needed
  got, err := repo.ApplyLedgerUpdate(ctx, nil, chat.ID, 2.0, 0)
  if err != nil {
    t.Fatalf("ApplyLedgerUpdate: %v", err)
  }
  if got == nil {
    t.Fatalf("expected the updated chat back")
  }
  if got.ProgressA != 4.0 {
    t.Fatalf("progress_a = %v, want 4.0", got.ProgressA)
  }
  if got.ProgressB != 0.5 {
    t.Fatalf("progress_b = %v, want 0.5", got.ProgressB)
  }
  if got.MessageCount != 3 {
    t.Fatalf("message_count = %d, want 3", got.MessageCount)
  }

  chats, err := repo.GetByIDs(ctx, nil, []uuid.UUID{chat.ID})
  if err != nil || len(chats) != 1 {
    t.Fatalf("GetByIDs: %v", err)
  }
  if chats[0].MessageCount != got.MessageCount {
    t.Fatalf("returned count %d disagrees with stored %d", got.MessageCount, chats[0].MessageCount)
  }

  if missing, err := repo.ApplyLedgerUpdate(ctx, nil, uuid.New(), 1, 1); err != nil || missing != nil {
    t.Fatalf("unknown chat: got %v err %v, want nil row and nil error", missing, err)
  }
}

func TestSetQuizzesForLevelGuard(t *testing.T) {
  db := newTestDB(t)
  repo := NewChatRepo(db, mustTestLogger(t))
  ctx := context.Background()

  userA := createTestUser(t, db, "aria")
  userB := createTestUser(t, db, "bolt")
  chat := createTestChat(t, db, userA, userB)

  quizA := []byte(`[{"question":"qa","options":["a","b","c"],"correct":0}]`)
  quizB := []byte(`[{"question":"qb","options":["a","b","c"],"correct":1}]`)

  wrote, err := repo.SetQuizzesForLevel(ctx, nil, chat.ID, 1, quizA, quizB)
  if err != nil {
    t.Fatalf("SetQuizzesForLevel: %v", err)
  }
  if !wrote {
    t.Fatalf("first write for level 1 must win")
  }

  // a second writer for the same level loses
  wrote, err = repo.SetQuizzesForLevel(ctx, nil, chat.ID, 1, []byte(`[]`), []byte(`[]`))
  if err != nil {
    t.Fatalf("SetQuizzesForLevel: %v", err)
  }
  if wrote {
    t.Fatalf("duplicate write for level 1 must be rejected")
  }

  // a stale writer for a lower level loses too
  if wrote, _ = repo.SetQuizzesForLevel(ctx, nil, chat.ID, 0, quizA, quizB); wrote {
    t.Fatalf("write for a lower level must be rejected")
  }

  // the next level is a fresh slot
  wrote, err = repo.SetQuizzesForLevel(ctx, nil, chat.ID, 2, quizA, quizB)
  if err != nil || !wrote {
    t.Fatalf("level 2 write: wrote=%v err=%v", wrote, err)
  }

  chats, err := repo.GetByIDs(ctx, nil, []uuid.UUID{chat.ID})
  if err != nil || len(chats) != 1 {
    t.Fatalf("GetByIDs: %v", err)
  }
  if chats[0].LastQuizLevel != 2 {
    t.Fatalf("last_quiz_level = %d, want 2", chats[0].LastQuizLevel)
  }
}

func TestMarkPartialReached(t *testing.T) {
  db := newTestDB(t)
  repo := NewChatRepo(db, mustTestLogger(t))
  ctx := context.Background()

  userA := createTestUser(t, db, "aria")
  userB := createTestUser(t, db, "bolt")
  chat := createTestChat(t, db, userA, userB)

  flipped, err := repo.MarkPartialReached(ctx, nil, chat.ID, 50.0)
  if err != nil {
    t.Fatalf("MarkPartialReached: %v", err)
  }
  if flipped {
    t.Fatalf("latch must not flip below the threshold")
  }

  if _, err := repo.ApplyLedgerUpdate(ctx, nil, chat.ID, 51, 52); err != nil {
    t.Fatalf("ApplyLedgerUpdate: %v", err)
  }

  flipped, err = repo.MarkPartialReached(ctx, nil, chat.ID, 50.0)
  if err != nil || !flipped {
    t.Fatalf("latch should flip once both sides exceed the threshold: flipped=%v err=%v", flipped, err)
  }

  // second call is a no-op
  flipped, err = repo.MarkPartialReached(ctx, nil, chat.ID, 50.0)
  if err != nil {
    t.Fatalf("MarkPartialReached: %v", err)
  }
  if flipped {
    t.Fatalf("latch is one-way, second flip reported")
  }
}

func TestMarkRevealedPerSide(t *testing.T) {
  db := newTestDB(t)
  repo := NewChatRepo(db, mustTestLogger(t))
  ctx := context.Background()

  userA := createTestUser(t, db, "aria")
  userB := createTestUser(t, db, "bolt")
  chat := createTestChat(t, db, userA, userB)

  if err := repo.MarkRevealed(ctx, nil, chat.ID, userB.ID, false); err != nil {
    t.Fatalf("MarkRevealed: %v", err)
  }

  chats, err := repo.GetByIDs(ctx, nil, []uuid.UUID{chat.ID})
  if err != nil || len(chats) != 1 {
    t.Fatalf("GetByIDs: %v", err)
  }
  if chats[0].RevealedToA {
    t.Fatalf("revealing to B must not touch A")
  }
  if !chats[0].RevealedToB {
    t.Fatalf("revealed_to_b not set")
  }
}

func TestGetByPairIsOrderless(t *testing.T) {
  db := newTestDB(t)
  repo := NewChatRepo(db, mustTestLogger(t))
  ctx := context.Background()

  userA := createTestUser(t, db, "aria")
  userB := createTestUser(t, db, "bolt")
  chat := createTestChat(t, db, userA, userB)

  found, err := repo.GetByPair(ctx, nil, userB.ID, userA.ID)
  if err != nil {
    t.Fatalf("GetByPair: %v", err)
  }
  if found == nil || found.ID != chat.ID {
    t.Fatalf("swapped pair lookup failed: %+v", found)
  }

  missing, err := repo.GetByPair(ctx, nil, userA.ID, uuid.New())
  if err != nil {
    t.Fatalf("GetByPair: %v", err)
  }
  if missing != nil {
    t.Fatalf("unknown pair should return nil, got %+v", missing)
  }
}
