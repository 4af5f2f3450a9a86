package repos

import (
  "context"
  "encoding/json"
  "testing"

  "github.com/google/uuid"

  "github.com/veilmatch/veilmatch-backend/internal/types"
)

func feedPayload(t *testing.T, ids ...uuid.UUID) []byte {
  t.Helper()
  raw, err := json.Marshal(ids)
  if err != nil {
    t.Fatalf("marshal candidate ids: %v", err)
  }
  return raw
}

func TestDailyFeedUpsert(t *testing.T) {
  db := newTestDB(t)
  repo := NewDailyFeedRepo(db, mustTestLogger(t))
  ctx := context.Background()

  user := createTestUser(t, db, "aria")
  first := feedPayload(t, uuid.New(), uuid.New())

  if err := repo.Upsert(ctx, nil, &types.DailyFeed{
    ID:           uuid.New(),
    UserID:       user.ID,
    FeedDate:     "2026-09-01",
    CandidateIDs: first,
  }); err != nil {
    t.Fatalf("Upsert: %v", err)
  }

  stored, err := repo.GetByUserAndDate(ctx, nil, user.ID, "2026-09-01")
  if err != nil {
    t.Fatalf("GetByUserAndDate: %v", err)
  }
  if stored == nil || string(stored.CandidateIDs) != string(first) {
    t.Fatalf("stored feed mismatch: %+v", stored)
  }

  // a second writer for the same day replaces the list, no duplicate row
  second := feedPayload(t, uuid.New())
  if err := repo.Upsert(ctx, nil, &types.DailyFeed{
    ID:           uuid.New(),
    UserID:       user.ID,
    FeedDate:     "2026-09-01",
    CandidateIDs: second,
  }); err != nil {
    t.Fatalf("second Upsert: %v", err)
  }

  var count int64
  if err := db.Model(&types.DailyFeed{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
    t.Fatalf("count: %v", err)
  }
  if count != 1 {
    t.Fatalf("expected one row per (user, date), got %d", count)
  }

  stored, err = repo.GetByUserAndDate(ctx, nil, user.ID, "2026-09-01")
  if err != nil || stored == nil {
    t.Fatalf("GetByUserAndDate: %v", err)
  }
  if string(stored.CandidateIDs) != string(second) {
    t.Fatalf("upsert did not replace candidate list")
  }
}

func TestDailyFeedPurgeStale(t *testing.T) {
  db := newTestDB(t)
  repo := NewDailyFeedRepo(db, mustTestLogger(t))
  ctx := context.Background()

  user := createTestUser(t, db, "aria")
  for _, date := range []string{"2026-08-30", "2026-08-31", "2026-09-01"} {
    if err := repo.Upsert(ctx, nil, &types.DailyFeed{
      ID:           uuid.New(),
      UserID:       user.ID,
      FeedDate:     date,
      CandidateIDs: feedPayload(t, uuid.New()),
    }); err != nil {
      t.Fatalf("Upsert %s: %v", date, err)
    }
  }

  if err := repo.PurgeStale(ctx, nil, user.ID, "2026-09-01"); err != nil {
    t.Fatalf("PurgeStale: %v", err)
  }

  var count int64
  if err := db.Model(&types.DailyFeed{}).Where("user_id = ?", user.ID).Count(&count).Error; err != nil {
    t.Fatalf("count: %v", err)
  }
  if count != 1 {
    t.Fatalf("purge should keep only today, got %d rows", count)
  }

  kept, err := repo.GetByUserAndDate(ctx, nil, user.ID, "2026-09-01")
  if err != nil || kept == nil {
    t.Fatalf("today's feed vanished: %v", err)
  }
}
