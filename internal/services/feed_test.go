package services

import (
  "context"
  "testing"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

func newFeedFixture(t *testing.T, db *gorm.DB) (*feedService, repos.UserRepo, repos.ChatRepo) {
  t.Helper()
  log := mustTestLogger(t)
  userRepo := repos.NewUserRepo(db, log)
  chatRepo := repos.NewChatRepo(db, log)
  feedRepo := repos.NewDailyFeedRepo(db, log)
  svc := NewFeedService(db, log, userRepo, chatRepo, feedRepo).(*feedService)
  return svc, userRepo, chatRepo
}

func seedUser(t *testing.T, userRepo repos.UserRepo, displayName, gender string, birthdate *time.Time) *types.User {
  t.Helper()
  u := &types.User{
    ID:          uuid.New(),
    Email:       uuid.New().String() + "@example.com",
    Password:    "x",
    DisplayName: displayName,
    Gender:      gender,
    Birthdate:   birthdate,
  }
  if _, err := userRepo.Create(context.Background(), nil, []*types.User{u}); err != nil {
    t.Fatalf("seed user: %v", err)
  }
  return u
}

func TestGetDailyFeedExcludesSelfAndPartners(t *testing.T) {
  db := newTestDB(t)
  svc, userRepo, chatRepo := newFeedFixture(t, db)
  ctx := context.Background()

  requester := seedUser(t, userRepo, "me", "", nil)
  partner := seedUser(t, userRepo, "already-matched", "", nil)
  if _, err := chatRepo.Create(ctx, nil, []*types.Chat{{
    ID: uuid.New(), UserAID: requester.ID, UserBID: partner.ID,
  }}); err != nil {
    t.Fatalf("create chat: %v", err)
  }

  for i := 0; i < 15; i++ {
    seedUser(t, userRepo, "stranger", "", nil)
  }

  feed, err := svc.GetDailyFeed(ctx, requester.ID)
  if err != nil {
    t.Fatalf("GetDailyFeed: %v", err)
  }
  if len(feed) != feedSize {
    t.Fatalf("feed size = %d, want %d", len(feed), feedSize)
  }
  seen := map[uuid.UUID]bool{}
  for _, u := range feed {
    if u.ID == requester.ID {
      t.Fatalf("feed contains the requester")
    }
    if u.ID == partner.ID {
      t.Fatalf("feed contains an existing chat partner")
    }
    if seen[u.ID] {
      t.Fatalf("feed contains a duplicate: %s", u.ID)
    }
    seen[u.ID] = true
  }
}

func TestGetDailyFeedIsStableWithinADay(t *testing.T) {
  db := newTestDB(t)
  svc, userRepo, _ := newFeedFixture(t, db)
  ctx := context.Background()

  requester := seedUser(t, userRepo, "me", "", nil)
  for i := 0; i < 20; i++ {
    seedUser(t, userRepo, "stranger", "", nil)
  }

  day := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
  svc.now = func() time.Time { return day }

  first, err := svc.GetDailyFeed(ctx, requester.ID)
  if err != nil {
    t.Fatalf("first GetDailyFeed: %v", err)
  }

  // later the same day, same order
  svc.now = func() time.Time { return day.Add(9 * time.Hour) }
  second, err := svc.GetDailyFeed(ctx, requester.ID)
  if err != nil {
    t.Fatalf("second GetDailyFeed: %v", err)
  }
  if len(first) != len(second) {
    t.Fatalf("sizes differ: %d vs %d", len(first), len(second))
  }
  for i := range first {
    if first[i].ID != second[i].ID {
      t.Fatalf("order changed at slot %d within the same day", i)
    }
  }

  // a new day recomputes; the old memo row goes away
  svc.now = func() time.Time { return day.Add(26 * time.Hour) }
  if _, err := svc.GetDailyFeed(ctx, requester.ID); err != nil {
    t.Fatalf("next-day GetDailyFeed: %v", err)
  }
  var count int64
  if err := db.Model(&types.DailyFeed{}).Where("user_id = ?", requester.ID).Count(&count).Error; err != nil {
    t.Fatalf("count: %v", err)
  }
  if count != 1 {
    t.Fatalf("stale feed rows kept around: %d", count)
  }
}

func TestGetDailyFeedSparsePool(t *testing.T) {
  db := newTestDB(t)
  svc, userRepo, _ := newFeedFixture(t, db)
  ctx := context.Background()

  requester := seedUser(t, userRepo, "me", "", nil)
  for i := 0; i < 3; i++ {
    seedUser(t, userRepo, "stranger", "", nil)
  }

  feed, err := svc.GetDailyFeed(ctx, requester.ID)
  if err != nil {
    t.Fatalf("GetDailyFeed: %v", err)
  }
  if len(feed) != 3 {
    t.Fatalf("sparse pool should return everyone available, got %d", len(feed))
  }
}

func TestGetDailyFeedGenderTargeting(t *testing.T) {
  db := newTestDB(t)
  svc, userRepo, _ := newFeedFixture(t, db)
  ctx := context.Background()

  birthdate := time.Date(1998, 6, 1, 0, 0, 0, 0, time.UTC)
  requester := seedUser(t, userRepo, "me", types.GenderMale, &birthdate)

  // opposite gender inside the age window
  for i := 0; i < 12; i++ {
    seedUser(t, userRepo, "in-window", types.GenderFemale, &birthdate)
  }
  // opposite gender far outside the window
  old := time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
  outOfWindow := seedUser(t, userRepo, "out-of-window", types.GenderFemale, &old)

  // force every slot to the opposite-gender pull
  svc.coin = func() bool { return true }

  feed, err := svc.GetDailyFeed(ctx, requester.ID)
  if err != nil {
    t.Fatalf("GetDailyFeed: %v", err)
  }
  if len(feed) != feedSize {
    t.Fatalf("feed size = %d, want %d", len(feed), feedSize)
  }
  for _, u := range feed {
    if u.ID == outOfWindow.ID {
      t.Fatalf("age window ignored while the pool is deep enough")
    }
    if u.Gender != types.GenderFemale {
      t.Fatalf("all-opposite coin produced gender %q", u.Gender)
    }
  }
}
