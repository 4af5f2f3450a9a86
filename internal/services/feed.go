package services

import (
  "context"
  "encoding/json"
  "math/rand"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

const (
  feedSize         = 10
  feedAgeWindow    = 5
  feedOppositeBias = 0.7
)

// FeedService produces the daily-stable candidate list for starting new
// chats. The list is memoized per (user, day): repeated calls within a day
// return the same users in the same order, even if those users acquire
// chats in the meantime.
type FeedService interface {
  GetDailyFeed(ctx context.Context, userID uuid.UUID) ([]*types.User, error)
}

type feedService struct {
  db       *gorm.DB
  log      *logger.Logger
  userRepo repos.UserRepo
  chatRepo repos.ChatRepo
  feedRepo repos.DailyFeedRepo

  now  func() time.Time
  coin func() bool
}

func NewFeedService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, chatRepo repos.ChatRepo, feedRepo repos.DailyFeedRepo) FeedService {
  return &feedService{
    db:       db,
    log:      log.With("service", "FeedService"),
    userRepo: userRepo,
    chatRepo: chatRepo,
    feedRepo: feedRepo,
    now:      time.Now,
    coin:     func() bool { return rand.Float64() < feedOppositeBias },
  }
}

func (s *feedService) GetDailyFeed(ctx context.Context, userID uuid.UUID) ([]*types.User, error) {
  requesters, err := s.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  if len(requesters) == 0 {
    return nil, apierr.NotFound("user not found")
  }
  requester := requesters[0]

  today := types.FeedDateOf(s.now())

  cached, err := s.feedRepo.GetByUserAndDate(ctx, nil, userID, today)
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  if cached != nil {
    return s.resolveCached(ctx, cached)
  }

  partners, err := s.chatRepo.PartnerIDsOf(ctx, nil, userID)
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  exclude := append([]uuid.UUID{userID}, partners...)

  candidates, err := s.computeFeed(ctx, requester, exclude)
  if err != nil {
    return nil, err
  }

  rand.Shuffle(len(candidates), func(i, j int) {
    candidates[i], candidates[j] = candidates[j], candidates[i]
  })

  if err := s.persistFeed(ctx, userID, today, candidates); err != nil {
    // the computed list is still good; losing the memo only costs
    // determinism for the rest of the day
    s.log.Warn("Failed to persist daily feed", "userID", userID, "error", err)
  }
  return candidates, nil
}

// resolveCached fetches the memoized users, preserving the cached order and
// dropping ids that no longer resolve.
func (s *feedService) resolveCached(ctx context.Context, cached *types.DailyFeed) ([]*types.User, error) {
  var ids []uuid.UUID
  if len(cached.CandidateIDs) > 0 {
    if err := json.Unmarshal(cached.CandidateIDs, &ids); err != nil {
      s.log.Warn("Unreadable feed cache row, recomputing tomorrow", "userID", cached.UserID, "error", err)
      return []*types.User{}, nil
    }
  }
  users, err := s.userRepo.GetByIDs(ctx, nil, ids)
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  byID := make(map[uuid.UUID]*types.User, len(users))
  for _, u := range users {
    byID[u.ID] = u
  }
  ordered := make([]*types.User, 0, len(ids))
  for _, id := range ids {
    if u, ok := byID[id]; ok {
      ordered = append(ordered, u)
    }
  }
  return ordered, nil
}

func (s *feedService) computeFeed(ctx context.Context, requester *types.User, exclude []uuid.UUID) ([]*types.User, error) {
  age := requester.AgeAt(s.now())
  targetable := requester.Gender != "" && age >= 0

  var combined []*types.User
  if targetable {
    // independently for each slot, a biased coin decides whether it goes
    // to the opposite or the same gender inside the age window
    oppositeCount := 0
    for i := 0; i < feedSize; i++ {
      if s.coin() {
        oppositeCount++
      }
    }
    sameCount := feedSize - oppositeCount

    opposite := types.GenderFemale
    if requester.Gender == types.GenderFemale {
      opposite = types.GenderMale
    }

    now := s.now()
    bornAfter := now.AddDate(-(age + feedAgeWindow + 1), 0, 0)
    bornBefore := now.AddDate(-(age - feedAgeWindow), 0, 0)

    oppositePull, err := s.userRepo.SampleEligible(ctx, nil, exclude, opposite, &bornAfter, &bornBefore, oppositeCount)
    if err != nil {
      return nil, apierr.Persistence(err)
    }
    samePull, err := s.userRepo.SampleEligible(ctx, nil, exclude, requester.Gender, &bornAfter, &bornBefore, sameCount)
    if err != nil {
      return nil, apierr.Persistence(err)
    }
    combined = append(oppositePull, samePull...)
  } else {
    uniform, err := s.userRepo.SampleEligible(ctx, nil, exclude, "", nil, nil, feedSize)
    if err != nil {
      return nil, apierr.Persistence(err)
    }
    combined = uniform
  }

  // desperation fill: sparse pools ignore age and gender rather than
  // returning a short list
  if len(combined) < feedSize {
    fillExclude := append([]uuid.UUID{}, exclude...)
    for _, u := range combined {
      fillExclude = append(fillExclude, u.ID)
    }
    fill, err := s.userRepo.SampleEligible(ctx, nil, fillExclude, "", nil, nil, feedSize-len(combined))
    if err != nil {
      return nil, apierr.Persistence(err)
    }
    combined = append(combined, fill...)
  }

  return combined, nil
}

func (s *feedService) persistFeed(ctx context.Context, userID uuid.UUID, today string, candidates []*types.User) error {
  ids := make([]uuid.UUID, 0, len(candidates))
  for _, u := range candidates {
    ids = append(ids, u.ID)
  }
  raw, err := json.Marshal(ids)
  if err != nil {
    return err
  }

  return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := s.feedRepo.PurgeStale(ctx, tx, userID, today); err != nil {
      return err
    }
    return s.feedRepo.Upsert(ctx, tx, &types.DailyFeed{
      ID:           uuid.New(),
      UserID:       userID,
      FeedDate:     today,
      CandidateIDs: datatypes.JSON(raw),
    })
  })
}
