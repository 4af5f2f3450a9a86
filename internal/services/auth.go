package services

import (
  "context"
  "fmt"
  "strings"
  "time"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "golang.org/x/crypto/bcrypt"
  "gorm.io/gorm"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/normalization"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/requestdata"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

type JWTClaims struct {
  jwt.RegisteredClaims
}

type AuthService interface {
  RegisterUser(ctx context.Context, user *types.User) error
  LoginUser(ctx context.Context, email, password string) (string, string, error)
  RefreshUser(ctx context.Context) (string, string, error)
  LogoutUser(ctx context.Context) error
  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
  GetAccessTTL() time.Duration
}

type authService struct {
  db            *gorm.DB
  log           *logger.Logger
  userRepo      repos.UserRepo
  userTokenRepo repos.UserTokenRepo
  jwtSecretKey  string
  accessTTL     time.Duration
  refreshTTL    time.Duration
}

func NewAuthService(
  db *gorm.DB,
  log *logger.Logger,
  userRepo repos.UserRepo,
  userTokenRepo repos.UserTokenRepo,
  jwtSecretKey string,
  accessTTL time.Duration,
  refreshTTL time.Duration,
) AuthService {
  serviceLog := log.With("service", "AuthService")
  return &authService{
    db:            db,
    log:           serviceLog,
    userRepo:      userRepo,
    userTokenRepo: userTokenRepo,
    jwtSecretKey:  jwtSecretKey,
    accessTTL:     accessTTL,
    refreshTTL:    refreshTTL,
  }
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User) error {
  user.Email = normalization.ParseInputString(user.Email)
  user.DisplayName = normalization.ParseName(user.DisplayName)
  user.RealName = normalization.ParseName(user.RealName)

  if user.Email == "" || !strings.Contains(user.Email, "@") {
    return apierr.Validation("a valid email is required")
  }
  if len(user.Password) < 8 {
    return apierr.Validation("password must be at least 8 characters")
  }
  if user.DisplayName == "" {
    return apierr.Validation("display name is required")
  }

  existing, err := as.userRepo.GetByEmails(ctx, nil, []string{user.Email})
  if err != nil {
    return apierr.Persistence(fmt.Errorf("Failed to check existing email: %w", err))
  }
  if len(existing) > 0 {
    return apierr.Validation("email is already registered")
  }

  hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
  if err != nil {
    return apierr.Persistence(fmt.Errorf("Failed to hash password: %w", err))
  }
  user.Password = string(hashed)
  user.ID = uuid.New()
  if user.MaskScale == 0 {
    user.MaskPosX = 0.5
    user.MaskPosY = 0.35
    user.MaskScale = 1
  }

  return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := as.userRepo.Create(ctx, tx, []*types.User{user}); err != nil {
      return apierr.Persistence(fmt.Errorf("Failed to create user: %w", err))
    }
    return nil
  })
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
  email = normalization.ParseInputString(email)
  if email == "" || password == "" {
    return "", "", apierr.Validation("email and password are required")
  }

  users, err := as.userRepo.GetByEmails(ctx, nil, []string{email})
  if err != nil {
    return "", "", apierr.Persistence(fmt.Errorf("Failed to fetch user by email: %w", err))
  }
  if len(users) == 0 {
    return "", "", apierr.Unauthenticated("invalid email or password")
  }
  user := users[0]
  if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
    return "", "", apierr.Unauthenticated("invalid email or password")
  }

  var accessToken, refreshToken string
  txErr := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    // One active session per user: stale tokens are swept on login.
    if err := as.userTokenRepo.FullDeleteByUserIDs(ctx, tx, []uuid.UUID{user.ID}); err != nil {
      return apierr.Persistence(fmt.Errorf("Failed to clear prior sessions: %w", err))
    }
    tok, genErr := as.generateAccessToken(user)
    if genErr != nil {
      return apierr.Persistence(fmt.Errorf("Failed to generate access token: %w", genErr))
    }
    accessToken = tok
    refreshToken = uuid.New().String()
    userToken := types.UserToken{
      ID:           uuid.New(),
      UserID:       user.ID,
      AccessToken:  accessToken,
      RefreshToken: refreshToken,
      ExpiresAt:    time.Now().Add(as.refreshTTL),
    }
    if _, err := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{&userToken}); err != nil {
      return apierr.Persistence(fmt.Errorf("Failed to create user token: %w", err))
    }
    return nil
  })
  if txErr != nil {
    return "", "", txErr
  }
  return accessToken, refreshToken, nil
}

func (as *authService) RefreshUser(ctx context.Context) (string, string, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.RefreshToken == "" {
    return "", "", apierr.Unauthenticated("no refresh token in request context")
  }

  var accessToken, newRefreshToken string
  txErr := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    foundTokens, err := as.userTokenRepo.GetByRefreshTokens(ctx, tx, []string{rd.RefreshToken})
    if err != nil {
      return apierr.Persistence(fmt.Errorf("Failed to fetch refresh token: %w", err))
    }
    if len(foundTokens) == 0 {
      return apierr.Unauthenticated("unknown refresh token")
    }
    existingToken := foundTokens[0]
    if existingToken.ExpiresAt.Before(time.Now()) {
      if err := as.userTokenRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{existingToken.ID}); err != nil {
        as.log.Warn("Failed to delete expired refresh token", "error", err)
      }
      return apierr.Unauthenticated("refresh token expired")
    }
    users, err := as.userRepo.GetByIDs(ctx, tx, []uuid.UUID{existingToken.UserID})
    if err != nil {
      return apierr.Persistence(fmt.Errorf("Failed to load user for refresh: %w", err))
    }
    if len(users) == 0 {
      return apierr.Unauthenticated("no user found for refresh token")
    }
    user := users[0]
    tok, genErr := as.generateAccessToken(user)
    if genErr != nil {
      return apierr.Persistence(fmt.Errorf("Failed to generate access token: %w", genErr))
    }
    accessToken = tok
    newRefreshToken = uuid.New().String()
    newUserToken := types.UserToken{
      ID:           uuid.New(),
      UserID:       user.ID,
      AccessToken:  accessToken,
      RefreshToken: newRefreshToken,
      ExpiresAt:    time.Now().Add(as.refreshTTL),
    }
    if _, err := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{&newUserToken}); err != nil {
      return apierr.Persistence(fmt.Errorf("Failed to create rotated token: %w", err))
    }
    if err := as.userTokenRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{existingToken.ID}); err != nil {
      return apierr.Persistence(fmt.Errorf("Failed to remove old refresh token: %w", err))
    }
    return nil
  })
  if txErr != nil {
    return "", "", txErr
  }
  return accessToken, newRefreshToken, nil
}

func (as *authService) LogoutUser(ctx context.Context) error {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.TokenString == "" {
    return apierr.Unauthenticated("no access token in request context")
  }
  return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    foundTokens, err := as.userTokenRepo.GetByAccessTokens(ctx, tx, []string{rd.TokenString})
    if err != nil {
      return apierr.Persistence(fmt.Errorf("Failed to find user token: %w", err))
    }
    if len(foundTokens) == 0 {
      return nil
    }
    if err := as.userTokenRepo.FullDeleteByIDs(ctx, tx, []uuid.UUID{foundTokens[0].ID}); err != nil {
      return apierr.Persistence(fmt.Errorf("Failed to delete user token: %w", err))
    }
    return nil
  })
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
  claims := JWTClaims{
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   user.ID.String(),
      ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
      IssuedAt:  jwt.NewNumericDate(time.Now()),
    },
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, nil
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, apierr.Unauthenticated("invalid or expired token")
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, apierr.Unauthenticated("invalid or expired token")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, apierr.Unauthenticated("invalid subject in token")
  }

  var refreshToken string
  foundTokens, ftErr := as.userTokenRepo.GetByAccessTokens(ctx, nil, []string{tokenString})
  if ftErr != nil {
    as.log.Warn("Failed to fetch user token by access token", "error", ftErr)
  } else if len(foundTokens) > 0 {
    refreshToken = foundTokens[0].RefreshToken
  }

  rd := &requestdata.RequestData{
    TokenString:  tokenString,
    RefreshToken: refreshToken,
    UserID:       userID,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
  return as.accessTTL
}
