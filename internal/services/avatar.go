package services

import (
  "bytes"
  "context"
  "fmt"
  "image"
  "image/color"
  "image/png"
  "os"

  _ "image/gif"
  _ "image/jpeg"

  "github.com/fogleman/gg"
  "github.com/golang/freetype/truetype"
  "github.com/google/uuid"
  "golang.org/x/image/draw"
  "golang.org/x/image/font"
  "gorm.io/gorm"

  "github.com/veilmatch/veilmatch-backend/internal/apierr"
  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/repos"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

const (
  avatarSize       = 512
  avatarBlurFactor = 16
)

// AvatarService renders the three disclosure variants of a profile photo:
// the original, the partial variant (photo visible, identity mask drawn on
// top), and the masked variant (blurred photo plus the mask). Clients only
// ever receive the variant their reveal tier allows.
type AvatarService interface {
  SetUserPhoto(ctx context.Context, userID uuid.UUID, raw []byte) (*types.User, error)
  UpdateMaskPlacement(ctx context.Context, userID uuid.UUID, posX, posY, scale float64) (*types.User, error)
}

type avatarService struct {
  db            *gorm.DB
  log           *logger.Logger
  userRepo      repos.UserRepo
  bucketService BucketService
  notifier      ChatNotifier

  fontFace font.Face
}

func NewAvatarService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, bucketService BucketService, notifier ChatNotifier) (AvatarService, error) {
  serviceLog := log.With("service", "AvatarService")

  var face font.Face
  if fontPath := os.Getenv("AVATAR_FONT_PATH"); fontPath != "" {
    raw, err := os.ReadFile(fontPath)
    if err != nil {
      return nil, fmt.Errorf("Failed to read avatar font: %w", err)
    }
    parsed, err := truetype.Parse(raw)
    if err != nil {
      return nil, fmt.Errorf("Failed to parse avatar font: %w", err)
    }
    face = truetype.NewFace(parsed, &truetype.Options{Size: avatarSize / 4})
  } else {
    serviceLog.Warn("AVATAR_FONT_PATH not set; mask overlay renders without glyph")
  }

  return &avatarService{
    db:            db,
    log:           serviceLog,
    userRepo:      userRepo,
    bucketService: bucketService,
    notifier:      notifier,
    fontFace:      face,
  }, nil
}

func (as *avatarService) loadUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
  users, err := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{userID})
  if err != nil {
    return nil, apierr.Persistence(err)
  }
  if len(users) == 0 {
    return nil, apierr.NotFound("user not found")
  }
  return users[0], nil
}

func (as *avatarService) SetUserPhoto(ctx context.Context, userID uuid.UUID, raw []byte) (*types.User, error) {
  user, err := as.loadUser(ctx, userID)
  if err != nil {
    return nil, err
  }

  decoded, _, err := image.Decode(bytes.NewReader(raw))
  if err != nil {
    return nil, apierr.Validation("unreadable image data")
  }
  base := normalizeSquare(decoded, avatarSize)

  if err := as.renderAndStore(ctx, user, base); err != nil {
    return nil, err
  }

  if as.notifier != nil {
    as.notifier.AvatarChanged(userID)
  }
  return as.loadUser(ctx, userID)
}

// renderAndStore uploads all three variants under a fresh key, points the
// user record at them and then cleans up the previous generation.
func (as *avatarService) renderAndStore(ctx context.Context, user *types.User, base *image.RGBA) error {
  oldKey := user.AvatarBucketKey
  newKey := fmt.Sprintf("avatars/%s/%s", user.ID, uuid.New())

  variants := map[string]image.Image{
    "original": base,
    "partial":  as.renderMasked(base, user, false),
    "masked":   as.renderMasked(base, user, true),
  }
  urls := make(map[string]string, len(variants))
  for name, img := range variants {
    key := fmt.Sprintf("%s/%s.png", newKey, name)
    var buf bytes.Buffer
    if err := png.Encode(&buf, img); err != nil {
      return apierr.Persistence(fmt.Errorf("encode %s variant: %w", name, err))
    }
    if err := as.bucketService.UploadFile(ctx, key, &buf); err != nil {
      return apierr.Persistence(fmt.Errorf("upload %s variant: %w", name, err))
    }
    urls[name] = as.bucketService.GetPublicURL(key)
  }

  if err := as.userRepo.UpdateFields(ctx, nil, user.ID, map[string]interface{}{
    "avatar_bucket_key":  newKey,
    "avatar_url":         urls["original"],
    "avatar_partial_url": urls["partial"],
    "avatar_masked_url":  urls["masked"],
  }); err != nil {
    return apierr.Persistence(err)
  }

  if oldKey != "" {
    for _, name := range []string{"original", "partial", "masked"} {
      if err := as.bucketService.DeleteFile(ctx, fmt.Sprintf("%s/%s.png", oldKey, name)); err != nil {
        as.log.Warn("Failed to delete stale avatar variant", "key", oldKey, "variant", name, "error", err)
      }
    }
  }
  return nil
}

// UpdateMaskPlacement stores the user's preferred overlay position/size and
// re-renders the variants when a photo exists.
func (as *avatarService) UpdateMaskPlacement(ctx context.Context, userID uuid.UUID, posX, posY, scale float64) (*types.User, error) {
  if posX < 0 || posX > 1 || posY < 0 || posY > 1 {
    return nil, apierr.Validation("mask position must be within [0,1]")
  }
  if scale <= 0 || scale > 3 {
    return nil, apierr.Validation("mask scale must be within (0,3]")
  }

  if err := as.userRepo.UpdateFields(ctx, nil, userID, map[string]interface{}{
    "mask_pos_x": posX,
    "mask_pos_y": posY,
    "mask_scale": scale,
  }); err != nil {
    return nil, apierr.Persistence(err)
  }

  user, err := as.loadUser(ctx, userID)
  if err != nil {
    return nil, err
  }
  if user.AvatarBucketKey != "" {
    raw, err := as.bucketService.DownloadFile(ctx, fmt.Sprintf("%s/original.png", user.AvatarBucketKey))
    if err != nil {
      return nil, apierr.ExternalService(fmt.Errorf("fetch stored avatar: %w", err))
    }
    decoded, err := png.Decode(bytes.NewReader(raw))
    if err != nil {
      return nil, apierr.Persistence(fmt.Errorf("decode stored avatar: %w", err))
    }
    if err := as.renderAndStore(ctx, user, normalizeSquare(decoded, avatarSize)); err != nil {
      return nil, err
    }
    if as.notifier != nil {
      as.notifier.AvatarChanged(userID)
    }
  }
  return as.loadUser(ctx, userID)
}

// normalizeSquare center-crops and scales to a size x size RGBA image.
func normalizeSquare(src image.Image, size int) *image.RGBA {
  bounds := src.Bounds()
  side := bounds.Dx()
  if bounds.Dy() < side {
    side = bounds.Dy()
  }
  offsetX := bounds.Min.X + (bounds.Dx()-side)/2
  offsetY := bounds.Min.Y + (bounds.Dy()-side)/2
  crop := image.Rect(offsetX, offsetY, offsetX+side, offsetY+side)

  dst := image.NewRGBA(image.Rect(0, 0, size, size))
  draw.CatmullRom.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
  return dst
}

// blurred approximates a strong box blur by collapsing the image and
// re-expanding it.
func blurred(src *image.RGBA) *image.RGBA {
  size := src.Bounds().Dx()
  small := image.NewRGBA(image.Rect(0, 0, size/avatarBlurFactor, size/avatarBlurFactor))
  draw.ApproxBiLinear.Scale(small, small.Bounds(), src, src.Bounds(), draw.Src, nil)
  out := image.NewRGBA(src.Bounds())
  draw.ApproxBiLinear.Scale(out, out.Bounds(), small, small.Bounds(), draw.Src, nil)
  return out
}

// renderMasked draws the identity mask at the user's chosen placement; with
// blur it is the locked-tier variant, without it the partial-tier one.
func (as *avatarService) renderMasked(base *image.RGBA, user *types.User, blur bool) image.Image {
  src := base
  if blur {
    src = blurred(base)
  }

  size := float64(avatarSize)
  dc := gg.NewContext(avatarSize, avatarSize)
  dc.DrawImage(src, 0, 0)

  cx := user.MaskPosX * size
  cy := user.MaskPosY * size
  radius := user.MaskScale * size / 3

  dc.SetColor(color.NRGBA{R: 24, G: 24, B: 28, A: 255})
  dc.DrawCircle(cx, cy, radius)
  dc.Fill()

  dc.SetColor(color.NRGBA{R: 235, G: 235, B: 240, A: 255})
  if as.fontFace != nil {
    dc.SetFontFace(as.fontFace)
    dc.DrawStringAnchored("?", cx, cy, 0.5, 0.5)
  } else {
    dc.DrawCircle(cx, cy, radius/8)
    dc.Fill()
  }

  return dc.Image()
}
