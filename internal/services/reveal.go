package services

import (
  "github.com/google/uuid"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

// Disclosure tiers. Derived from the ledger plus the latched flags on the
// chat row, never stored as a tier of their own. Transitions only move
// forward: both partial_reached and revealed_to_* are one-way latches, so a
// computed tier can never regress even if a future change made progress
// decrease.
type RevealTier string

const (
  RevealLocked  RevealTier = "locked"
  RevealPartial RevealTier = "partial"
  RevealFull    RevealTier = "full"
)

// PartialRevealThreshold is the per-participant progress both sides must
// exceed before the blur comes off.
const PartialRevealThreshold = 50.0

// RevealTierFor computes the disclosure tier of the partner's identity as
// seen by viewerID.
func RevealTierFor(chat *types.Chat, viewerID uuid.UUID) RevealTier {
  if chat == nil {
    return RevealLocked
  }
  if chat.RevealedTo(viewerID) {
    return RevealFull
  }
  if chat.PartialReached {
    return RevealPartial
  }
  if chat.ProgressA > PartialRevealThreshold && chat.ProgressB > PartialRevealThreshold {
    return RevealPartial
  }
  return RevealLocked
}

// PartnerCard is the tier-filtered view of the other participant that chat
// surfaces hand to clients.
type PartnerCard struct {
  UserID      uuid.UUID  `json:"user_id"`
  DisplayName string     `json:"display_name"`
  RealName    string     `json:"real_name,omitempty"`
  Tier        RevealTier `json:"tier"`
  AvatarURL   string     `json:"avatar_url"`
  MaskPosX    float64    `json:"mask_pos_x"`
  MaskPosY    float64    `json:"mask_pos_y"`
  MaskScale   float64    `json:"mask_scale"`
}

// BuildPartnerCard picks the avatar variant and identity fields allowed at
// the given tier. Locked serves the blurred-and-masked variant, partial the
// unblurred-but-masked variant, full the original photo plus the real name.
func BuildPartnerCard(partner *types.User, tier RevealTier) PartnerCard {
  card := PartnerCard{
    UserID:      partner.ID,
    DisplayName: partner.DisplayName,
    Tier:        tier,
    MaskPosX:    partner.MaskPosX,
    MaskPosY:    partner.MaskPosY,
    MaskScale:   partner.MaskScale,
  }
  switch tier {
  case RevealFull:
    card.AvatarURL = partner.AvatarURL
    card.RealName = partner.RealName
  case RevealPartial:
    card.AvatarURL = partner.AvatarPartialURL
  default:
    card.AvatarURL = partner.AvatarMaskedURL
  }
  return card
}
