package services

import (
  "math"
)

// Engagement scoring for the chat ledger. The first messages of a chat (the
// hook stage) earn more than the long tail so a fresh match warms up fast.
const (
  hookStageLimit   = 6
  hookMinLength    = 2
  // NOTE: an old product doc said the hook bonus is +3. It never was; +2 is
  // the value every tuning pass since launch was calibrated against.
  hookDelta        = 2.0
  passiveMinLength = 5
  passiveDelta     = 0.5

  milestoneBand = 100.0
)

// ProgressDelta scores a single message. messageCount is the chat's running
// count including this message. Length is measured in runes so CJK text is
// scored the same as Latin text.
func ProgressDelta(content string, messageCount int) float64 {
  length := len([]rune(content))
  if messageCount <= hookStageLimit {
    if length > hookMinLength {
      return hookDelta
    }
    return 0
  }
  if length > passiveMinLength {
    return passiveDelta
  }
  return 0
}

// MilestoneLevel is derived from the slower participant, which forces mutual
// engagement: one side talking to a wall unlocks nothing.
func MilestoneLevel(progressA, progressB float64) int {
  lower := progressA
  if progressB < lower {
    lower = progressB
  }
  if lower < 0 {
    return 0
  }
  return int(math.Floor(lower / milestoneBand))
}

// CrossedMilestone reports the newly crossed quiz level, if any. A level
// fires exactly once: lastQuizLevel only ever increases.
func CrossedMilestone(progressA, progressB float64, lastQuizLevel int) (int, bool) {
  level := MilestoneLevel(progressA, progressB)
  if level >= 1 && level > lastQuizLevel {
    return level, true
  }
  return 0, false
}
