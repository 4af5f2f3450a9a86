package services

import (
  "strings"
  "testing"
)

func TestProgressDelta(t *testing.T) {
  tests := []struct {
    name         string
    content      string
    messageCount int
    want         float64
  }{
    {name: "hook stage long enough", content: "hey there", messageCount: 1, want: 2.0},
    {name: "hook stage exactly three runes", content: "yoo", messageCount: 3, want: 2.0},
    {name: "hook stage too short", content: "ok", messageCount: 2, want: 0},
    {name: "hook stage boundary count", content: "hello", messageCount: 6, want: 2.0},
    {name: "passive stage long enough", content: "thinking about dinner", messageCount: 7, want: 0.5},
    {name: "passive stage exactly six runes", content: "abcdef", messageCount: 40, want: 0.5},
    {name: "passive stage too short", content: "haha", messageCount: 25, want: 0},
    {name: "passive stage five runes is not enough", content: "abcde", messageCount: 10, want: 0},
    {name: "cjk runes counted not bytes", content: "今天過得怎麼樣", messageCount: 99, want: 0.5},
    {name: "cjk short in hook", content: "嗨", messageCount: 1, want: 0},
    {name: "empty message", content: "", messageCount: 1, want: 0},
    {name: "whitespace still counts as runes", content: strings.Repeat(" ", 10), messageCount: 20, want: 0.5},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      got := ProgressDelta(tt.content, tt.messageCount)
      if got != tt.want {
        t.Fatalf("ProgressDelta(%q, %d) = %v, want %v", tt.content, tt.messageCount, got, tt.want)
      }
    })
  }
}

func TestMilestoneLevel(t *testing.T) {
  tests := []struct {
    name      string
    progressA float64
    progressB float64
    want      int
  }{
    {name: "fresh chat", progressA: 0, progressB: 0, want: 0},
    {name: "one side only", progressA: 250, progressB: 40, want: 0},
    {name: "both past first band", progressA: 120, progressB: 101, want: 1},
    {name: "exactly on the boundary", progressA: 100, progressB: 100, want: 1},
    {name: "just below the boundary", progressA: 99.5, progressB: 300, want: 0},
    {name: "deep into level three", progressA: 350, progressB: 310, want: 3},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      got := MilestoneLevel(tt.progressA, tt.progressB)
      if got != tt.want {
        t.Fatalf("MilestoneLevel(%v, %v) = %d, want %d", tt.progressA, tt.progressB, got, tt.want)
      }
    })
  }
}

func TestCrossedMilestone(t *testing.T) {
  tests := []struct {
    name          string
    progressA     float64
    progressB     float64
    lastQuizLevel int
    wantLevel     int
    wantCrossed   bool
  }{
    {name: "nothing yet", progressA: 50, progressB: 60, lastQuizLevel: 0, wantCrossed: false},
    {name: "first crossing", progressA: 101, progressB: 105, lastQuizLevel: 0, wantLevel: 1, wantCrossed: true},
    {name: "already fired", progressA: 110, progressB: 150, lastQuizLevel: 1, wantCrossed: false},
    {name: "skipped a band fires once at current level", progressA: 205, progressB: 230, lastQuizLevel: 0, wantLevel: 2, wantCrossed: true},
    {name: "level behind the latch", progressA: 120, progressB: 130, lastQuizLevel: 3, wantCrossed: false},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      level, crossed := CrossedMilestone(tt.progressA, tt.progressB, tt.lastQuizLevel)
      if crossed != tt.wantCrossed {
        t.Fatalf("crossed = %v, want %v", crossed, tt.wantCrossed)
      }
      if crossed && level != tt.wantLevel {
        t.Fatalf("level = %d, want %d", level, tt.wantLevel)
      }
    })
  }
}
