package services

import (
  "strings"
  "testing"

  "github.com/veilmatch/veilmatch-backend/internal/types"
)

func newTestGhostwall(t *testing.T) GhostwallService {
  t.Helper()
  return NewGhostwallService(mustTestLogger(t))
}

func TestHasPhoneNumber(t *testing.T) {
  tests := []struct {
    name    string
    content string
    want    bool
  }{
    {name: "plain number", content: "call me at 0912345678", want: true},
    {name: "spaced digits", content: "0 9 1 2 3 4 5 6 7 8", want: true},
    {name: "dashed", content: "0912-345-678 ok?", want: true},
    {name: "dotted and bracketed", content: "(09)12.345.678", want: true},
    {name: "too few digits", content: "091234567", want: false},
    {name: "wrong prefix", content: "0812345678", want: false},
    {name: "digits split by letters", content: "0912a345678", want: false},
    {name: "no digits at all", content: "see you at nine", want: false},
    {name: "number inside cjk text", content: "打給我0987654321喔", want: true},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      if got := HasPhoneNumber(tt.content); got != tt.want {
        t.Fatalf("HasPhoneNumber(%q) = %v, want %v", tt.content, got, tt.want)
      }
    })
  }
}

func TestHasSocialMedia(t *testing.T) {
  tests := []struct {
    name    string
    content string
    want    bool
  }{
    {name: "platform name", content: "add me on instagram", want: true},
    {name: "short handle hint", content: "my IG is cooldog", want: true},
    {name: "keyword inside a word does not trip", content: "don't ignore me", want: false},
    {name: "tg boundary", content: "tg: someuser", want: true},
    {name: "word containing tg", content: "mortgage rates are up", want: false},
    {name: "bare link", content: "check www.example.org later", want: true},
    {name: "dot com fragment", content: "findme.com", want: true},
    {name: "http scheme", content: "https://t.me/someone", want: true},
    {name: "cjk line solicitation", content: "加賴好嗎", want: true},
    {name: "cjk wechat", content: "我的微信是abc", want: true},
    {name: "plain chat", content: "today was really fun", want: false},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      if got := HasSocialMedia(tt.content); got != tt.want {
        t.Fatalf("HasSocialMedia(%q) = %v, want %v", tt.content, got, tt.want)
      }
    })
  }
}

func TestInspectRealNameDirect(t *testing.T) {
  gw := newTestGhostwall(t)

  t.Run("latin name only as whole message", func(t *testing.T) {
    flags := gw.Inspect("Alex Carter", nil, "Alex Carter")
    if len(flags) != 1 || flags[0].Detector != types.DetectorName {
      t.Fatalf("expected one name flag, got %+v", flags)
    }
    if flags := gw.Inspect("Alex Carter is my favorite author", nil, "Alex Carter"); len(flags) != 0 {
      t.Fatalf("latin name inside a sentence should not flag, got %+v", flags)
    }
  })

  t.Run("cjk name fragment inside sentence", func(t *testing.T) {
    flags := gw.Inspect("我叫陳大明啦", nil, "陳大明")
    if len(flags) == 0 {
      t.Fatalf("expected cjk fragment flags")
    }
    for _, f := range flags {
      if f.Detector != types.DetectorName || f.Confidence != types.ConfidenceExact {
        t.Fatalf("unexpected flag %+v", f)
      }
    }
  })

  t.Run("two rune cjk fragment is enough", func(t *testing.T) {
    if flags := gw.Inspect("大明今天好嗎", nil, "陳大明"); len(flags) == 0 {
      t.Fatalf("expected a flag for the 大明 window")
    }
  })
}

func TestInspectSplitNameLeak(t *testing.T) {
  gw := newTestGhostwall(t)

  t.Run("cjk name spelled across messages", func(t *testing.T) {
    flags := gw.Inspect("明", []string{"陳", "大"}, "陳大明")
    if len(flags) != 1 {
      t.Fatalf("expected one split flag, got %+v", flags)
    }
    if flags[0].Confidence != types.ConfidenceSplit {
      t.Fatalf("confidence = %q, want %q", flags[0].Confidence, types.ConfidenceSplit)
    }
  })

  t.Run("latin name split with separators", func(t *testing.T) {
    flags := gw.Inspect("ter", []string{"car", ""}, "Carter")
    if len(flags) != 1 || flags[0].Confidence != types.ConfidenceSplit {
      t.Fatalf("expected a split flag, got %+v", flags)
    }
  })

  t.Run("multi word latin name across messages", func(t *testing.T) {
    flags := gw.Inspect("Hart", []string{"my name is Lily"}, "Lily Hart")
    if len(flags) != 1 || flags[0].Confidence != types.ConfidenceSplit {
      t.Fatalf("expected a split flag, got %+v", flags)
    }
  })

  t.Run("multi word name inside one message stays direct territory", func(t *testing.T) {
    if flags := gw.Inspect("Lily Hart writes great novels", nil, "Lily Hart"); len(flags) != 0 {
      t.Fatalf("in-sentence mention must not flag as split, got %+v", flags)
    }
  })

  t.Run("only last two previous messages count", func(t *testing.T) {
    if flags := gw.Inspect("明", []string{"陳大", "哈哈", "嗯嗯"}, "陳大明"); len(flags) != 0 {
      t.Fatalf("window should be the last two messages, got %+v", flags)
    }
  })

  t.Run("no name configured", func(t *testing.T) {
    if flags := gw.Inspect("whatever", []string{"a", "b"}, ""); len(flags) != 0 {
      t.Fatalf("empty name must never flag, got %+v", flags)
    }
  })
}

func TestSanitize(t *testing.T) {
  gw := newTestGhostwall(t)

  t.Run("phone digits redacted separators kept", func(t *testing.T) {
    content := "call 0912-345-678 tonight"
    flags := gw.Inspect(content, nil, "")
    got := gw.Sanitize(content, flags)
    if strings.ContainsAny(got, "0123456789") {
      t.Fatalf("digits survived sanitization: %q", got)
    }
    if !strings.Contains(got, "-") {
      t.Fatalf("separators should be preserved: %q", got)
    }
    if !strings.Contains(got, "call") || !strings.Contains(got, "tonight") {
      t.Fatalf("surrounding text must be untouched: %q", got)
    }
  })

  t.Run("social keyword redacted", func(t *testing.T) {
    content := "add me on instagram please"
    got := gw.Sanitize(content, gw.Inspect(content, nil, ""))
    if strings.Contains(got, "instagram") {
      t.Fatalf("keyword survived: %q", got)
    }
    if !strings.Contains(got, "please") {
      t.Fatalf("rest of message should remain: %q", got)
    }
  })

  t.Run("split leak redacts the local fragment", func(t *testing.T) {
    content := "明"
    flags := gw.Inspect(content, []string{"陳", "大"}, "陳大明")
    got := gw.Sanitize(content, flags)
    if strings.Contains(got, "明") {
      t.Fatalf("fragment survived: %q", got)
    }
  })

  t.Run("clean message passes through untouched", func(t *testing.T) {
    content := "dinner was amazing"
    if got := gw.Sanitize(content, nil); got != content {
      t.Fatalf("Sanitize changed a clean message: %q", got)
    }
  })
}
