package services

import (
  "regexp"
  "strings"
  "unicode"

  "github.com/veilmatch/veilmatch-backend/internal/logger"
  "github.com/veilmatch/veilmatch-backend/internal/types"
)

// The ghost wall: best-effort detection of contact-info leaks that would let
// a pair skip the reveal funnel. It is abuse friction, not a security
// boundary — false negatives are tolerated, and every internal failure is
// fail-open (treated as no match) so a detector bug can never block chat.

const redactedGlyph = '●'

// phoneSeparator covers the characters people sprinkle into a number to
// dodge naive matching; detection runs on the separator-stripped form.
func phoneSeparator(r rune) bool {
  switch r {
  case ' ', '\t', '-', '.', '(', ')', '/', '_':
    return true
  }
  return false
}

// Local mobile format: leading 09 plus eight digits.
var phonePattern = regexp.MustCompile(`09\d{8}`)

// Platform names, common abbreviations, and bare link fragments. Boundary
// aware so "ignore" never trips the "ig" keyword.
var socialKeywordPattern = regexp.MustCompile(`(?i)\b(instagram|insta|ig|fb|facebook|line|telegram|tg|whatsapp|wechat|weixin|snapchat|snap|twitter|threads|discord|kakao|signal)\b`)

var socialLinkPattern = regexp.MustCompile(`(?i)(https?://\S*|\bhttp\b|www\.\S*|\S+\.(com|net)\b)`)

// Colloquial CJK transliterations of platform names; no word boundaries in
// CJK, so these match as substrings.
var socialCJKKeywords = []string{
  "賴我", "加賴", "微信", "臉書", "脸书", "推特", "電報", "电报", "拉活", "滴簍",
}

type span struct {
  start int // byte offset
  end   int
}

// strippedForm returns content minus separators plus a map from each kept
// rune back to its byte span in the original.
func strippedForm(content string) (string, []span) {
  var sb strings.Builder
  spans := make([]span, 0, len(content))
  for i, r := range content {
    if phoneSeparator(r) {
      continue
    }
    sb.WriteRune(r)
    spans = append(spans, span{start: i, end: i + len(string(r))})
  }
  return sb.String(), spans
}

// phoneSpans locates phone matches and maps them back to original offsets.
func phoneSpans(content string) []span {
  stripped, origin := strippedForm(content)
  matches := phonePattern.FindAllStringIndex(stripped, -1)
  if len(matches) == 0 {
    return nil
  }

  // byte offset -> rune index within the stripped form
  runeIdxAt := make(map[int]int, len(stripped))
  runeIdx := 0
  for byteIdx := range stripped {
    runeIdxAt[byteIdx] = runeIdx
    runeIdx++
  }

  out := make([]span, 0, len(matches))
  for _, m := range matches {
    first, okFirst := runeIdxAt[m[0]]
    if !okFirst {
      continue
    }
    // the match is all ASCII digits, so its rune length equals byte length
    last := first + (m[1] - m[0]) - 1
    if last >= len(origin) {
      continue
    }
    out = append(out, span{start: origin[first].start, end: origin[last].end})
  }
  return out
}

// HasPhoneNumber reports whether content carries a local mobile number,
// including spaced-out or dashed digits.
func HasPhoneNumber(content string) bool {
  return len(phoneSpans(content)) > 0
}

func socialSpans(content string) []span {
  var out []span
  for _, m := range socialKeywordPattern.FindAllStringIndex(content, -1) {
    out = append(out, span{start: m[0], end: m[1]})
  }
  for _, m := range socialLinkPattern.FindAllStringIndex(content, -1) {
    out = append(out, span{start: m[0], end: m[1]})
  }
  for _, kw := range socialCJKKeywords {
    from := 0
    for {
      idx := strings.Index(content[from:], kw)
      if idx < 0 {
        break
      }
      start := from + idx
      out = append(out, span{start: start, end: start + len(kw)})
      from = start + len(kw)
    }
  }
  return out
}

// HasSocialMedia reports whether content solicits an off-platform handle or
// drops a bare link.
func HasSocialMedia(content string) bool {
  return len(socialSpans(content)) > 0
}

func isCJKName(name string) bool {
  for _, r := range name {
    if unicode.Is(unicode.Han, r) {
      return true
    }
  }
  return false
}

// nameWindows yields the 2-rune sliding windows of a CJK name. Two-character
// fragments are already identifying in CJK, which is why the CJK matcher is
// deliberately looser than the Latin one.
func nameWindows(name string) []string {
  runes := []rune(name)
  if len(runes) < 2 {
    return nil
  }
  windows := make([]string, 0, len(runes)-1)
  for i := 0; i+1 < len(runes); i++ {
    windows = append(windows, string(runes[i:i+2]))
  }
  return windows
}

// nameSpans finds direct leaks of realName inside content. Latin names only
// match as the full trimmed string to keep false positives down; CJK names
// match on any 2-rune fragment.
func nameSpans(content, realName string) []span {
  realName = strings.TrimSpace(realName)
  if realName == "" {
    return nil
  }

  if !isCJKName(realName) {
    if strings.EqualFold(strings.TrimSpace(content), realName) {
      return []span{{start: 0, end: len(content)}}
    }
    return nil
  }

  var out []span
  for _, window := range nameWindows(realName) {
    from := 0
    for {
      idx := strings.Index(content[from:], window)
      if idx < 0 {
        break
      }
      start := from + idx
      out = append(out, span{start: start, end: start + len(window)})
      from = start + len(window)
    }
  }
  return out
}

func stripSeparators(s string) string {
  return strings.Map(func(r rune) rune {
    if phoneSeparator(r) {
      return -1
    }
    return r
  }, s)
}

// hasSplitNameLeak concatenates up to the previous two messages with the
// current one and looks for the full name spanning the message boundary —
// the character-by-character spelling trick. Both the history and the name
// are compared separator-stripped, so "Lily Hart" split as "Lily" + "Hart"
// still matches the stripped history "...LilyHart". A match that sits
// entirely inside one message never counts: those are the direct detector's
// call, and the Latin direct policy is deliberately whole-message only.
func hasSplitNameLeak(content string, previous []string, realName string) bool {
  needle := stripSeparators(strings.TrimSpace(realName))
  if needle == "" {
    return false
  }
  if len(previous) > 2 {
    previous = previous[len(previous)-2:]
  }
  prev := stripSeparators(strings.Join(previous, ""))
  cur := stripSeparators(content)
  if !isCJKName(realName) {
    prev = strings.ToLower(prev)
    cur = strings.ToLower(cur)
    needle = strings.ToLower(needle)
  }
  combined := prev + cur
  boundary := len(prev)
  for from := 0; ; {
    idx := strings.Index(combined[from:], needle)
    if idx < 0 {
      return false
    }
    start := from + idx
    if start < boundary && start+len(needle) > boundary {
      return true
    }
    from = start + 1
  }
}

// GhostwallService inspects outgoing messages before they are persisted and
// produces a sanitized form where detectors fired. Sanitized content is what
// gets stored and fanned out.
type GhostwallService interface {
  Inspect(content string, previous []string, senderRealName string) []types.ContentFlag
  Sanitize(content string, flags []types.ContentFlag) string
}

type ghostwallService struct {
  log *logger.Logger
}

func NewGhostwallService(log *logger.Logger) GhostwallService {
  return &ghostwallService{log: log.With("service", "GhostwallService")}
}

func (g *ghostwallService) Inspect(content string, previous []string, senderRealName string) (flags []types.ContentFlag) {
  defer func() {
    if r := recover(); r != nil {
      g.log.Warn("Ghost wall detector panicked; failing open", "panic", r)
      flags = nil
    }
  }()

  for _, sp := range phoneSpans(content) {
    flags = append(flags, types.ContentFlag{
      Detector:   types.DetectorPhone,
      Span:       content[sp.start:sp.end],
      Confidence: types.ConfidenceExact,
    })
  }
  for _, sp := range socialSpans(content) {
    flags = append(flags, types.ContentFlag{
      Detector:   types.DetectorSocial,
      Span:       content[sp.start:sp.end],
      Confidence: types.ConfidenceExact,
    })
  }

  directNameSpans := nameSpans(content, senderRealName)
  for _, sp := range directNameSpans {
    flags = append(flags, types.ContentFlag{
      Detector:   types.DetectorName,
      Span:       content[sp.start:sp.end],
      Confidence: types.ConfidenceExact,
    })
  }
  if len(directNameSpans) == 0 && hasSplitNameLeak(content, previous, senderRealName) {
    flags = append(flags, types.ContentFlag{
      Detector:   types.DetectorName,
      Span:       strings.TrimSpace(senderRealName),
      Confidence: types.ConfidenceSplit,
    })
  }
  return flags
}

// Sanitize replaces flagged spans with the placeholder glyph while keeping
// separator characters, so the redacted message retains its visual shape.
func (g *ghostwallService) Sanitize(content string, flags []types.ContentFlag) (out string) {
  defer func() {
    if r := recover(); r != nil {
      g.log.Warn("Ghost wall sanitizer panicked; passing content through", "panic", r)
      out = content
    }
  }()

  if len(flags) == 0 {
    return content
  }

  var spans []span
  var nameFragments bool
  for _, f := range flags {
    switch f.Detector {
    case types.DetectorPhone:
      spans = append(spans, phoneSpans(content)...)
    case types.DetectorSocial:
      spans = append(spans, socialSpans(content)...)
    case types.DetectorName:
      if f.Confidence == types.ConfidenceSplit {
        nameFragments = true
      }
      spans = append(spans, nameSpans(content, f.Span)...)
    }
  }
  if nameFragments {
    // a split leak redacts whatever fragment of the name sits in this
    // message, even when the full name never appears here
    for _, f := range flags {
      if f.Detector == types.DetectorName && f.Confidence == types.ConfidenceSplit {
        spans = append(spans, fragmentSpans(content, f.Span)...)
      }
    }
  }

  return redactSpans(content, spans)
}

// fragmentSpans finds any run of 1+ leading/trailing characters of name
// inside content, used for redacting split leaks.
func fragmentSpans(content, name string) []span {
  runes := []rune(strings.TrimSpace(name))
  if len(runes) == 0 {
    return nil
  }
  var out []span
  // longest prefix and suffix fragments first
  for n := len(runes); n >= 1; n-- {
    prefix := string(runes[:n])
    if idx := strings.Index(content, prefix); idx >= 0 {
      out = append(out, span{start: idx, end: idx + len(prefix)})
      break
    }
  }
  for n := len(runes); n >= 1; n-- {
    suffix := string(runes[len(runes)-n:])
    if idx := strings.Index(content, suffix); idx >= 0 {
      out = append(out, span{start: idx, end: idx + len(suffix)})
      break
    }
  }
  return out
}

func redactSpans(content string, spans []span) string {
  if len(spans) == 0 {
    return content
  }
  redact := make([]bool, len(content))
  for _, sp := range spans {
    if sp.start < 0 || sp.end > len(content) || sp.start >= sp.end {
      continue
    }
    for i := sp.start; i < sp.end; i++ {
      redact[i] = true
    }
  }

  var sb strings.Builder
  for i, r := range content {
    if redact[i] && !phoneSeparator(r) {
      sb.WriteRune(redactedGlyph)
      continue
    }
    sb.WriteRune(r)
  }
  return sb.String()
}
