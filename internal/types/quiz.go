package types

import (
  "encoding/json"
  "fmt"
  "gorm.io/datatypes"
)

// QuizQuestion is one multiple-choice record inside a chat's quiz blob.
// The JSON shape is fixed: a question, exactly three options, and the index
// of the correct option.
type QuizQuestion struct {
  Question string   `json:"question"`
  Options  []string `json:"options"`
  Correct  int      `json:"correct"`
}

const (
  QuizQuestionCount = 5
  QuizOptionCount   = 3
)

func (q *QuizQuestion) Validate() error {
  if q.Question == "" {
    return fmt.Errorf("empty question")
  }
  if len(q.Options) != QuizOptionCount {
    return fmt.Errorf("expected %d options, got %d", QuizOptionCount, len(q.Options))
  }
  for i, opt := range q.Options {
    if opt == "" {
      return fmt.Errorf("empty option at index %d", i)
    }
  }
  if q.Correct < 0 || q.Correct >= QuizOptionCount {
    return fmt.Errorf("correct index %d out of range", q.Correct)
  }
  return nil
}

// ParseQuizQuestions decodes a quiz blob. Nil/empty blobs decode to an empty
// slice, preserving the "no quiz yet" state.
func ParseQuizQuestions(raw datatypes.JSON) ([]QuizQuestion, error) {
  if len(raw) == 0 {
    return nil, nil
  }
  var questions []QuizQuestion
  if err := json.Unmarshal(raw, &questions); err != nil {
    return nil, fmt.Errorf("decode quiz blob: %w", err)
  }
  return questions, nil
}

// MarshalQuizQuestions encodes questions back into the persisted JSON shape.
func MarshalQuizQuestions(questions []QuizQuestion) (datatypes.JSON, error) {
  if questions == nil {
    questions = []QuizQuestion{}
  }
  raw, err := json.Marshal(questions)
  if err != nil {
    return nil, fmt.Errorf("encode quiz blob: %w", err)
  }
  return datatypes.JSON(raw), nil
}
