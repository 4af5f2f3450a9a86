package types

// ContentFlag is an ephemeral detector result attached to a message while it
// moves through the send pipeline. Never persisted.
type ContentFlag struct {
  Detector   string `json:"detector"`
  Span       string `json:"span"`
  Confidence string `json:"confidence"`
}

const (
  DetectorPhone  = "phone"
  DetectorSocial = "social"
  DetectorName   = "name"

  ConfidenceExact = "exact"
  ConfidenceSplit = "split"
)
