package processing

import "time"

// Stream identifies one of the parallel work streams.
type Stream int

// Parallel work streams run after the callback resolves.
const (
	StreamValidation Stream = iota + 1
	StreamEnrichment
	StreamQualityCheck
)

// Streams lists every parallel work stream in task order.
var Streams = []Stream{StreamValidation, StreamEnrichment, StreamQualityCheck}

var streamTypes = map[Stream]string{
	StreamValidation:   "validation",
	StreamEnrichment:   "enrichment",
	StreamQualityCheck: "quality-check",
}

var streamDelays = map[Stream]time.Duration{
	StreamValidation:   100 * time.Millisecond,
	StreamEnrichment:   150 * time.Millisecond,
	StreamQualityCheck: 80 * time.Millisecond,
}

// DefaultQualityScore is reported by the quality-check stream.
const DefaultQualityScore = 0.95

// String returns the stream type name.
func (s Stream) String() string {
	if t, ok := streamTypes[s]; ok {
		return t
	}
	return "unknown"
}

// StreamRequest is the input of one parallel work stream.
type StreamRequest struct {
	Stream    Stream `json:"stream"`
	ItemCount int    `json:"itemCount"`
}

// StreamResult reports one completed work stream.
type StreamResult struct {
	Task           int       `json:"task"`
	Type           string    `json:"type"`
	Result         string    `json:"result"`
	ItemsValidated int       `json:"itemsValidated,omitempty"`
	ItemsEnriched  int       `json:"itemsEnriched,omitempty"`
	QualityScore   float64   `json:"qualityScore,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// RunStream builds the result of stream s over itemCount items.
func RunStream(s Stream, itemCount int, now time.Time) StreamResult {
	r := StreamResult{
		Task:      int(s),
		Type:      s.String(),
		Result:    StatusCompleted,
		Timestamp: now.UTC(),
	}
	switch s {
	case StreamValidation:
		r.ItemsValidated = itemCount
	case StreamEnrichment:
		r.ItemsEnriched = itemCount
	case StreamQualityCheck:
		r.QualityScore = DefaultQualityScore
	}
	return r
}
