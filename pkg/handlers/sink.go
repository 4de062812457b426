package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/openfroyo/vpclambda/pkg/engine"
)

// RecordSink receives the records IPReporter produces.
type RecordSink interface {
	Emit(report engine.IPReport) error
}

// JSONRecordSink writes each record as two-space indented JSON followed by a
// newline. Writes are serialized so concurrent reporters never interleave.
type JSONRecordSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONRecordSink creates a sink writing to w. In the Lambda runtime w is
// stdout, which the platform forwards to the function's log stream.
func NewJSONRecordSink(w io.Writer) *JSONRecordSink {
	return &JSONRecordSink{w: w}
}

// Emit writes one record.
func (s *JSONRecordSink) Emit(report engine.IPReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}
