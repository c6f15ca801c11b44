// Package status implements the Status Streamer: a thin wrapper over an
// HTTP response body that writes newline-delimited JSON progress events
// for the duration of a single request.
//
// Grounded on the teacher's internal/web/sse.go sseWriter (http.Flusher +
// request-context disconnect check), generalized from SSE's
// "event: ...\ndata: ...\n\n" framing to bare ndjson lines per spec §6.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seqthink/engine/internal/formatter"
)

// LineType is the closed set of ndjson line shapes.
type LineType string

const (
	LineStatus LineType = "status"
	LineResult LineType = "result"
	LineError  LineType = "error"
)

type statusLine struct {
	Type      LineType `json:"type"`
	Message   string   `json:"message,omitempty"`
	ID        string   `json:"id,omitempty"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

type resultLine struct {
	Type LineType              `json:"type"`
	Data formatter.StoreFormat `json:"data"`
}

type errorLine struct {
	Type    LineType `json:"type"`
	Kind    string   `json:"kind"`
	Message string   `json:"message"`
}

// Streamer writes ndjson lines to an http.ResponseWriter and tracks
// whether the client connection is still open.
type Streamer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	now     func() time.Time
}

// New prepares ndjson headers and returns a Streamer bound to r's
// context. Returns nil if the ResponseWriter doesn't support flushing.
func New(w http.ResponseWriter, r *http.Request) *Streamer {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return nil
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	return &Streamer{w: w, flusher: flusher, ctx: r.Context(), now: time.Now}
}

// Done reports whether the client has disconnected.
func (s *Streamer) Done() <-chan struct{} { return s.ctx.Done() }

// Emit writes one {type:"status", message, id, timestamp} line. Writes
// are best-effort: a failure is logged and the request continues so that
// a collaborator's side effects (e.g. a DB write) remain consistent.
func (s *Streamer) Emit(message string) {
	s.write(statusLine{
		Type:      LineStatus,
		Message:   message,
		ID:        uuid.NewString(),
		Timestamp: s.now().UnixMilli(),
	})
}

// Result writes the single terminating {type:"result", data} line.
func (s *Streamer) Result(sf formatter.StoreFormat) {
	s.write(resultLine{Type: LineResult, Data: sf})
}

// Error writes the single terminating {type:"error", kind, message} line.
func (s *Streamer) Error(kind, message string) {
	s.write(errorLine{Type: LineError, Kind: kind, Message: message})
}

func (s *Streamer) write(v any) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}
	line, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("status: marshal error")
		return
	}
	line = append(line, '\n')
	if _, err := s.w.Write(line); err != nil {
		log.Warn().Err(err).Msg("status: write error (client disconnected?)")
		return
	}
	s.flusher.Flush()
}
