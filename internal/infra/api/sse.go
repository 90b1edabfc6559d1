package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var errStreamingUnsupported = errors.New("streaming unsupported")

const sseDone = "[DONE]"

type sseChunk struct {
	Content string `json:"content"`
}

// sseWriter frames server-sent events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	f, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}
	return &sseWriter{w: w, flusher: f}, nil
}

func (s *sseWriter) Open() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.flusher.Flush()
}

func (s *sseWriter) Content(fragment string) error {
	b, err := json.Marshal(sseChunk{Content: fragment})
	if err != nil {
		return err
	}
	return s.frame("", string(b))
}

func (s *sseWriter) Done() error { return s.frame("", sseDone) }

// Error ends a stream that already sent 200, so the client can tell a
// failure from a truncated body.
func (s *sseWriter) Error(msg string) error {
	b, err := json.Marshal(errorResponse{Error: msg})
	if err != nil {
		return err
	}
	return s.frame("error", string(b))
}

func (s *sseWriter) frame(event, data string) error {
	var err error
	if event != "" {
		_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	} else {
		_, err = fmt.Fprintf(s.w, "data: %s\n\n", data)
	}
	if err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
