package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v5"
)

// SSEStreamWriter emits generated characters as server-sent events:
// "char" events carrying {"text": ...} and a final "done" or "error" event.
type SSEStreamWriter struct {
	w       http.ResponseWriter
	flusher func()
	seq     int
	begun   bool
	err     error
}

type streamChar struct {
	Seq  int    `json:"seq"`
	Text string `json:"text"`
}

func NewSSEStreamWriter(c *echo.Context) (*SSEStreamWriter, error) {
	res := c.Response()
	flusher, ok := res.(interface{ Flush() })
	if !ok {
		return nil, fmt.Errorf("streaming unsupported")
	}
	return &SSEStreamWriter{w: res, flusher: flusher.Flush}, nil
}

func (s *SSEStreamWriter) begin() {
	if s.begun {
		return
	}
	s.begun = true
	h := s.w.Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

// Started reports whether any event has been written.
func (s *SSEStreamWriter) Started() bool { return s.begun }

// EmitChar is an inference.StreamFunc. Write failures are kept and returned
// by the next Complete or Failed call.
func (s *SSEStreamWriter) EmitChar(ch string) {
	if s.err != nil {
		return
	}
	s.seq++
	s.err = s.send("char", streamChar{Seq: s.seq, Text: ch})
}

func (s *SSEStreamWriter) Complete(resp GenerateResponse) error {
	if s.err != nil {
		return s.err
	}
	return s.send("done", resp)
}

func (s *SSEStreamWriter) Failed(msg string) error {
	return s.send("error", ResponseError{Message: msg, Type: "server_error"})
}

func (s *SSEStreamWriter) send(event string, v any) error {
	s.begin()
	b, err := encodeJSON(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, b); err != nil {
		return err
	}
	s.flusher()
	return nil
}
