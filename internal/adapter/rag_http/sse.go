package rag_http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"agentic-rag/internal/usecase"

	"github.com/labstack/echo/v4"
)

// sseWriter serializes pipeline events as server-sent events, one event
// type per pipeline event kind, flushing after every write.
type sseWriter struct {
	res     *echo.Response
	flusher http.Flusher
}

func newSSEWriter(res *echo.Response) *sseWriter {
	flusher, _ := res.Writer.(http.Flusher)
	return &sseWriter{res: res, flusher: flusher}
}

func (w *sseWriter) Write(event usecase.Event) error {
	payload, err := marshalEvent(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.res, "event: %s\ndata: %s\n\n", event.Kind, payload); err != nil {
		return err
	}
	if w.flusher != nil {
		w.flusher.Flush()
	}
	return nil
}

func marshalEvent(event usecase.Event) ([]byte, error) {
	switch event.Kind {
	case usecase.EventKindToken:
		return json.Marshal(map[string]string{"text": event.Token})
	case usecase.EventKindCitation:
		return json.Marshal(event.Citation)
	case usecase.EventKindDegraded:
		return json.Marshal(event.Degraded)
	case usecase.EventKindDone:
		return json.Marshal(event.Done)
	case usecase.EventKindFailed:
		return json.Marshal(event.Failed)
	default:
		return nil, fmt.Errorf("unknown event kind %q", event.Kind)
	}
}
