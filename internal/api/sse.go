package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/spacesedan/forumpulse/internal/models"
)

// writeEvent frames one event as "event: <name>\ndata: <json>\n\n".
func writeEvent(w io.Writer, ev models.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventName(), data)
	return err
}

func (s *Server) handleAnalysisStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	id := s.newID()
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Analysis-ID", id)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	start := time.Now()
	var events <-chan models.Event
	if q, err := searchQuery(r, 0); err != nil {
		events = single(models.ErrorEvent{Message: err.Error(), Err: err})
	} else {
		events = s.analyzer.Stream(ctx, q)
	}

	sent, last := 0, ""
	for ev := range events {
		if ctx.Err() != nil {
			continue
		}
		if err := writeEvent(w, ev); err != nil {
			slog.Debug("[SSE] Client write failed", slog.String("analysis_id", id), slog.Any("error", err))
			cancel()
			continue
		}
		flusher.Flush()
		sent++
		last = ev.EventName()
	}

	slog.Info("[SSE] Stream closed",
		slog.String("analysis_id", id),
		slog.Int("events", sent),
		slog.String("last_event", last),
		slog.Bool("client_gone", r.Context().Err() != nil),
		slog.Duration("took", time.Since(start)))
}

func single(ev models.Event) <-chan models.Event {
	ch := make(chan models.Event, 1)
	ch <- ev
	close(ch)
	return ch
}
