package stream

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hiveforge/kernel/internal/events"
	"github.com/hiveforge/kernel/internal/kernel"
)

// Server exposes the durable stream endpoint over gin, grounded on the
// pack's own gin handler style (plain c.JSON(status, gin.H{...})).
type Server struct {
	Kernel *kernel.Kernel
	Bus    *Bus
	Engine *gin.Engine
}

func NewServer(k *kernel.Kernel, bus *Bus) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	s := &Server{Kernel: k, Bus: bus, Engine: engine}
	engine.GET("/streams/:projectKey", s.handleStream)
	return s
}

// historyEntry is one JSON element of the non-live response.
type historyEntry struct {
	Offset    int64           `json:"offset"`
	Data      events.Event    `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func (s *Server) handleStream(c *gin.Context) {
	projectKey := c.Param("projectKey")
	if projectKey == "" {
		c.Status(http.StatusNotFound)
		return
	}

	if c.Query("live") == "true" {
		var offset *int64
		if c.Query("offset") != "" {
			o := parseOffset(c.Query("offset"))
			offset = &o
		}
		s.handleLive(c, projectKey, offset)
		return
	}

	offset := parseOffset(c.Query("offset"))

	limit := 100
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 {
		limit = l
	}

	evs, err := s.Kernel.Events(c.Request.Context(), events.Filter{
		ProjectKey:    projectKey,
		AfterSequence: offset,
		Limit:         limit,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]historyEntry, 0, len(evs))
	for _, e := range evs {
		out = append(out, historyEntry{Offset: e.Sequence, Data: e, Timestamp: e.Timestamp})
	}
	c.JSON(http.StatusOK, out)
}

// parseOffset defaults malformed or absent offsets to 0, per the
// endpoint's "Malformed offset MUST default to 0" contract.
func parseOffset(raw string) int64 {
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// handleLive streams events as SSE frames. When offset is non-nil, it
// subscribes to live events first (so nothing published during the
// catch-up query is missed), replays the backlog after offset, then
// forwards live events with sequence greater than the highest one
// already sent. When offset is nil, it starts from the current head —
// historical events are never replayed on live, per the endpoint
// contract.
func (s *Server) handleLive(c *gin.Context, projectKey string, offset *int64) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	msgs := make(chan events.Event, 64)
	unsubscribe, err := s.Bus.Subscribe(projectKey, func(e events.Event) {
		select {
		case msgs <- e:
		default:
			// Slow subscriber: drop rather than block the publisher.
		}
	})
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsubscribe()

	_, _ = c.Writer.Write([]byte(": connected\n\n"))
	flusher.Flush()

	var lastSent int64
	if offset != nil {
		backlog, err := s.Kernel.Events(c.Request.Context(), events.Filter{
			ProjectKey:    projectKey,
			AfterSequence: *offset,
		})
		if err == nil {
			for _, e := range backlog {
				if ok, werr := writeSSEEvent(c.Writer, e); werr != nil || !ok {
					return
				}
				lastSent = e.Sequence
			}
			flusher.Flush()
		}
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case e := <-msgs:
			if e.Sequence <= lastSent {
				continue
			}
			ok, err := writeSSEEvent(c.Writer, e)
			if err != nil || !ok {
				return
			}
			lastSent = e.Sequence
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, e events.Event) (bool, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return false, err
	}
	if _, err := w.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
		return false, err
	}
	return true, nil
}
