package serverutils

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"research-assistant-be/pkg/rag/response"

	"github.com/gofiber/fiber/v2"
)

// SSEFrame is one server-sent event. An empty Event means the default "message" event.
type SSEFrame struct {
	Event string
	Data  string
}

func (f SSEFrame) writeTo(w *bufio.Writer) error {
	if f.Event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", f.Event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", f.Data); err != nil {
		return err
	}
	return w.Flush()
}

// JSONFrame marshals payload into a data frame.
func JSONFrame(event string, payload interface{}) SSEFrame {
	b, err := json.Marshal(payload)
	if err != nil {
		b = []byte(`{"message":"encoding failed"}`)
		event = "error"
	}
	return SSEFrame{Event: event, Data: string(b)}
}

// ErrorFrame is the terminal frame sent when a stream fails.
func ErrorFrame(err error) SSEFrame {
	return JSONFrame("error", fiber.Map{"message": PublicMessage(err)})
}

// FrameFunc maps a stream event to the frames written for it.
type FrameFunc func(ev response.Event) []SSEFrame

// StreamEvents writes events as SSE until the channel closes. The fiber ctx
// must not be touched after this returns; a failed flush calls cancel so the
// producer stops.
func StreamEvents(ctx *fiber.Ctx, cancel context.CancelFunc, events <-chan response.Event, frames FrameFunc) error {
	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for ev := range events {
			for _, frame := range frames(ev) {
				if err := frame.writeTo(w); err != nil {
					return
				}
			}
			if ev.Type == response.EventError {
				return
			}
		}
	})
	return nil
}
