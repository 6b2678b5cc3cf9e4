package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/GoCodeAlone/taskboard/board"
	hub "github.com/GoCodeAlone/taskboard/server/ws"
	"github.com/GoCodeAlone/taskboard/task"
)

// Event is one update from the board channel.
type Event struct {
	Tasks    []task.Task // set for refreshUI
	Rejected string      // set for updateRejected
	Err      error       // set when the connection fails
}

// Dial connects to the board channel at url (ws:// or wss://) and streams
// its events until ctx is cancelled or the connection drops. The returned
// channel is closed when the stream ends.
func Dial(ctx context.Context, url string) (<-chan Event, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	var r io.Reader = conn
	if br != nil {
		r = io.MultiReader(br, conn)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{r, conn}

	events := make(chan Event, 16)
	go func() {
		defer close(events)
		defer conn.Close() //nolint:errcheck
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		defer stop()

		for {
			data, err := wsutil.ReadServerText(rw)
			if err != nil {
				if ctx.Err() == nil {
					select {
					case events <- Event{Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
			ev, ok := decodeEvent(data)
			if !ok {
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// decodeEvent converts a channel frame into an Event. Frames with unknown
// names or bad payloads are skipped.
func decodeEvent(data []byte) (Event, bool) {
	var env hub.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, false
	}
	switch env.Event {
	case board.EventRefreshUI:
		var tasks []task.Task
		if err := json.Unmarshal(env.Data, &tasks); err != nil {
			return Event{}, false
		}
		return Event{Tasks: tasks}, true
	case board.EventUpdateRejected:
		var rej board.Rejection
		if err := json.Unmarshal(env.Data, &rej); err != nil {
			return Event{}, false
		}
		return Event{Rejected: rej.Error}, true
	}
	return Event{}, false
}
