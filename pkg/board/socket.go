package board

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/gorilla/websocket"

	"github.com/Ramsey-B/aster/pkg/events"
)

// Socket is the realtime feed behind a Listener: it dials the board API's
// websocket endpoint and applies every received event.
type Socket struct {
	conn     *websocket.Conn
	listener *Listener
	logger   ectologger.Logger
}

// DialSocket connects to the board event stream, e.g.
// "ws://localhost:3004/api/v1/ws?pipeline_id=...". The tenant header must
// match the pipeline being watched.
func DialSocket(ctx context.Context, url string, tenantID string, listener *Listener, logger ectologger.Logger) (*Socket, error) {
	header := http.Header{}
	header.Set("X-Tenant-ID", tenantID)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial board socket (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial board socket: %w", err)
	}

	return &Socket{
		conn:     conn,
		listener: listener,
		logger:   logger,
	}, nil
}

// Run reads events until the context is cancelled or the connection drops.
// Unparseable messages are logged and skipped.
func (s *Socket) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		// Unblocks the pending read.
		deadline := time.Now().Add(time.Second)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = s.conn.Close()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("board socket closed: %w", err)
		}

		event, err := events.ParseBoardEvent(data)
		if err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Skipping unparseable board event")
			continue
		}

		if err := s.listener.Apply(ctx, event); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to apply board event")
		}
	}
}

// Close tears the connection down.
func (s *Socket) Close() error {
	return s.conn.Close()
}
