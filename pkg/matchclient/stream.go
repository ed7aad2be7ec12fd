package matchclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/crosswap-network/crosswap-daemon/pkg/protocol"
)

// Stream is the push side of the matching server connection. Decoded messages
// are handed to the handler in receive order; malformed frames are logged and
// skipped.
type Stream struct {
	conn *websocket.Conn
}

// OpenStream dials the server's websocket endpoint for the given master key
// id.
func OpenStream(
	ctx context.Context, baseURL, masterKeyID string,
) (*Stream, error) {
	wsURL := strings.Replace(baseURL, "http", "ws", 1)
	url := fmt.Sprintf("%s/v1/ws/%s", wsURL, masterKeyID)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect push stream: %w", err)
	}
	return &Stream{conn}, nil
}

// Listen reads frames until the connection drops, dispatching each decoded
// message to handle. It blocks and is meant to run on its own goroutine.
func (s *Stream) Listen(handle func(message interface{})) error {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("push stream closed: %w", err)
		}

		message, err := protocol.DecodeMessage(data)
		if err != nil {
			log.WithError(err).Warn("skipping malformed push message")
			continue
		}
		handle(message)
	}
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
