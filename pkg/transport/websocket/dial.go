package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cookiedrop/kitchenhub/pkg/domain"
	"github.com/cookiedrop/kitchenhub/pkg/errors"
)

// Watcher is the client end of a hub socket
type Watcher struct {
	conn *websocket.Conn
}

// Dial connects to a hub endpoint, sending token as a Bearer header
func Dial(ctx context.Context, endpoint, token string) (*Watcher, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errors.Wrap(err, errors.ErrorTypeUnauthorized, "DIAL_UNAUTHORIZED", "hub rejected the token")
		}
		return nil, errors.Wrap(err, errors.ErrorTypeTransport, "DIAL_FAILED", "failed to connect to hub").
			WithDetails(endpoint)
	}

	return &Watcher{conn: conn}, nil
}

// Next blocks for the next envelope. raw holds the frame as received. Hub
// pings are answered while Next is reading.
func (w *Watcher) Next() (msg domain.Message, raw []byte, err error) {
	_, raw, err = w.conn.ReadMessage()
	if err != nil {
		return domain.Message{}, nil, errors.Wrap(err, errors.ErrorTypeTransport, "READ_FAILED", "failed to read from hub")
	}

	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.Message{}, raw, errors.Wrap(err, errors.ErrorTypeProtocol, "INVALID_ENVELOPE", "hub sent a malformed envelope")
	}
	return msg, raw, nil
}

// Send writes a client message
func (w *Watcher) Send(msg domain.Message) error {
	if err := w.conn.WriteJSON(msg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeTransport, "WRITE_FAILED", "failed to write to hub")
	}
	return nil
}

// Close sends a close frame and closes the connection
func (w *Watcher) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeGracePeriod))
	return w.conn.Close()
}
