package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cookiedrop/kitchenhub/internal/logging"
	"github.com/cookiedrop/kitchenhub/pkg/domain"
)

// closeGracePeriod bounds the close frame write before the connection is
// dropped
const closeGracePeriod = time.Second

// Socket implements domain.Socket over a gorilla connection.
//
// Outbound frames and pings go through the write pump and Close hands the
// close handshake to a goroutine, so callers never wait on a slow client.
// Liveness is owned by the hub, so no read deadline is set here.
type Socket struct {
	conn    *websocket.Conn
	logger  *logging.Logger
	options SocketOptions

	send chan []byte
	ping chan struct{}
	done chan struct{}

	mu      sync.RWMutex
	handler domain.SocketHandler

	closeOnce sync.Once
	endOnce   sync.Once
}

// NewSocket wraps an upgraded connection. Call Run to start the pumps.
func NewSocket(conn *websocket.Conn, logger *logging.Logger, options SocketOptions) *Socket {
	def := DefaultSocketOptions()
	if options.WriteTimeout <= 0 {
		options.WriteTimeout = def.WriteTimeout
	}
	if options.MaxMessageSize <= 0 {
		options.MaxMessageSize = def.MaxMessageSize
	}
	if options.SendBufferSize <= 0 {
		options.SendBufferSize = def.SendBufferSize
	}

	return &Socket{
		conn:    conn,
		logger:  logger,
		options: options,
		send:    make(chan []byte, options.SendBufferSize),
		ping:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Send implements domain.Socket. It never blocks.
func (s *Socket) Send(message []byte) error {
	select {
	case <-s.done:
		return domain.ErrConnectionClosed
	default:
	}

	select {
	case s.send <- message:
		return nil
	case <-s.done:
		return domain.ErrConnectionClosed
	default:
		return domain.ErrSendBufferFull
	}
}

// Ping implements domain.Socket. The ping frame is written by the write
// pump; a failed write ends the socket through OnError.
func (s *Socket) Ping() error {
	select {
	case <-s.done:
		return domain.ErrConnectionClosed
	default:
	}

	select {
	case s.ping <- struct{}{}:
	default:
		// one ping is already pending
	}
	return nil
}

// Close implements domain.Socket. It returns at once; the close frame and
// the connection teardown happen in the background.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		go s.shutdown()
	})
	return nil
}

// shutdown sends the close frame and drops the connection. A write pump stuck
// on a slow client holds the write lock, so the frame may be abandoned after
// closeGracePeriod.
func (s *Socket) shutdown() {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeGracePeriod))

	if err := s.conn.Close(); err != nil {
		s.logger.Debug("websocket close error", "error", err)
	}
}

// SetHandler implements domain.Socket
func (s *Socket) SetHandler(handler domain.SocketHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Done is closed once the socket is closed
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Run starts the write pump and reads until the connection ends
func (s *Socket) Run() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump()
	}()

	s.readPump()
	wg.Wait()
}

func (s *Socket) currentHandler() domain.SocketHandler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.handler
}

// end reports how the connection ended to the handler, at most once. Nothing
// is reported when the socket was closed locally.
func (s *Socket) end(err error) {
	select {
	case <-s.done:
		return
	default:
	}

	s.endOnce.Do(func() {
		handler := s.currentHandler()
		if handler == nil {
			return
		}
		if err == nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			handler.OnClose()
			return
		}
		handler.OnError(err)
	})
}

func (s *Socket) readPump() {
	defer func() {
		s.logger.Debug("read pump stopped")
		_ = s.Close()
	}()

	s.conn.SetReadLimit(s.options.MaxMessageSize)
	s.conn.SetPongHandler(func(string) error {
		if handler := s.currentHandler(); handler != nil {
			handler.OnPong()
		}
		return nil
	})

	for {
		messageType, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read error", "error", err)
			}
			s.end(err)
			return
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		if handler := s.currentHandler(); handler != nil {
			handler.OnMessage(message)
		}
	}
}

func (s *Socket) writePump() {
	defer s.logger.Debug("write pump stopped")

	for {
		select {
		case <-s.done:
			return

		case message := <-s.send:
			if err := s.write(message); err != nil {
				s.logger.Warn("websocket write error", "error", err)
				s.end(err)
				_ = s.Close()
				return
			}

		case <-s.ping:
			deadline := time.Now().Add(s.options.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Warn("websocket ping error", "error", err)
				s.end(err)
				_ = s.Close()
				return
			}
		}
	}
}

func (s *Socket) write(message []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.options.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, message)
}

var _ domain.Socket = (*Socket)(nil)
