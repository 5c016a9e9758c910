package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 16 << 10
	sendBuffer     = 32
)

// session owns one WebSocket connection. writePump is the only writer and
// readPump the only reader; everything else talks to them through out,
// frames and tasks.
type session struct {
	conn *websocket.Conn
	log  zerolog.Logger

	pingPeriod time.Duration
	pongWait   time.Duration

	out    chan []byte
	frames chan []byte
	tasks  chan func()

	quit       chan struct{}
	once       sync.Once
	writerDone chan struct{}
}

func newSession(conn *websocket.Conn, lg zerolog.Logger, ping time.Duration, buffer int) *session {
	if ping <= 0 {
		ping = 54 * time.Second
	}
	if buffer <= 0 {
		buffer = sendBuffer
	}
	return &session{
		conn:       conn,
		log:        lg,
		pingPeriod: ping,
		pongWait:   ping * 10 / 9,
		out:        make(chan []byte, buffer),
		frames:     make(chan []byte),
		tasks:      make(chan func(), 8),
		quit:       make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (s *session) start() {
	go s.writePump()
	go s.readPump()
}

// stop ends the session. It is idempotent.
func (s *session) stop() { s.once.Do(func() { close(s.quit) }) }

// push queues v for the client. A client that cannot keep up is
// disconnected; it will reload on reconnect.
func (s *session) push(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Error().Err(err).Msg("ws: encode frame")
		return
	}
	select {
	case <-s.quit:
		return
	default:
	}
	select {
	case s.out <- b:
	default:
		s.log.Warn().Msg("ws: client too slow, closing")
		s.stop()
	}
}

// post runs fn on the session goroutine. It returns false once the session
// has ended.
func (s *session) post(fn func()) bool {
	select {
	case s.tasks <- fn:
		return true
	case <-s.quit:
		return false
	}
}

func (s *session) readPump() {
	defer s.stop()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(s.pongWait)) //nolint:errcheck
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				s.log.Debug().Err(err).Msg("ws: read")
			}
			return
		}
		select {
		case s.frames <- data:
		case <-s.quit:
			return
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(s.pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
		close(s.writerDone)
	}()

	for {
		select {
		case msg := <-s.out:
			if !s.write(websocket.TextMessage, msg) {
				s.stop()
				return
			}
		case <-ticker.C:
			if !s.write(websocket.PingMessage, nil) {
				s.stop()
				return
			}
		case <-s.quit:
			// flush what was queued before the stop, then say goodbye
			for {
				select {
				case msg := <-s.out:
					if !s.write(websocket.TextMessage, msg) {
						return
					}
					continue
				default:
				}
				break
			}
			s.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *session) write(kind int, payload []byte) bool {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return s.conn.WriteMessage(kind, payload) == nil
}
