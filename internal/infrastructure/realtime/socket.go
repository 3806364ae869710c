package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Frame is the JSON envelope exchanged with devices
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type authenticatePayload struct {
	Token string `json:"token"`
}

// SocketEndpoint is one websocket connection from a device
type SocketEndpoint struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func newSocketEndpoint(conn *websocket.Conn, logger zerolog.Logger) *SocketEndpoint {
	id := uuid.NewString()
	return &SocketEndpoint{
		id:     id,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("endpoint_id", id).Logger(),
	}
}

// ID returns the endpoint id
func (e *SocketEndpoint) ID() string {
	return e.id
}

// Emit queues an event frame. It never blocks; a closed endpoint or full buffer drops the event.
func (e *SocketEndpoint) Emit(event string, payload interface{}) bool {
	data, err := json.Marshal(outboundFrame{Event: event, Data: payload})
	if err != nil {
		e.logger.Error().Err(err).Str("event", event).Msg("Failed to encode device event")
		return false
	}

	select {
	case <-e.done:
		return false
	default:
	}

	select {
	case e.send <- data:
		return true
	default:
		e.logger.Warn().Str("event", event).Msg("Device send buffer full, dropping event")
		return false
	}
}

func (e *SocketEndpoint) close() {
	e.once.Do(func() {
		close(e.done)
		e.conn.Close()
	})
}

func (e *SocketEndpoint) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		e.close()
	}()

	for {
		select {
		case <-e.done:
			return
		case data := <-e.send:
			e.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := e.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				e.logger.Debug().Err(err).Msg("Device write failed")
				return
			}
		case <-ticker.C:
			e.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := e.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades device connections and runs the authenticate protocol against the registry
type Handler struct {
	registry *Registry
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHandler creates the device websocket handler. An empty allowedOrigins accepts any origin.
func NewHandler(registry *Registry, allowedOrigins []string, logger zerolog.Logger) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" && o != "*" {
			origins[o] = struct{}{}
		}
	}

	return &Handler{
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
		logger: logger.With().Str("component", "device_socket").Logger(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade device connection")
		return
	}

	endpoint := newSocketEndpoint(conn, h.logger)
	h.logger.Debug().Str("endpoint_id", endpoint.ID()).Str("remote", r.RemoteAddr).Msg("Device connected")

	go endpoint.writePump()
	h.readPump(endpoint)
}

func (h *Handler) readPump(endpoint *SocketEndpoint) {
	defer func() {
		h.registry.Unbind(endpoint)
		endpoint.close()
		h.logger.Debug().Str("endpoint_id", endpoint.ID()).Msg("Device disconnected")
	}()

	endpoint.conn.SetReadLimit(maxMessageSize)
	endpoint.conn.SetReadDeadline(time.Now().Add(pongWait))
	endpoint.conn.SetPongHandler(func(string) error {
		endpoint.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := endpoint.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug().Err(err).Str("endpoint_id", endpoint.ID()).Msg("Device connection closed unexpectedly")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			endpoint.Emit("error", map[string]string{"message": "invalid frame"})
			continue
		}

		switch frame.Event {
		case EventAuthenticate:
			var payload authenticatePayload
			if len(frame.Data) > 0 {
				if err := json.Unmarshal(frame.Data, &payload); err != nil {
					// A bare string is accepted as the token too
					if err := json.Unmarshal(frame.Data, &payload.Token); err != nil {
						payload.Token = ""
					}
				}
			}
			h.registry.Authenticate(endpoint, payload.Token)
		default:
			h.logger.Debug().Str("event", frame.Event).Str("endpoint_id", endpoint.ID()).Msg("Ignoring device event")
		}
	}
}
