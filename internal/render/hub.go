package render

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"payout-charts/internal/series"
)

const writeWait = 10 * time.Second

// WirePoint is the JSON shape of a plotted point.
type WirePoint struct {
	X         int64   `json:"x"`
	D         string  `json:"d"`
	Y         float64 `json:"y"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

// SeriesMessage is the full-replacement payload sent to browser clients.
type SeriesMessage struct {
	Series   []WirePoint `json:"series"`
	Tooltips []string    `json:"tooltips,omitempty"`
	Unit     string      `json:"unit,omitempty"`
	PushedAt int64       `json:"pushed_at"`
}

// NewSeriesMessage converts points into the wire payload.
func NewSeriesMessage(points []series.PlottedPoint, unit string, tips Tooltipper, pushedAt time.Time) SeriesMessage {
	msg := SeriesMessage{
		Series:   make([]WirePoint, len(points)),
		Unit:     unit,
		PushedAt: pushedAt.UnixMilli(),
	}
	if tips != nil {
		msg.Tooltips = make([]string, len(points))
	}
	for i, p := range points {
		msg.Series[i] = WirePoint{X: p.X.UnixMilli(), D: p.Label, Y: p.Y, Synthetic: p.Synthetic}
		if tips != nil {
			msg.Tooltips[i] = tips.Tooltip(p, unit)
		}
	}
	return msg
}

// Hub broadcasts series to connected WebSocket clients and replays the last
// series to clients that connect later.
type Hub struct {
	unit     string
	tips     Tooltipper
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	last     []byte
	onAttach func()
}

// NewHub constructs a WebSocket hub.
func NewHub(unit string, tips Tooltipper, logger zerolog.Logger) *Hub {
	return &Hub{
		unit:     unit,
		tips:     tips,
		logger:   logger.With().Str("component", "ws_hub").Logger(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		now:      time.Now,
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// Name implements Surface.
func (h *Hub) Name() string { return "websocket" }

// IsReady reports whether at least one client is attached.
func (h *Hub) IsReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients) > 0
}

// Clients returns the number of attached clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// PushSeries implements Surface. Clients that fail the write are dropped.
func (h *Hub) PushSeries(points []series.PlottedPoint) error {
	msg, err := json.Marshal(NewSeriesMessage(points, h.unit, h.tips, h.now()))
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = msg
	for c := range h.clients {
		if err := h.write(c, msg); err != nil {
			h.logger.Warn().Err(err).Str("remote", c.RemoteAddr().String()).Msg("websocket write failed; dropping client")
			c.Close()
			delete(h.clients, c)
		}
	}
	return nil
}

// OnAttach registers fn to run when a client attaches before any series was pushed.
// fn runs on its own goroutine and is expected to push a series.
func (h *Hub) OnAttach(fn func()) {
	h.mu.Lock()
	h.onAttach = fn
	h.mu.Unlock()
}

// Last returns the last pushed payload, or nil before the first push.
func (h *Hub) Last() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

func (h *Hub) write(c *websocket.Conn, msg []byte) error {
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(websocket.TextMessage, msg)
}

// Handler upgrades requests to WebSocket connections.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		h.mu.Lock()
		if h.last != nil {
			if err := h.write(conn, h.last); err != nil {
				h.mu.Unlock()
				conn.Close()
				return
			}
		}
		h.clients[conn] = struct{}{}
		refresh := h.onAttach
		if h.last != nil {
			refresh = nil
		}
		h.mu.Unlock()
		h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("websocket client attached")

		if refresh != nil {
			go refresh()
		}

		go func() {
			defer func() {
				h.mu.Lock()
				delete(h.clients, conn)
				h.mu.Unlock()
				conn.Close()
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
		c.Close()
		delete(h.clients, c)
	}
}

var _ Surface = (*Hub)(nil)
