package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"set_and_wait/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	envelopeStatus = "status"
	envelopeError  = "error"

	readWait = 30 * time.Second
)

// ErrServer is returned when the host sends an error envelope instead of a status.
var ErrServer = errors.New("server reported an error")

// Heater is one row of the heater table as the host reports it.
type Heater struct {
	Class   string  `json:"class"`
	Channel int     `json:"channel"`
	ActualC float64 `json:"actual_c"`
	TargetC float64 `json:"target_c"`
}

// Wait is an active wait session as the host reports it.
type Wait struct {
	Identifier       string    `json:"identifier"`
	Class            string    `json:"class"`
	Channel          *int      `json:"channel,omitempty"`
	Mode             string    `json:"mode"`
	TargetC          float64   `json:"target_c"`
	Phase            string    `json:"phase"`
	Active           bool      `json:"active"`
	LastActualC      float64   `json:"last_actual_c"`
	Restarts         int       `json:"restarts"`
	StartedAt        time.Time `json:"started_at"`
	StabilizingSince time.Time `json:"stabilizing_since"`
}

// Job is the streaming job summary.
type Job struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	LinesSent int    `json:"lines_sent"`
	Waits     int    `json:"waits"`
	LastError string `json:"last_error"`
}

// Transport mirrors the link flags that gate temperature probes.
type Transport struct {
	Operational    bool `json:"operational"`
	AutoReporting  bool `json:"auto_reporting"`
	Closing        bool `json:"closing"`
	Streaming      bool `json:"streaming"`
	LongRunning    bool `json:"long_running"`
	HeatingBlocked bool `json:"heating_blocked"`
	Dwelling       bool `json:"dwelling"`
}

// Snapshot is one status push from /ws.
type Snapshot struct {
	Heaters   []Heater  `json:"heaters"`
	Waits     []Wait    `json:"waits"`
	Waiting   bool      `json:"waiting"`
	Holding   bool      `json:"holding"`
	Transport Transport `json:"transport"`
	Job       Job       `json:"job"`
	At        time.Time `json:"at"`
}

type envelope struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// StreamURL builds the websocket URL for a host address such as "localhost:8080".
func StreamURL(host string, interval time.Duration) string {
	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	if interval > 0 {
		q := u.Query()
		q.Set("interval_ms", strconv.FormatInt(interval.Milliseconds(), 10))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Stream reads status snapshots from a host websocket.
type Stream struct {
	conn *websocket.Conn
	log  *logger.Logger
}

// Dial connects to the status stream at rawURL.
func Dial(ctx context.Context, rawURL string, log *logger.Logger) (*Stream, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (http %d)", rawURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	// host pings keep the read deadline moving
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	log.Infow("monitor_connected", "url", rawURL)
	return &Stream{conn: conn, log: log}, nil
}

// Next blocks until the next snapshot arrives.
func (s *Stream) Next() (Snapshot, error) {
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(readWait))
		var env envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			return Snapshot{}, err
		}
		switch env.Type {
		case envelopeStatus:
			var snap Snapshot
			if err := json.Unmarshal(env.Data, &snap); err != nil {
				return Snapshot{}, fmt.Errorf("decode status: %w", err)
			}
			return snap, nil
		case envelopeError:
			return Snapshot{}, fmt.Errorf("%w: %s", ErrServer, env.Error)
		default:
			s.log.Debugw("monitor_unknown_envelope", "type", env.Type)
		}
	}
}

// Close sends a close frame and closes the connection.
func (s *Stream) Close() error {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return s.conn.Close()
}
