// Package session maintains the websocket session with the party sync
// server: exactly one live transport per (userID, partyID) pair, a
// single write goroutine, a read loop feeding the message dispatcher,
// heartbeats, and bounded reconnection.
package session

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/apexline/simcore/internal/events"
	"github.com/apexline/simcore/pkg/core"
	"github.com/apexline/simcore/pkg/protocol"
)

const (
	sendChSize = 256
	writeWait  = 10 * time.Second
)

// Config carries the session parameters, usually taken from
// config.SessionConfig plus a credential source.
type Config struct {
	ServerURL         string
	Credentials       Credentials
	HeartbeatInterval time.Duration
	ReconnectBackoff  time.Duration
	MaxReconnects     int
}

// link is one websocket transport with its loops. A superseded or
// disconnected link is never revived; Connect builds a fresh one.
type link struct {
	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{} // closed on shutdown
	closed bool
}

func newLink() *link {
	return &link{
		sendCh: make(chan []byte, sendChSize),
		done:   make(chan struct{}),
	}
}

// send pushes data to the write loop. Non-blocking; drops if full.
func (l *link) send(data []byte, logger *slog.Logger) {
	select {
	case l.sendCh <- data:
	default:
		logger.Warn("send channel full, dropping frame")
	}
}

// close sends a close frame and shuts down the loops. Idempotent.
func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.done)
	conn := l.conn
	l.conn = nil
	l.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(
			ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
		)
		return conn.Close()
	}
	return nil
}

// Client is the multiplayer sync client. Safe for concurrent use.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	stream     *events.Stream
	dispatcher *events.Dispatcher
	roster     *Roster

	mu           sync.Mutex
	link         *link
	userID       int
	partyID      int
	active       bool
	status       Status
	connectFrame []byte // replayed after every reconnect
	lastPose     []byte // freshest pose, heartbeat fallback payload

	reconnecting atomic.Bool
}

// NewClient builds a client and wires its protocol handlers. The roster
// is owned by the client; peers read it via Roster().
func NewClient(cfg Config, stream *events.Stream, logger *slog.Logger) (*Client, error) {
	d, err := events.NewDispatcher(slogEventLogger{logger})
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	c := &Client{
		cfg:        cfg,
		logger:     logger,
		stream:     stream,
		dispatcher: d,
		roster:     NewRoster(),
		status:     Disconnected,
	}
	c.registerHandlers()
	return c, nil
}

// Roster exposes the party roster for rendering.
func (c *Client) Roster() *Roster { return c.roster }

// Status reports the current connection phase.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// setStatus transitions the phase and emits a StatusChanged event once
// per transition. Callers must not hold c.mu.
func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	changed := c.status != s
	c.status = s
	c.mu.Unlock()
	if changed {
		c.stream.Push(events.StatusChanged{Status: s.String()})
	}
}

// Connect establishes the session for the pair. A redundant call for
// the live pair is a no-op; a call for a different pair tears the
// existing session down first. A missing token is fatal: the error is
// returned without any retry.
func (c *Client) Connect(userID, partyID int) error {
	c.mu.Lock()
	if c.active && c.userID == userID && c.partyID == partyID {
		c.mu.Unlock()
		return nil
	}
	old := c.link
	wasActive := c.active
	c.active = false
	c.link = nil
	c.mu.Unlock()

	if wasActive && old != nil {
		c.logger.Info("superseding session", "userId", userID, "partyId", partyID)
		_ = old.close()
	}

	token, err := c.cfg.Credentials.Token()
	if err != nil {
		c.setStatus(Failed)
		return fmt.Errorf("resolving session token: %w", err)
	}

	c.setStatus(Connecting)
	conn, err := c.dialOnce(token, partyID)
	if err != nil {
		c.setStatus(Failed)
		return err
	}

	frame, err := protocol.Encode(protocol.Connect{UserID: userID, PartyID: partyID})
	if err != nil {
		_ = conn.Close()
		c.setStatus(Failed)
		return fmt.Errorf("encoding connect frame: %w", err)
	}
	if err := writeFrame(conn, frame); err != nil {
		_ = conn.Close()
		c.setStatus(Failed)
		return fmt.Errorf("sending connect frame: %w", err)
	}

	l := newLink()
	l.conn = conn

	c.mu.Lock()
	c.link = l
	c.userID = userID
	c.partyID = partyID
	c.active = true
	c.connectFrame = frame
	c.lastPose = nil
	c.mu.Unlock()
	c.setStatus(Connected)

	go c.writeLoop(l)
	go c.readLoop(l)
	go c.heartbeat(l)

	c.logger.Info("session established", "userId", userID, "partyId", partyID)
	return nil
}

// dialOnce performs a single dial with the token query param and the
// optional party_id.
func (c *Client) dialOnce(token string, partyID int) (*ws.Conn, error) {
	u, err := url.Parse(c.cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	if partyID != 0 {
		q.Set("party_id", strconv.Itoa(partyID))
	}
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func writeFrame(conn *ws.Conn, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(ws.TextMessage, data)
}

// SendPose broadcasts the local vehicle pose. The frame is cached so the
// heartbeat can resend the latest pose during input lulls.
func (c *Client) SendPose(pos core.Position, rot core.Rotation) error {
	c.mu.Lock()
	l := c.link
	userID := c.userID
	active := c.active
	c.mu.Unlock()
	if !active || l == nil {
		return fmt.Errorf("no active session")
	}

	frame, err := protocol.Encode(protocol.Update{
		State: core.PlayerState{UserID: userID, Position: pos, Rotation: rot},
	})
	if err != nil {
		return fmt.Errorf("encoding pose update: %w", err)
	}

	c.mu.Lock()
	c.lastPose = frame
	c.mu.Unlock()

	l.send(frame, c.logger)
	return nil
}

// StartRace asks the server to broadcast the race transition.
func (c *Client) StartRace() error {
	c.mu.Lock()
	l := c.link
	active := c.active
	c.mu.Unlock()
	if !active || l == nil {
		return fmt.Errorf("no active session")
	}
	frame, err := protocol.Encode(protocol.StartRace{})
	if err != nil {
		return fmt.Errorf("encoding start race: %w", err)
	}
	l.send(frame, c.logger)
	return nil
}

// Disconnect sends a best-effort leave notice, closes the transport and
// stops all timers. The roster is cleared; the session is over.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}
	l := c.link
	userID := c.userID
	c.active = false
	c.link = nil
	c.lastPose = nil
	c.mu.Unlock()

	if l != nil {
		if frame, err := protocol.Encode(protocol.Disconnect{UserID: userID}); err == nil {
			l.mu.Lock()
			conn := l.conn
			l.mu.Unlock()
			if conn != nil {
				_ = writeFrame(conn, frame)
			}
		}
		_ = l.close()
	}

	c.roster.Clear()
	c.setStatus(Disconnected)
	c.logger.Info("session closed", "userId", userID)
	return nil
}

// writeLoop drains the send channel onto the websocket. One per link;
// it exits on error, handing recovery to reconnect.
func (c *Client) writeLoop(l *link) {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.sendCh:
			l.mu.Lock()
			conn := l.conn
			l.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := writeFrame(conn, data); err != nil {
				c.logger.Warn("websocket write error", "error", err)
				go c.reconnect(l)
				return
			}
		}
	}
}

// readLoop decodes inbound frames and hands them to the dispatcher.
// Handlers run synchronously here, which keeps the roster single-writer.
func (c *Client) readLoop(l *link) {
	for {
		l.mu.Lock()
		conn := l.conn
		l.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			c.logger.Warn("websocket read error", "error", err)
			go c.reconnect(l)
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			c.logger.Debug("undecodable frame", "raw", string(data), "error", err)
			continue
		}
		if se, ok := msg.(protocol.ServerError); ok {
			c.logger.Error("server rejected frame", "reason", se.Message)
			continue
		}
		if err := c.dispatcher.Dispatch(msg); err != nil {
			c.logger.Debug("unhandled frame", "kind", msg.Kind(), "error", err)
		}
	}
}

// heartbeat resends the freshest pose (or a bare Ping before any pose
// exists) every interval, and kicks a reconnect when the transport is
// down.
func (c *Client) heartbeat(l *link) {
	if c.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			if c.Status() != Connected {
				go c.reconnect(l)
				continue
			}
			c.mu.Lock()
			pose := c.lastPose
			c.mu.Unlock()
			if pose != nil {
				l.send(pose, c.logger)
				continue
			}
			frame, err := protocol.Encode(protocol.Ping{Timestamp: time.Now().UnixMilli()})
			if err != nil {
				continue
			}
			l.send(frame, c.logger)
		}
	}
}

// reconnect re-establishes the transport with a fixed backoff and a
// bounded attempt budget, then replays the connect frame and restarts
// the loops. The roster is left untouched.
func (c *Client) reconnect(l *link) {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	l.mu.Unlock()

	token, err := c.cfg.Credentials.Token()
	if err != nil {
		c.logger.Error("reconnect aborted, no token", "error", err)
		c.setStatus(Failed)
		return
	}

	c.setStatus(Connecting)
	c.mu.Lock()
	partyID := c.partyID
	frame := c.connectFrame
	c.mu.Unlock()

	for attempt := 1; attempt <= c.cfg.MaxReconnects; attempt++ {
		select {
		case <-l.done:
			return
		case <-time.After(c.cfg.ReconnectBackoff):
		}

		c.logger.Info("reconnecting", "attempt", attempt)
		conn, err := c.dialOnce(token, partyID)
		if err != nil {
			c.logger.Warn("reconnect dial failed", "attempt", attempt, "error", err)
			continue
		}
		if err := writeFrame(conn, frame); err != nil {
			c.logger.Warn("connect frame replay failed", "attempt", attempt, "error", err)
			_ = conn.Close()
			continue
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			_ = conn.Close()
			return
		}
		l.conn = conn
		l.mu.Unlock()

		c.setStatus(Connected)
		c.logger.Info("reconnected", "attempt", attempt)
		go c.writeLoop(l)
		go c.readLoop(l)
		return
	}

	c.logger.Error("reconnect gave up", "maxAttempts", c.cfg.MaxReconnects)
	c.setStatus(Failed)
}

// registerHandlers wires the inbound protocol onto the roster and the
// event stream.
func (c *Client) registerHandlers() {
	c.dispatcher.Register(protocol.KindUpdate, func(m protocol.Message) error {
		upd := m.(protocol.Update)
		c.mu.Lock()
		self := upd.State.UserID == c.userID
		c.mu.Unlock()
		if self {
			// The server echoes our own updates to the whole party.
			return nil
		}
		c.roster.Move(upd.State)
		c.stream.Push(events.RosterMoved{State: upd.State})
		return nil
	})

	c.dispatcher.Register(protocol.KindNewPartyMember, func(m protocol.Message) error {
		npm := m.(protocol.NewPartyMember)
		c.roster.Join(npm.UserID, npm.Name)
		c.stream.Push(events.RosterJoined{UserID: npm.UserID, Name: npm.Name})
		return nil
	}, events.Logged())

	c.dispatcher.Register(protocol.KindDisconnect, func(m protocol.Message) error {
		dc := m.(protocol.Disconnect)
		c.roster.Leave(dc.UserID)
		c.stream.Push(events.RosterLeft{UserID: dc.UserID})
		return nil
	}, events.Logged())

	c.dispatcher.Register(protocol.KindPing, func(m protocol.Message) error {
		ping := m.(protocol.Ping)
		frame, err := protocol.Encode(protocol.Pong{Timestamp: ping.Timestamp})
		if err != nil {
			return err
		}
		c.mu.Lock()
		l := c.link
		c.mu.Unlock()
		if l != nil {
			l.send(frame, c.logger)
		}
		return nil
	})

	c.dispatcher.Register(protocol.KindPong, func(protocol.Message) error {
		return nil
	})

	c.dispatcher.Register(protocol.KindRaceStarted, func(protocol.Message) error {
		c.stream.Push(events.RaceStarted{})
		return nil
	}, events.Logged())
}

// slogEventLogger adapts slog to the dispatcher's logger interface.
type slogEventLogger struct {
	l *slog.Logger
}

func (s slogEventLogger) Debug(msg string, kv ...any) { s.l.Debug(msg, kv...) }
func (s slogEventLogger) Info(msg string, kv ...any)  { s.l.Info(msg, kv...) }
func (s slogEventLogger) Error(msg string, kv ...any) { s.l.Error(msg, kv...) }
