// Package liveview is a client for the live attendance socket.
package liveview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/eventlify-server/internal/proto"
)

// ErrClosed is returned for calls on a closed connection.
var ErrClosed = errors.New("liveview: connection closed")

// Update is one attendanceUpdate notification.
type Update struct {
	EventID    string
	Attendance int64
}

// Listener receives updates on the connection's read goroutine.
type Listener func(Update)

// ServerError is an error frame sent by the server.
type ServerError struct {
	Code string
	Msg  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("liveview: %s: %s", e.Code, e.Msg)
}

type inbound struct {
	Type  string          `json:"type"`
	ID    int64           `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

// Conn is a live attendance socket shared by any number of views.
type Conn struct {
	ws     *websocket.Conn
	nextID atomic.Int64

	mu        sync.Mutex
	pending   map[int64]chan inbound
	listeners map[int]Listener
	nextLn    int
	errs      chan *ServerError

	done    chan struct{}
	readErr error
}

// Dial connects to the socket endpoint, e.g. ws://localhost:8080/ws.
func Dial(ctx context.Context, url string) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Conn{
		ws:        ws,
		pending:   make(map[int64]chan inbound),
		listeners: make(map[int]Listener),
		errs:      make(chan *ServerError, 16),
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// On registers a listener for attendance updates and returns its handle.
func (c *Conn) On(l Listener) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextLn++
	c.listeners[c.nextLn] = l
	return c.nextLn
}

// Off removes a listener.
func (c *Conn) Off(handle int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, handle)
}

// Errors yields error frames the server sent for fire-and-forget requests.
// Frames are dropped when nobody reads them.
func (c *Conn) Errors() <-chan *ServerError {
	return c.errs
}

// Subscribe asks for the current count of an event.
func (c *Conn) Subscribe(ctx context.Context, eventID string) (int64, error) {
	id := c.nextID.Add(1)
	reply := make(chan inbound, 1)

	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.send(ctx, proto.InboundTypeSubscribe, id, eventID); err != nil {
		return 0, err
	}

	select {
	case msg := <-reply:
		if msg.Error != nil {
			return 0, &ServerError{Code: msg.Error.Code, Msg: msg.Error.Msg}
		}
		var data proto.AttendanceData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return 0, fmt.Errorf("decode ack: %w", err)
		}
		return data.Attendance, nil
	case <-c.done:
		return 0, ErrClosed
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Join enters the live room of an event.
func (c *Conn) Join(ctx context.Context, eventID string) error {
	return c.send(ctx, proto.InboundTypeJoin, 0, eventID)
}

// Leave exits the live room of an event.
func (c *Conn) Leave(ctx context.Context, eventID string) error {
	return c.send(ctx, proto.InboundTypeLeave, 0, eventID)
}

// Done is closed once the connection stops reading.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that stopped the read loop, if any.
func (c *Conn) Err() error {
	<-c.done
	return c.readErr
}

// Close closes the socket. The server releases every room still held.
func (c *Conn) Close() error {
	err := c.ws.Close(websocket.StatusNormalClosure, "bye")
	<-c.done
	return err
}

func (c *Conn) send(ctx context.Context, typ string, id int64, eventID string) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	data, err := json.Marshal(eventID)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, c.ws, proto.Inbound{Type: typ, ID: id, Data: data})
}

func (c *Conn) readLoop() {
	defer close(c.done)
	for {
		var msg inbound
		if err := wsjson.Read(context.Background(), c.ws, &msg); err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.readErr = err
			}
			return
		}
		c.dispatch(msg)
	}
}

func (c *Conn) dispatch(msg inbound) {
	switch msg.Type {
	case proto.OutboundTypeAck:
		c.mu.Lock()
		reply, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if ok {
			reply <- msg
		}
	case proto.OutboundTypeEvent:
		if msg.Event != proto.EventAttendanceUpdate {
			return
		}
		var data proto.AttendanceData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		c.notify(Update{EventID: data.EventID, Attendance: data.Attendance})
	case proto.OutboundTypeError:
		if msg.Error == nil {
			return
		}
		select {
		case c.errs <- &ServerError{Code: msg.Error.Code, Msg: msg.Error.Msg}:
		default:
		}
	}
}

func (c *Conn) notify(u Update) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	for _, l := range listeners {
		l(u)
	}
}
