package libevents

import (
	"sync"
	"time"

	"context"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"github.com/fasthttp/websocket"
)

type (
	openConnectionParamsRepo interface {
		Get(ctx context.Context) (OpenConnectionParams, error)
	}

	OpenConnectionParams struct {
		URL    url.URL
		Header http.Header
	}

	ErrAdapter func(*websocket.Conn, *http.Response, error) error

	ErrorAdapters struct {
		OnDial ErrAdapter
	}

	// WsConnection represents a WebSocket connection whose control frames are delivered through
	// an event Target. It implements the Connection interface and is the Host of its own Target.
	WsConnection struct {
		errAdapters              ErrorAdapters
		openConnectionParamsRepo openConnectionParamsRepo
		logger                   Logger
		dialer                   *websocket.Dialer
		conn                     *websocket.Conn
		closeChan                CloseChan
		closeOnce                sync.Once
		closeReason              error
		closeReasonOnce          sync.Once
		recv                     chan<- Message // recv messages to be received over the wire
		send                     chan Message   // send messages to be sent over the wire

		events  *Target
		slotsMu sync.Mutex
		slots   map[string]DispatchFunc
	}
)

func NewWebsocketConnection(
	dialer *websocket.Dialer,
	openParamsRepo OpenConnectionParamsRepo,
	logger Logger,
	recvChan chan<- Message,
	errorHandlers ErrorAdapters,
) *WsConnection {
	w := &WsConnection{
		errAdapters:              errorHandlers,
		dialer:                   dialer,
		openConnectionParamsRepo: openParamsRepo,
		recv:                     recvChan,
		send:                     make(chan Message),
		closeChan:                make(CloseChan),
		logger:                   logger.WithField("net", "ws_connection"),
		slots:                    make(map[string]DispatchFunc),
	}

	w.events = NewTarget(logger, w, w)
	// Forwarders go first so control frames reach recv before any user listener can veto them.
	w.events.
		On(EventPing, Handler(w.forwardPing)).
		On(EventPong, Handler(w.forwardPong)).
		On(EventClose, Handler(w.forwardClose))

	return w
}

func NewWebsocketFactory(
	logger Logger,
	dialer *websocket.Dialer,
	openConnectionParamsRepo OpenConnectionParamsRepo,
	errorHandlers ErrorAdapters,
) ConnectionFactory {
	return func(ctx context.Context, recvChan chan<- Message) Connection {
		return NewWebsocketConnection(
			dialer,
			openConnectionParamsRepo,
			logger,
			recvChan,
			errorHandlers,
		)
	}
}

// Events returns the Target carrying the listeners of the ping, pong and close frames. A
// listener returning false on ping or close suppresses the automatic reply.
func (w *WsConnection) Events() *Target {
	return w.events
}

// Install keeps dispatch as the slot for event and hands it to the socket once it is open.
func (w *WsConnection) Install(event string, dispatch DispatchFunc) error {
	switch event {
	case EventPing, EventPong, EventClose:
	default:
		return errors.Wrapf(ErrUnsupportedEvent, "websocket has no %s slot", SlotName(event))
	}

	w.slotsMu.Lock()
	defer w.slotsMu.Unlock()

	w.slots[event] = dispatch
	if w.conn != nil {
		return NewWebsocketHost(w.conn).Install(event, dispatch)
	}
	return nil
}

// Remove restores the socket's default handling for event.
func (w *WsConnection) Remove(event string) error {
	w.slotsMu.Lock()
	defer w.slotsMu.Unlock()

	delete(w.slots, event)
	if w.conn != nil {
		return NewWebsocketHost(w.conn).Remove(event)
	}
	return nil
}

// Write sends a message over the WebSocket connection.
func (w *WsConnection) Write(m Message) error {
	w.send <- m
	return nil
}

// Close terminates the WebSocket connection.
// It ensures that all resources related to the connection are cleaned up.
func (w *WsConnection) Close() {
	w.safeClose()
}

// Open initiates the WebSocket connection.
// This method is blocking and returns when the connection is successfully established or an error occurs.
func (w *WsConnection) Open(ctx context.Context) error {
	return w.start(ctx)
}

// CloseChan returns a channel that will be closed when the WebSocket connection is closed.
// This can be used to monitor the connection's closing event.
func (w *WsConnection) CloseChan() CloseChan {
	return w.closeChan
}

// CloseErr returns an error that explains why the WebSocket connection was closed.
// If the connection closed normally, CloseErr should return nil.
func (w *WsConnection) CloseErr() error {
	return w.closeReason
}

func (w *WsConnection) start(ctx context.Context) error {
	p, err := w.openConnectionParamsRepo.Get(ctx)

	if err != nil {
		w.logger.Errorf("cannot get connection params due to %s: ", err)
		return err
	}

	conn, resp, err := w.dialer.Dial(p.URL.String(), p.Header)

	if err = w.handleDialError(conn, resp, err); err != nil {
		w.logger.Errorf("connection err to %s: %s, %+v", p.URL.String(), err, resp)
		return WrapErrorUnrecoverableConnection(err, p.URL)
	}

	w.logger.Debugf("success opening connection to %s", p.URL.String())

	// Hand the slots taken so far over to the socket.
	w.slotsMu.Lock()
	w.conn = conn
	host := NewWebsocketHost(conn)
	for event, dispatch := range w.slots {
		if err := host.Install(event, dispatch); err != nil {
			w.logger.Warnf("cannot bridge %s: %s", event, err)
		}
	}
	w.slotsMu.Unlock()

	go w.read(ctx)
	go w.write(ctx)

	return nil
}

func (w *WsConnection) forwardPing(_ any, args []any) {
	w.logger.Debugln("<= [PING]")
	w.recv <- NewPingMessage([]byte(argString(args, 0)))
}

func (w *WsConnection) forwardPong(_ any, args []any) {
	w.logger.Debugln("<= [PONG]")
	w.recv <- NewPongMessage([]byte(argString(args, 0)))
}

func (w *WsConnection) forwardClose(_ any, args []any) {
	w.logger.Debugln("<= [CLOSE]")
	code, _ := argAt(args, 0).(int)
	w.recv <- NewCloseMessage(code, []byte(argString(args, 1)))
}

func argAt(args []any, i int) any {
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}

func argString(args []any, i int) string {
	s, _ := argAt(args, i).(string)
	return s
}

func (w *WsConnection) read(ctx context.Context) {
	defer w.safeClose()

	for {
		select {
		case <-w.closeChan:
			w.setCloseReason(ErrTerminated)
			return
		case <-ctx.Done():
			w.setCloseReason(ErrTerminated)
			return
		default:
			messageType, bts, err := w.conn.ReadMessage()
			if err != nil {
				var lerr *ListenerError
				if errors.As(err, &lerr) {
					w.logger.Errorf("control frame listener failed: %s", lerr)
				} else {
					w.logger.Errorf("error occurred on websocket read: %s", err)
				}

				w.setCloseReason(errors.Wrap(
					ErrConnectionClosed,
					"error occurred on websocket read: "+err.Error(),
				))
				return
			}
			// message types from ReadMessage are either binary or text
			switch messageType {
			case websocket.BinaryMessage:
				w.logger.Debugln("<= [BIN]")
				w.recv <- NewBinaryMessage(bts)
			default:
				w.logger.Debugf("<= [DATA] %s", string(bts))
				w.recv <- NewDataMessage(bts)
			}
		}
	}
}

func (w *WsConnection) write(ctx context.Context) {
	defer w.safeClose()

	for {
		select {
		case <-w.closeChan:
			w.setCloseReason(ErrTerminated)
			return
		case <-ctx.Done():
			w.setCloseReason(ErrTerminated)
			return
		case msg, ok := <-w.send:
			if !ok {
				w.logger.Infoln("closing connection from our side")
				_ = w.conn.WriteMessage(websocket.CloseMessage, []byte{})
				w.setCloseReason(ErrTerminated)
				return
			}

			deadline := time.Now().Add(time.Second)
			_ = w.conn.SetWriteDeadline(deadline)

			var err error

			switch msg.Type() {
			case PingMessage:
				w.logger.Debugln("=> [PING]")
				err = w.conn.WriteControl(websocket.PingMessage, msg.Data(), deadline)
				if e, ok := err.(net.Error); ok && e.Timeout() {
					err = nil
				}
			case PongMessage:
				w.logger.Debugln("=> [PONG]")
				err = w.conn.WriteControl(websocket.PongMessage, msg.Data(), deadline)
			case DataMessage:
				w.logger.Infof("=> [DATA] %s", msg.Data())
				err = w.conn.WriteMessage(websocket.TextMessage, msg.Data())
			case BinaryMessage:
				w.logger.Debugln("=> [BIN]")
				err = w.conn.WriteMessage(websocket.BinaryMessage, msg.Data())
			}

			if err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					w.setCloseReason(ErrConnectionClosed)
				} else {
					w.setCloseReason(errors.Wrap(ErrConnectionClosed, err.Error()))
				}
			}
		}
	}
}

func (w *WsConnection) safeClose() {
	w.closeOnce.Do(w.close)
}

func (w *WsConnection) close() {
	if w.conn != nil {
		_ = w.conn.Close()
	}
	close(w.closeChan)
}

func (w *WsConnection) setCloseReason(err error) {
	w.closeReasonOnce.Do(func() {
		w.closeReason = err
	})
}

func (w *WsConnection) handleDialError(conn *websocket.Conn, resp *http.Response, err error) error {
	if w.errAdapters.OnDial != nil {
		return w.errAdapters.OnDial(conn, resp, err)
	}

	// 1. Check HTTP errors first
	var msg string

	if resp != nil {
		if resp.Body != nil {
			bts, err := io.ReadAll(resp.Body)
			if err == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(ErrRateLimit, msg)
		}
	}

	// 2. Network errors
	if err != nil {
		return errors.Wrap(ErrCannotConnect, err.Error())
	}

	return nil
}
