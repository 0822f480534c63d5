package libevents

import (
	"net"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
)

// Control frame events a websocket connection exposes as native slots.
const (
	EventPing  = "ping"
	EventPong  = "pong"
	EventClose = "close"
)

const controlWriteWait = time.Second

// wsHost maps the control frame handlers of a websocket connection onto Target slots. Each
// handler setter on the connection holds a single callback, which is what the Target takes over.
// When a pass over the listeners ends with true, the connection's default reply still happens.
type wsHost struct {
	conn *websocket.Conn
}

// NewWebsocketHost returns a Host bridging ping, pong and close frames of conn.
func NewWebsocketHost(conn *websocket.Conn) Host {
	return &wsHost{conn: conn}
}

func (h *wsHost) Install(event string, dispatch DispatchFunc) error {
	switch event {
	case EventPing:
		h.conn.SetPingHandler(func(appData string) error {
			ok, err := dispatch([]any{appData})
			if err != nil || !ok {
				return err
			}
			return h.replyPong(appData)
		})
	case EventPong:
		h.conn.SetPongHandler(func(appData string) error {
			_, err := dispatch([]any{appData})
			return err
		})
	case EventClose:
		h.conn.SetCloseHandler(func(code int, text string) error {
			ok, err := dispatch([]any{code, text})
			if err != nil || !ok {
				return err
			}
			return h.replyClose(code)
		})
	default:
		return errors.Wrapf(ErrUnsupportedEvent, "websocket has no %s slot", SlotName(event))
	}
	return nil
}

func (h *wsHost) Remove(event string) error {
	switch event {
	case EventPing:
		h.conn.SetPingHandler(nil)
	case EventPong:
		h.conn.SetPongHandler(nil)
	case EventClose:
		h.conn.SetCloseHandler(nil)
	default:
		return errors.Wrapf(ErrUnsupportedEvent, "websocket has no %s slot", SlotName(event))
	}
	return nil
}

// replyPong mirrors the connection's default ping handling.
func (h *wsHost) replyPong(appData string) error {
	err := h.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteWait))
	if err == websocket.ErrCloseSent {
		return nil
	}
	if e, ok := err.(net.Error); ok && e.Timeout() {
		return nil
	}
	return err
}

// replyClose mirrors the connection's default close handling.
func (h *wsHost) replyClose(code int) error {
	message := websocket.FormatCloseMessage(code, "")
	_ = h.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(controlWriteWait))
	return nil
}
