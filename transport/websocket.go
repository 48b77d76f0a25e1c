package transport

import (
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// WebSocket binds a stream to a WebSocket connection per RFC 7395: every
// top-level element travels in its own text frame.
type WebSocket struct {
	conn *websocket.Conn
}

// Subprotocol is the WebSocket subprotocol identifier of RFC 7395.
const Subprotocol = "xmpp"

// DialWebSocket connects to a wss:// or ws:// endpoint and negotiates the
// xmpp subprotocol.
func DialWebSocket(url string, d *websocket.Dialer) (*WebSocket, error) {
	if d == nil {
		d = websocket.DefaultDialer
	}
	hdr := map[string][]string{"Sec-WebSocket-Protocol": {Subprotocol}}
	conn, resp, err := d.Dial(url, hdr)
	if err != nil {
		return nil, errors.Wrapf(err, "websocket dial %s", url)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if got := conn.Subprotocol(); got != Subprotocol {
		conn.Close()
		return nil, errors.Errorf("peer selected subprotocol %q, want %q", got, Subprotocol)
	}
	return &WebSocket{conn: conn}, nil
}

// NewWebSocket wraps an already established connection, e.g. one accepted
// by a server side upgrader.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

// ReadElement returns the next text frame. Binary frames are a protocol
// violation under RFC 7395.
func (t *WebSocket) ReadElement() ([]byte, error) {
	for {
		mt, p, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, ErrClosed
			}
			return nil, err
		}
		switch mt {
		case websocket.TextMessage:
			return p, nil
		case websocket.BinaryMessage:
			return nil, errors.New("binary frame on xmpp subprotocol")
		}
	}
}

// WriteElement sends one element as a single text frame.
func (t *WebSocket) WriteElement(el []byte) error {
	return t.conn.WriteMessage(websocket.TextMessage, el)
}

// Close sends a close frame and tears the connection down.
func (t *WebSocket) Close() error {
	t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return t.conn.Close()
}
