package providers

import (
	"sync"
	"time"

	"github.com/fasthttp/websocket"
)

// wsConn adapts a fasthttp/websocket.Conn to types.Conn and types.Pinger.
type wsConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
	pongWait  time.Duration
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(conn *websocket.Conn, maxFrame int64, writeWait, pongWait time.Duration) *wsConn {
	conn.SetReadLimit(maxFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsConn{conn: conn, writeWait: writeWait, pongWait: pongWait}
}

// ReadFrame returns the next data frame. Any inbound frame extends the read
// deadline.
func (w *wsConn) ReadFrame() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = w.conn.SetReadDeadline(time.Now().Add(w.pongWait))
	return data, nil
}

// WriteFrame is called only from the client's write pump.
func (w *wsConn) WriteFrame(data []byte) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) Ping() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeWait))
}

func (w *wsConn) Close() error {
	w.closeOnce.Do(func() {
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
