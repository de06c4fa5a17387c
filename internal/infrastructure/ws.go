package infra

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Websocket upgrades echo requests to websocket connections
type Websocket struct {
	upgrader websocket.Upgrader
}

// NewWebsocket create a websocket upgrader accepting any origin
func NewWebsocket() *Websocket {
	return &Websocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			HandshakeTimeout: 3 * time.Second,
		},
	}
}

// Handler upgrade the request and hand the connection over to serve, which owns it afterwards
func (ws *Websocket) Handler(serve func(conn *websocket.Conn)) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := ws.upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// the upgrader has already replied with an error status
			return nil
		}
		serve(conn)
		return nil
	}
}
