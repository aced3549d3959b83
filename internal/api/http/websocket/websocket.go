package websocket

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// 服务端每隔 PING_PERIOD 发送一次 ping
	PING_PERIOD = 30 * time.Second
	// 超过 PONG_WAIT 没有收到任何数据视为断线
	PONG_WAIT   = 45 * time.Second
	WRITE_WAIT  = 10 * time.Second

	// 客户端事件都很小，超过这个大小直接断开
	MAX_MESSAGE_SIZE = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:    1024,
	WriteBufferSize:   2048,
	HandshakeTimeout:  10 * time.Second,
	EnableCompression: true,
	// 前端可能由其他域名托管，不校验来源
	CheckOrigin: func(*http.Request) bool { return true },
}

// keepAlive 设置读限制和读超时，每次收到 pong 时顺延
func keepAlive(conn *websocket.Conn) {
	conn.SetReadLimit(MAX_MESSAGE_SIZE)
	extendReadDeadline(conn)

	conn.SetPongHandler(func(string) error {
		return extendReadDeadline(conn)
	})
}

func extendReadDeadline(conn *websocket.Conn) error {
	return conn.SetReadDeadline(time.Now().Add(PONG_WAIT))
}
