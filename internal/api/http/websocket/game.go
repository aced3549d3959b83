package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BOB-921223/whoisyourdaddy/internal/service/game"
	"github.com/BOB-921223/whoisyourdaddy/internal/state"
	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ERR_MSG_BAD_FORMAT = "無效的請求格式"
	ERR_MSG_TOO_FAST   = "操作太頻繁，請稍後再試"
)

func JoinGame(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		conn, err := upgrader.Upgrade(
			ctx.ResponseWriter(),
			ctx.Request(),
			nil,
		)
		if err != nil {
			zap.L().Error("升级到WebSocket失败", zap.Error(err))
			ctx.StatusCode(iris.StatusBadRequest)
			return
		}

		ServeConn(appState, conn, ctx.RemoteAddr())
	}
}

// ServeConn 处理一条连接直到断开，连接断开时通知房间服务
func ServeConn(appState *state.AppState, conn *websocket.Conn, clientIP string) {
	defer conn.Close()

	wsCfg := appState.Cfg.WS

	client := game.NewClient(wsCfg.SendBuffer)
	limiter := rate.NewLimiter(rate.Limit(wsCfg.EventsPerSecond), wsCfg.EventBurst)

	appState.Metrics.ConnectionOpened()
	defer appState.Metrics.ConnectionClosed()

	keepAlive(conn)

	zap.L().Info(
		"客户端已连接",
		zap.String("client_ip", clientIP),
		zap.String("client_id", client.ID),
	)

	// 写协程的退出信号
	writeDoneCh := make(chan struct{})
	writerExitedCh := make(chan struct{})

	go writePump(conn, client, clientIP, writeDoneCh, writerExitedCh)

	// 读取协程（主协程）
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure,
			) {
				zap.L().Error(
					"读取消息失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
			}

			break
		}

		extendReadDeadline(conn)

		if !limiter.Allow() {
			zap.L().Warn(
				"客户端请求过于频繁",
				zap.String("client_ip", clientIP),
				zap.String("client_id", client.ID),
			)

			client.Send(game.WrapErrResponse(ERR_MSG_TOO_FAST))
			continue
		}

		var wrapper game.RequestWrapper

		if err := json.Unmarshal(msg, &wrapper); err != nil || wrapper.ReqType == "" {
			zap.L().Debug(
				"解析消息失败",
				zap.String("client_ip", clientIP),
				zap.Error(err),
			)

			client.Send(game.WrapErrResponse(ERR_MSG_BAD_FORMAT))
			continue
		}

		if err := appState.RoomSvc.Handle(context.Background(), client, wrapper); err != nil {
			client.Send(game.WrapErrResponse(err.Error()))
		}
	}

	zap.L().Info(
		"客户端连接断开",
		zap.String("client_ip", clientIP),
		zap.String("client_id", client.ID),
	)

	appState.RoomSvc.Disconnect(client.ID)

	close(writeDoneCh)
	<-writerExitedCh
}

func writePump(
	conn *websocket.Conn,
	client *game.Client,
	clientIP string,
	writeDoneCh <-chan struct{},
	writerExitedCh chan<- struct{},
) {
	defer close(writerExitedCh)

	ticker := time.NewTicker(PING_PERIOD)
	defer ticker.Stop()

	for {
		select {
		case <-writeDoneCh:
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				zap.L().Debug(
					"发送心跳失败",
					zap.String("client_ip", clientIP),
					zap.Error(err),
				)
				// 关闭连接让读协程退出
				conn.Close()
				return
			}

		case resp := <-client.RespCh:
			conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT))

			if err := conn.WriteJSON(resp); err != nil {
				zap.L().Debug(
					"发送消息失败",
					zap.String("client_ip", clientIP),
					zap.String("response_type", resp.RespType),
					zap.Error(err),
				)
				conn.Close()
				return
			}
		}
	}
}
