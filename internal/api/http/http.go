package http

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/BOB-921223/whoisyourdaddy/internal/api/http/websocket"
	"github.com/BOB-921223/whoisyourdaddy/internal/state"
	"github.com/kataras/iris/v12"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const SHUTDOWN_TIMEOUT = 5 * time.Second

// NewApp 组装所有路由，静态目录不存在时只提供接口
func NewApp(appState *state.AppState) *iris.Application {
	app := iris.Default()

	if dir := appState.Cfg.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			app.HandleDir(
				"/",
				iris.Dir(dir),
				iris.DirOptions{
					IndexName: "index.html",
					SPA:       true,
					Compress:  true,
				},
			)
		} else {
			zap.S().Warnf("静态资源目录 %s 不存在，跳过", dir)
		}
	}

	app.Get("/healthz", Healthz(appState))

	if appState.Gatherer != nil {
		app.Get("/metrics", iris.FromStd(promhttp.HandlerFor(
			appState.Gatherer,
			promhttp.HandlerOpts{},
		)))
	}

	api := app.Party("/api/v1")

	api.Get("/ws", websocket.JoinGame(appState))

	api.Get("/rooms", ListRooms(appState))
	api.Get("/rooms/{code:string}", GetRoom(appState))
	api.Get("/rooms/{code:string}/qr", RoomQRCode(appState))

	return app
}

func RunServer(appState *state.AppState) error {
	app := NewApp(appState)

	iris.RegisterOnInterrupt(func() {
		zap.L().Info("收到退出信号，正在关闭服务器")

		ctx, cancel := context.WithTimeout(context.Background(), SHUTDOWN_TIMEOUT)
		defer cancel()

		// 先解散所有房间，客户端会收到 roomDisbanded
		appState.RoomSvc.Close()

		if err := app.Shutdown(ctx); err != nil {
			zap.L().Error("关闭服务器失败", zap.Error(err))
		}
	})

	addr := appState.Cfg.Addr()
	zap.S().Infof("服务器监听于 %s", addr)

	err := app.Listen(addr, iris.WithoutInterruptHandler)
	if err != nil && !errors.Is(err, iris.ErrServerClosed) {
		return err
	}

	return nil
}
