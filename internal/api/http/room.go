package http

import (
	"errors"
	"fmt"

	"github.com/BOB-921223/whoisyourdaddy/internal/service/dto"
	"github.com/BOB-921223/whoisyourdaddy/internal/service/game"
	"github.com/BOB-921223/whoisyourdaddy/internal/state"
	"github.com/kataras/iris/v12"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const QR_CODE_SIZE = 256

func Healthz(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"status": "ok",
			"rooms":  appState.RoomSvc.RoomCount(),
		})
	}
}

func ListRooms(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		rooms := appState.RoomSvc.ListRooms(ctx.Request().Context())

		ctx.JSON(dto.ListRoomsResponse{Rooms: rooms})
	}
}

func GetRoom(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		code := ctx.Params().Get("code")

		room, err := appState.RoomSvc.GetRoom(ctx.Request().Context(), code)
		if err != nil {
			writeRoomError(ctx, err)
			return
		}

		ctx.JSON(room)
	}
}

// RoomQRCode 返回加入房间链接的二维码图片
func RoomQRCode(appState *state.AppState) iris.Handler {
	return func(ctx iris.Context) {
		code := ctx.Params().Get("code")

		if !appState.RoomSvc.HasRoom(code) {
			writeRoomError(ctx, game.ErrRoomNotFound)
			return
		}

		png, err := qrcode.Encode(joinURL(ctx, code), qrcode.Medium, QR_CODE_SIZE)
		if err != nil {
			zap.L().Error("生成二维码失败", zap.String("room_code", code), zap.Error(err))
			ctx.StatusCode(iris.StatusInternalServerError)
			ctx.JSON(iris.Map{
				"error": "生成 QR Code 失敗",
			})
			return
		}

		ctx.ContentType("image/png")
		ctx.Write(png)
	}
}

func joinURL(ctx iris.Context, code string) string {
	scheme := "http"
	if ctx.Request().TLS != nil {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s/?room=%s", scheme, ctx.Host(), code)
}

func writeRoomError(ctx iris.Context, err error) {
	if errors.Is(err, game.ErrRoomNotFound) {
		ctx.StatusCode(iris.StatusNotFound)
	} else {
		ctx.StatusCode(iris.StatusServiceUnavailable)
	}

	ctx.JSON(iris.Map{
		"error": err.Error(),
	})
}
