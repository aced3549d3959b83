package game

import "errors"

// 面向客户端的错误只有创建/加入房间会真正下发，其余仅记录日志
var (
	ErrRoomNotFound   = errors.New("房間不存在")
	ErrRoomFull       = errors.New("房間已滿")
	ErrGameInProgress = errors.New("遊戲已開始")
	ErrAlreadyInRoom  = errors.New("你已經在房間中")
	ErrNoRoomCode     = errors.New("暫時無法建立房間，請稍後再試")
	ErrRoomBusy       = errors.New("房間繁忙，請稍後再試")

	ErrForbidden    = errors.New("无权执行该操作")
	ErrInvalidState = errors.New("当前阶段不支持该操作")
)
