package game

import (
	"encoding/json"

	"go.uber.org/zap"
)

// 客户端请求类型
const (
	REQ_CREATE_ROOM        = "createRoom"
	REQ_JOIN_ROOM          = "joinRoom"
	REQ_LEAVE_ROOM         = "leaveRoom"
	REQ_TOGGLE_READY       = "toggleReady"
	REQ_START_GAME         = "startGame"
	REQ_SUBMIT_DESCRIPTION = "submitDescription"
	REQ_SKIP_TURN          = "skipTurn"
	REQ_VOTE_PLAYER        = "votePlayer"
	REQ_DISBAND_ROOM       = "disbandRoom"
)

// 服务端内部请求类型，只通过 NativeData 传递
const (
	REQ_TIMEOUT  = "Timeout"
	REQ_SNAPSHOT = "Snapshot"
)

type RequestWrapper struct {
	ReqType string          `json:"request_type"`
	Data    json.RawMessage `json:"data"`

	// 由服务端根据连接填写，客户端无法伪造
	SenderID string `json:"-"`
	// 服务端内部请求携带的原生数据
	NativeData any `json:"-"`
}

func tryUnwrap[T any](wrapper RequestWrapper, reqType string) *T {
	if wrapper.ReqType != reqType {
		return nil
	}

	if native, ok := wrapper.NativeData.(*T); ok {
		return native
	}

	var req T

	if len(wrapper.Data) == 0 {
		return &req
	}

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		zap.L().Error(
			"解析请求数据失败",
			zap.String("request_type", reqType),
			zap.Error(err),
		)
		return nil
	}

	return &req
}

func TryUnwrapCreateRoomRequest(wrapper RequestWrapper) *CreateRoomRequest {
	return tryUnwrap[CreateRoomRequest](wrapper, REQ_CREATE_ROOM)
}

func TryUnwrapJoinRoomRequest(wrapper RequestWrapper) *JoinRoomRequest {
	return tryUnwrap[JoinRoomRequest](wrapper, REQ_JOIN_ROOM)
}

// TryUnwrapJoinRoomCommand 只接受服务端转发的加入命令
func TryUnwrapJoinRoomCommand(wrapper RequestWrapper) *JoinRoomCommand {
	if wrapper.ReqType != REQ_JOIN_ROOM {
		return nil
	}

	cmd, _ := wrapper.NativeData.(*JoinRoomCommand)
	return cmd
}

func TryUnwrapLeaveRoomRequest(wrapper RequestWrapper) *RoomRequest {
	return tryUnwrap[RoomRequest](wrapper, REQ_LEAVE_ROOM)
}

func TryUnwrapToggleReadyRequest(wrapper RequestWrapper) *RoomRequest {
	return tryUnwrap[RoomRequest](wrapper, REQ_TOGGLE_READY)
}

func TryUnwrapStartGameRequest(wrapper RequestWrapper) *RoomRequest {
	return tryUnwrap[RoomRequest](wrapper, REQ_START_GAME)
}

func TryUnwrapSubmitDescriptionRequest(wrapper RequestWrapper) *SubmitDescriptionRequest {
	return tryUnwrap[SubmitDescriptionRequest](wrapper, REQ_SUBMIT_DESCRIPTION)
}

func TryUnwrapSkipTurnRequest(wrapper RequestWrapper) *RoomRequest {
	return tryUnwrap[RoomRequest](wrapper, REQ_SKIP_TURN)
}

func TryUnwrapVotePlayerRequest(wrapper RequestWrapper) *VotePlayerRequest {
	return tryUnwrap[VotePlayerRequest](wrapper, REQ_VOTE_PLAYER)
}

func TryUnwrapTimeoutRequest(wrapper RequestWrapper) *TimeoutRequest {
	if wrapper.ReqType != REQ_TIMEOUT {
		return nil
	}

	req, _ := wrapper.NativeData.(*TimeoutRequest)
	return req
}

func TryUnwrapSnapshotCommand(wrapper RequestWrapper) *SnapshotCommand {
	if wrapper.ReqType != REQ_SNAPSHOT {
		return nil
	}

	cmd, _ := wrapper.NativeData.(*SnapshotCommand)
	return cmd
}

// RoomCodeOf 读取任意房间请求里的房间号
func RoomCodeOf(wrapper RequestWrapper) string {
	var req RoomRequest

	if len(wrapper.Data) == 0 {
		return ""
	}

	if err := json.Unmarshal(wrapper.Data, &req); err != nil {
		return ""
	}

	return req.RoomCode
}

// 响应类型
const (
	RESP_ROOM_JOINED        = "roomJoined"
	RESP_UPDATE_PLAYER_LIST = "updatePlayerList"
	RESP_GAME_STARTED       = "gameStarted"
	RESP_UPDATE_WORD        = "updateWord"
	RESP_TIMER_UPDATE       = "timerUpdate"
	RESP_SYSTEM_MESSAGE     = "systemMessage"
	RESP_HIDE_OVERLAY       = "hideOverlay"
	RESP_PLAYER_TURN        = "playerTurn"
	RESP_START_VOTING       = "startVoting"
	RESP_SHOW_RESULT        = "showResult"
	RESP_GAME_RESET         = "gameReset"
	RESP_ROOM_DISBANDED     = "roomDisbanded"
	RESP_ERROR_MESSAGE      = "errorMessage"
)

type ResponseWrapper struct {
	RespType string `json:"response_type"`
	Data     any    `json:"data"`
	ErrMsg   string `json:"error_message,omitempty"`
}

func WrapResponse(respType string, data any) ResponseWrapper {
	return ResponseWrapper{
		RespType: respType,
		Data:     data,
	}
}

func WrapErrResponse(errMsg string) ResponseWrapper {
	return ResponseWrapper{
		RespType: RESP_ERROR_MESSAGE,
		ErrMsg:   errMsg,
	}
}
