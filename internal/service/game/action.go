package game

type CreateRoomRequest struct {
	Nickname string `json:"nickname"`
}

type JoinRoomRequest struct {
	RoomCode string `json:"room_code"`
	Nickname string `json:"nickname"`
}

// leaveRoom / toggleReady / startGame / skipTurn / disbandRoom 只携带房间号
type RoomRequest struct {
	RoomCode string `json:"room_code"`
}

// 发言内容不做校验也不保存，只作为结束本轮发言的信号
type SubmitDescriptionRequest struct {
	RoomCode string `json:"room_code"`
	Msg      string `json:"msg"`
}

type VotePlayerRequest struct {
	RoomCode string `json:"room_code"`
	TargetID string `json:"target_id"`
}

// JoinRoomCommand 由 RoomService 转发给房间协程，结果通过 ReplyCh 返回
type JoinRoomCommand struct {
	Client   *Client
	Nickname string
	ReplyCh  chan error
}

type SnapshotCommand struct {
	ReplyCh chan RoomSnapshot
}

// TimeoutRequest 由计时器投递回房间协程，携带调度时捕获的上下文
type TimeoutRequest struct {
	Kind      string
	Token     uint64
	Stage     string
	TurnSeq   int
	Remaining int
}

type RoomJoinedResponse struct {
	RoomCode string `json:"room_code"`
	IsHost   bool   `json:"is_host"`
}

type GameStartedResponse struct {
	Role string `json:"role"`
	Word string `json:"word"`
}

type UpdateWordResponse struct {
	Word string `json:"word"`
}

type PlayerTurnResponse struct {
	PlayerID string `json:"player_id"`
	Duration int    `json:"duration"`
}

type StartVotingResponse struct {
	AlivePlayers []Player `json:"alive_players"`
}

type ShowResultResponse struct {
	Msg      string `json:"msg"`
	Duration int    `json:"duration"`
}
