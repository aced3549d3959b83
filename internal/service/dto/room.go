package dto

import (
	"time"

	"github.com/BOB-921223/whoisyourdaddy/internal/service/game"
)

type RoomSummary struct {
	RoomCode    string `json:"room_code"`
	Stage       string `json:"stage"`
	HostName    string `json:"host_name"`
	PlayerCount int    `json:"player_count"`
	MaxPlayers  int    `json:"max_players"`

	// 只有等待阶段且未满员时可以加入
	Joinable  bool            `json:"joinable"`
	Players   []PlayerSummary `json:"players"`
	CreatedAt time.Time       `json:"created_at"`
}

func NewRoomSummary(snap game.RoomSnapshot) RoomSummary {
	players := make([]PlayerSummary, 0, len(snap.Players))
	for _, p := range snap.Players {
		players = append(players, NewPlayerSummary(p))
	}

	return RoomSummary{
		RoomCode:    snap.RoomCode,
		Stage:       snap.Stage,
		HostName:    snap.HostName,
		PlayerCount: len(snap.Players),
		MaxPlayers:  game.MAX_PLAYERS,
		Joinable:    snap.Stage == game.STAGE_WAITING && len(snap.Players) < game.MAX_PLAYERS,
		Players:     players,
		CreatedAt:   snap.CreatedAt,
	}
}

type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}
