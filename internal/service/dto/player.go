package dto

import "github.com/BOB-921223/whoisyourdaddy/internal/service/game"

// 对外公开的玩家信息，不包含连接 ID
type PlayerSummary struct {
	Name    string `json:"name"`
	IsHost  bool   `json:"is_host"`
	IsReady bool   `json:"is_ready"`
	IsAlive bool   `json:"is_alive"`
}

func NewPlayerSummary(p game.Player) PlayerSummary {
	return PlayerSummary{
		Name:    p.Name,
		IsHost:  p.IsHost,
		IsReady: p.IsReady,
		IsAlive: p.IsAlive,
	}
}
