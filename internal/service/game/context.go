package game

import (
	"github.com/BOB-921223/whoisyourdaddy/internal/metrics"
	"github.com/BOB-921223/whoisyourdaddy/internal/service/words"
	"go.uber.org/zap"
)

// GameContext 只由房间协程读写
type GameContext struct {
	RoomCode  string
	HostID    string
	GameStage string
	// 按加入顺序排列，发言顺序即该顺序
	Players []*Player

	Game GameData

	Words   words.Source
	Timings Timings
	Metrics *metrics.Metrics

	sched *Scheduler
}

func (gc *GameContext) GetPlayer(id string) (*Player, int) {
	for i, p := range gc.Players {
		if p.ID == id {
			return p, i
		}
	}

	return nil, -1
}

func (gc *GameContext) GetHost() *Player {
	p, _ := gc.GetPlayer(gc.HostID)
	return p
}

func (gc *GameContext) CountAlive() int {
	count := 0
	for _, p := range gc.Players {
		if p.IsAlive {
			count++
		}
	}

	return count
}

func (gc *GameContext) AlivePlayers() []Player {
	players := make([]Player, 0, len(gc.Players))
	for _, p := range gc.Players {
		if p.IsAlive {
			players = append(players, *p)
		}
	}

	return players
}

// PlayerList 返回玩家的值拷贝，可以安全地交给其他协程序列化
func (gc *GameContext) PlayerList() []Player {
	players := make([]Player, 0, len(gc.Players))
	for _, p := range gc.Players {
		players = append(players, *p)
	}

	return players
}

// NextAliveIndex 从 from 之后找下一个存活玩家，找不到时返回 len(Players)
func (gc *GameContext) NextAliveIndex(from int) int {
	for i := from + 1; i < len(gc.Players); i++ {
		if gc.Players[i].IsAlive {
			return i
		}
	}

	return len(gc.Players)
}

// CurrentSpeaker 当前没有人发言时返回 nil
func (gc *GameContext) CurrentSpeaker() *Player {
	idx := gc.Game.CurrentTurnIndex
	if idx < 0 || idx >= len(gc.Players) {
		return nil
	}

	return gc.Players[idx]
}

func (gc *GameContext) wordFor(playerID string) string {
	if playerID == gc.Game.UndercoverID {
		return gc.Game.WordPair.Undercover
	}

	return gc.Game.WordPair.Normal
}

func (gc *GameContext) BroadcastResp(resp ResponseWrapper) {
	for _, p := range gc.Players {
		if p.client == nil {
			continue
		}

		p.client.Send(resp)
	}

	zap.L().Debug(
		"广播响应",
		zap.String("room_code", gc.RoomCode),
		zap.String("response_type", resp.RespType),
		zap.Int("receivers", len(gc.Players)),
	)
}

func (gc *GameContext) UnicastResp(playerID string, resp ResponseWrapper) {
	player, _ := gc.GetPlayer(playerID)
	if player == nil || player.client == nil {
		zap.L().Warn(
			"无法找到玩家进行单播响应",
			zap.String("room_code", gc.RoomCode),
			zap.String("player_id", playerID),
		)
		return
	}

	player.client.Send(resp)
}

func (gc *GameContext) BroadcastPlayerList() {
	gc.BroadcastResp(WrapResponse(RESP_UPDATE_PLAYER_LIST, gc.PlayerList()))
}

func (gc *GameContext) BroadcastTimer(seconds int) {
	gc.BroadcastResp(WrapResponse(RESP_TIMER_UPDATE, seconds))
}

func (gc *GameContext) BroadcastSystemMessage(msg string) {
	gc.BroadcastResp(WrapResponse(RESP_SYSTEM_MESSAGE, msg))
}

// announceJoin 通知新玩家所在房间，随后广播名单
func (gc *GameContext) announceJoin(player *Player) {
	gc.UnicastResp(
		player.ID,
		WrapResponse(
			RESP_ROOM_JOINED,
			RoomJoinedResponse{
				RoomCode: gc.RoomCode,
				IsHost:   player.IsHost,
			},
		),
	)

	gc.BroadcastPlayerList()
}
