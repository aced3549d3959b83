package game

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"go.uber.org/zap"
)

// 游戏分为 5 个阶段：
// 1. 等待阶段（waiting）：玩家加入房间并准备，房主开始游戏
// 2. 揭示阶段（reveal）：私发词语，倒计时结束后进入发言
// 3. 发言阶段（speaking）：存活玩家按加入顺序轮流发言
// 4. 投票阶段（voting）：存活玩家投票，全员投完或超时后计票
// 5. 计票阶段（calculating）：公布结果，判定胜负或开始下一轮
const (
	STAGE_WAITING     = "waiting"
	STAGE_REVEAL      = "reveal"
	STAGE_SPEAKING    = "speaking"
	STAGE_VOTING      = "voting"
	STAGE_CALCULATING = "calculating"
)

// 淘汰或离开之后的胜负判定结果
const (
	OUTCOME_CONTINUE        = "continue"
	OUTCOME_MAJORITY_WINS   = "majority_wins"
	OUTCOME_UNDERCOVER_WINS = "undercover_wins"
)

type StageHandler interface {
	Stage() string

	OnEnter(ctx *GameContext)
	OnHandle(ctx *GameContext, req RequestWrapper) error
	OnExit(ctx *GameContext)
	// OnPlayerExit 在玩家已从名单移除且游戏未结束时调用，idx 为其原下标
	OnPlayerExit(ctx *GameContext, removed *Player, idx int)

	SetOnSwitch(func(nextStage string))
}

func newStageHandler(stage string) StageHandler {
	switch stage {
	case STAGE_WAITING:
		return NewWaitStageHandler()
	case STAGE_REVEAL:
		return NewRevealStageHandler()
	case STAGE_SPEAKING:
		return NewSpeakStageHandler()
	case STAGE_VOTING:
		return NewVoteStageHandler()
	case STAGE_CALCULATING:
		return NewCalcStageHandler()
	default:
		return nil
	}
}

// 等待阶段，也是游戏结束后回到的大厅
type waitStageHandler struct {
	onSwitch func(string)
}

func NewWaitStageHandler() *waitStageHandler {
	return &waitStageHandler{}
}

func (wsh *waitStageHandler) Stage() string {
	return STAGE_WAITING
}

func (wsh *waitStageHandler) OnEnter(ctx *GameContext) {
	ctx.Game = newGameData()
}

func (wsh *waitStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if tmo := TryUnwrapTimeoutRequest(req); tmo != nil {
		if tmo.Kind == TASK_LOBBY_RESET && tmo.Remaining == 0 {
			ctx.BroadcastResp(WrapResponse(RESP_GAME_RESET, nil))
			ctx.BroadcastPlayerList()
		}

		return nil
	}

	if r := TryUnwrapToggleReadyRequest(req); r != nil {
		player, _ := ctx.GetPlayer(req.SenderID)
		if player == nil || player.IsHost {
			return ErrForbidden
		}

		player.IsReady = !player.IsReady
		ctx.BroadcastPlayerList()

		return nil
	}

	if r := TryUnwrapStartGameRequest(req); r != nil {
		if err := canStart(ctx, req.SenderID); err != nil {
			return err
		}

		zap.L().Info(
			"房主开始游戏",
			zap.String("room_code", ctx.RoomCode),
			zap.Int("players", len(ctx.Players)),
		)

		wsh.onSwitch(STAGE_REVEAL)

		return nil
	}

	return ErrInvalidState
}

func (wsh *waitStageHandler) OnExit(ctx *GameContext) {
	ctx.sched.Cancel(TASK_LOBBY_RESET)
}

func (wsh *waitStageHandler) OnPlayerExit(ctx *GameContext, removed *Player, idx int) {
}

func (wsh *waitStageHandler) SetOnSwitch(onSwitch func(string)) {
	wsh.onSwitch = onSwitch
}

// canStart 房主视为始终准备
func canStart(ctx *GameContext, senderID string) error {
	if senderID != ctx.HostID {
		return fmt.Errorf("只有房主可以开始游戏: %w", ErrForbidden)
	}

	if len(ctx.Players) < MIN_PLAYERS {
		return fmt.Errorf("玩家不足 %d 人: %w", MIN_PLAYERS, ErrInvalidState)
	}

	for _, p := range ctx.Players {
		if !p.IsHost && !p.IsReady {
			return fmt.Errorf("玩家 %s 尚未准备: %w", p.Name, ErrInvalidState)
		}
	}

	return nil
}

// 揭示阶段：分配词语并倒计时
type revealStageHandler struct {
	onSwitch func(string)
}

func NewRevealStageHandler() *revealStageHandler {
	return &revealStageHandler{}
}

func (rsh *revealStageHandler) Stage() string {
	return STAGE_REVEAL
}

func (rsh *revealStageHandler) OnEnter(ctx *GameContext) {
	for _, p := range ctx.Players {
		p.IsAlive = true
	}

	ctx.Game = newGameData()
	ctx.Game.WordPair, ctx.Game.UsedWordIndices = ctx.Words.NextUnusedPair(ctx.Game.UsedWordIndices)
	ctx.Game.UndercoverID = ctx.Players[rand.IntN(len(ctx.Players))].ID

	for _, p := range ctx.Players {
		ctx.UnicastResp(
			p.ID,
			WrapResponse(
				RESP_GAME_STARTED,
				GameStartedResponse{
					Role: ROLE_LABEL,
					Word: ctx.wordFor(p.ID),
				},
			),
		)
	}

	seconds := ctx.Timings.RevealSeconds
	ctx.BroadcastSystemMessage(fmt.Sprintf("請確認身分，遊戲將在 %d 秒後開始...", seconds))
	ctx.sched.Countdown(TASK_REVEAL, seconds, STAGE_REVEAL, 0)

	ctx.Metrics.GameStarted()

	zap.L().Info(
		"词语分配完成",
		zap.String("room_code", ctx.RoomCode),
		zap.String("undercover_id", ctx.Game.UndercoverID),
		zap.Int("used_pairs", len(ctx.Game.UsedWordIndices)),
	)
}

func (rsh *revealStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if tmo := TryUnwrapTimeoutRequest(req); tmo != nil {
		if tmo.Kind != TASK_REVEAL {
			return nil
		}

		ctx.BroadcastTimer(tmo.Remaining)

		if tmo.Remaining == 0 {
			ctx.BroadcastResp(WrapResponse(RESP_HIDE_OVERLAY, nil))
			rsh.onSwitch(STAGE_SPEAKING)
		}

		return nil
	}

	return ErrInvalidState
}

func (rsh *revealStageHandler) OnExit(ctx *GameContext) {
	ctx.sched.Cancel(TASK_REVEAL)
}

func (rsh *revealStageHandler) OnPlayerExit(ctx *GameContext, removed *Player, idx int) {
}

func (rsh *revealStageHandler) SetOnSwitch(onSwitch func(string)) {
	rsh.onSwitch = onSwitch
}

// 发言阶段：按加入顺序跳过已淘汰玩家
type speakStageHandler struct {
	onSwitch func(string)
}

func NewSpeakStageHandler() *speakStageHandler {
	return &speakStageHandler{}
}

func (ssh *speakStageHandler) Stage() string {
	return STAGE_SPEAKING
}

func (ssh *speakStageHandler) OnEnter(ctx *GameContext) {
	ctx.Game.CurrentTurnIndex = -1
	ssh.nextTurn(ctx)
}

func (ssh *speakStageHandler) nextTurn(ctx *GameContext) {
	ctx.sched.Cancel(TASK_TURN)

	next := ctx.NextAliveIndex(ctx.Game.CurrentTurnIndex)
	if next >= len(ctx.Players) {
		ssh.onSwitch(STAGE_VOTING)
		return
	}

	ctx.Game.CurrentTurnIndex = next
	ctx.Game.TurnSeq++

	speaker := ctx.Players[next]
	seconds := ctx.Timings.TurnSeconds

	ctx.BroadcastResp(
		WrapResponse(
			RESP_PLAYER_TURN,
			PlayerTurnResponse{
				PlayerID: speaker.ID,
				Duration: seconds,
			},
		),
	)
	ctx.BroadcastTimer(seconds)

	ctx.sched.Countdown(TASK_TURN, seconds, STAGE_SPEAKING, ctx.Game.TurnSeq)
}

func (ssh *speakStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if tmo := TryUnwrapTimeoutRequest(req); tmo != nil {
		if tmo.Kind != TASK_TURN || tmo.TurnSeq != ctx.Game.TurnSeq {
			return nil
		}

		ctx.BroadcastTimer(tmo.Remaining)

		if tmo.Remaining == 0 {
			ssh.nextTurn(ctx)
		}

		return nil
	}

	if TryUnwrapSubmitDescriptionRequest(req) != nil || TryUnwrapSkipTurnRequest(req) != nil {
		speaker := ctx.CurrentSpeaker()
		if speaker == nil || speaker.ID != req.SenderID {
			return fmt.Errorf("还没轮到该玩家发言: %w", ErrForbidden)
		}

		ssh.nextTurn(ctx)

		return nil
	}

	return ErrInvalidState
}

func (ssh *speakStageHandler) OnExit(ctx *GameContext) {
	ctx.sched.Cancel(TASK_TURN)
}

func (ssh *speakStageHandler) OnPlayerExit(ctx *GameContext, removed *Player, idx int) {
	cur := ctx.Game.CurrentTurnIndex

	switch {
	case idx < cur:
		ctx.Game.CurrentTurnIndex--
	case idx == cur:
		// 当前发言者离开，下一个玩家已经顶到了 idx 上
		ctx.Game.CurrentTurnIndex--
		ssh.nextTurn(ctx)
	}
}

func (ssh *speakStageHandler) SetOnSwitch(onSwitch func(string)) {
	ssh.onSwitch = onSwitch
}

// 投票阶段
type voteStageHandler struct {
	onSwitch func(string)
}

func NewVoteStageHandler() *voteStageHandler {
	return &voteStageHandler{}
}

func (vsh *voteStageHandler) Stage() string {
	return STAGE_VOTING
}

func (vsh *voteStageHandler) OnEnter(ctx *GameContext) {
	ctx.Game.Votes = NewVoteTally()
	ctx.Game.CurrentTurnIndex = -1

	seconds := ctx.Timings.VoteSeconds

	ctx.BroadcastResp(
		WrapResponse(
			RESP_START_VOTING,
			StartVotingResponse{
				AlivePlayers: ctx.AlivePlayers(),
			},
		),
	)
	ctx.BroadcastSystemMessage(fmt.Sprintf("發言結束，請開始投票！ (%ds)", seconds))
	ctx.BroadcastTimer(seconds)

	ctx.sched.Countdown(TASK_VOTE, seconds, STAGE_VOTING, 0)
}

func (vsh *voteStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if tmo := TryUnwrapTimeoutRequest(req); tmo != nil {
		if tmo.Kind != TASK_VOTE {
			return nil
		}

		ctx.BroadcastTimer(tmo.Remaining)

		if tmo.Remaining == 0 {
			vsh.onSwitch(STAGE_CALCULATING)
		}

		return nil
	}

	if r := TryUnwrapVotePlayerRequest(req); r != nil {
		voter, _ := ctx.GetPlayer(req.SenderID)
		if voter == nil || !voter.IsAlive {
			return fmt.Errorf("投票人不存在或已被淘汰: %w", ErrForbidden)
		}

		target, _ := ctx.GetPlayer(r.TargetID)
		if target == nil || !target.IsAlive {
			return fmt.Errorf("投票目标 %q 不存在或已被淘汰: %w", r.TargetID, ErrInvalidState)
		}

		ctx.Game.Votes.Cast(voter.ID, target.ID)

		zap.L().Debug(
			"玩家投票",
			zap.String("room_code", ctx.RoomCode),
			zap.String("voter_id", voter.ID),
			zap.String("target_id", target.ID),
			zap.Int("voters", ctx.Game.Votes.VoterCount()),
		)

		vsh.checkQuorum(ctx)

		return nil
	}

	return ErrInvalidState
}

func (vsh *voteStageHandler) checkQuorum(ctx *GameContext) {
	if !ctx.Game.Votes.HasQuorum(ctx.CountAlive()) {
		return
	}

	ctx.sched.Cancel(TASK_VOTE)
	vsh.onSwitch(STAGE_CALCULATING)
}

func (vsh *voteStageHandler) OnExit(ctx *GameContext) {
	ctx.sched.Cancel(TASK_VOTE)
}

func (vsh *voteStageHandler) OnPlayerExit(ctx *GameContext, removed *Player, idx int) {
	ctx.Game.Votes.Retract(removed.ID)
	vsh.checkQuorum(ctx)
}

func (vsh *voteStageHandler) SetOnSwitch(onSwitch func(string)) {
	vsh.onSwitch = onSwitch
}

// 计票阶段：公布结果，稍后进入下一轮或回到大厅
type calcStageHandler struct {
	onSwitch func(string)
	// 有人被淘汰且游戏继续时需要换题
	drawNewWords bool
}

func NewCalcStageHandler() *calcStageHandler {
	return &calcStageHandler{}
}

func (csh *calcStageHandler) Stage() string {
	return STAGE_CALCULATING
}

func (csh *calcStageHandler) OnEnter(ctx *GameContext) {
	result := ctx.Game.Votes.Resolve()

	zap.L().Info(
		"计票完成",
		zap.String("room_code", ctx.RoomCode),
		zap.String("target_id", result.TargetID),
		zap.Int("max_votes", result.MaxVotes),
		zap.Strings("leaders", result.Leaders),
	)

	var target *Player
	if result.Eliminates() {
		target, _ = ctx.GetPlayer(result.TargetID)
	}

	if target == nil {
		csh.showResult(ctx, "今晚沒抓到帥潮")
		return
	}

	target.IsAlive = false
	ctx.BroadcastPlayerList()

	switch evaluateWin(ctx, target.ID) {
	case OUTCOME_MAJORITY_WINS:
		endGame(ctx, WINNER_MAJORITY, fmt.Sprintf("淘汰者是：%s (帥潮)！這是屬於哥布林的勝利！", target.Name))
	case OUTCOME_UNDERCOVER_WINS:
		endGame(ctx, WINNER_UNDERCOVER, fmt.Sprintf("淘汰者是：%s (哥布林)。要贏帥潮還是太難了，帥潮獲勝！", target.Name))
	default:
		csh.drawNewWords = true
		csh.showResult(ctx, fmt.Sprintf("淘汰者是：%s。更換題目繼續...", target.Name))
	}
}

func (csh *calcStageHandler) showResult(ctx *GameContext, msg string) {
	seconds := ctx.Timings.ResultSeconds

	ctx.BroadcastResp(
		WrapResponse(
			RESP_SHOW_RESULT,
			ShowResultResponse{
				Msg:      msg,
				Duration: seconds,
			},
		),
	)

	ctx.sched.Delay(TASK_RESULT, seconds, STAGE_CALCULATING, 0)
}

func (csh *calcStageHandler) OnHandle(ctx *GameContext, req RequestWrapper) error {
	if tmo := TryUnwrapTimeoutRequest(req); tmo != nil {
		if tmo.Kind != TASK_RESULT || tmo.Remaining != 0 {
			return nil
		}

		if csh.drawNewWords {
			redistributeWords(ctx)
		}

		csh.onSwitch(STAGE_SPEAKING)

		return nil
	}

	return ErrInvalidState
}

func (csh *calcStageHandler) OnExit(ctx *GameContext) {
	ctx.sched.Cancel(TASK_RESULT)
}

func (csh *calcStageHandler) OnPlayerExit(ctx *GameContext, removed *Player, idx int) {
}

func (csh *calcStageHandler) SetOnSwitch(onSwitch func(string)) {
	csh.onSwitch = onSwitch
}

// redistributeWords 换一组新词，卧底不变
func redistributeWords(ctx *GameContext) {
	ctx.Game.WordPair, ctx.Game.UsedWordIndices = ctx.Words.NextUnusedPair(ctx.Game.UsedWordIndices)

	for _, p := range ctx.Players {
		if !p.IsAlive {
			continue
		}

		ctx.UnicastResp(
			p.ID,
			WrapResponse(
				RESP_UPDATE_WORD,
				UpdateWordResponse{
					Word: ctx.wordFor(p.ID),
				},
			),
		)
	}

	ctx.BroadcastSystemMessage("題目已更新！發言階段開始")
}

// evaluateWin 在 removedID 被淘汰或离开后判定胜负
func evaluateWin(ctx *GameContext, removedID string) string {
	if removedID == ctx.Game.UndercoverID {
		return OUTCOME_MAJORITY_WINS
	}

	undercover, _ := ctx.GetPlayer(ctx.Game.UndercoverID)
	if undercover != nil && undercover.IsAlive && ctx.CountAlive() <= 2 {
		return OUTCOME_UNDERCOVER_WINS
	}

	return OUTCOME_CONTINUE
}

// endGame 公布最终结果并立即回到等待阶段，大厅重置消息延后发送
func endGame(ctx *GameContext, winner string, msg string) {
	ctx.sched.Cancel(TASK_REVEAL, TASK_TURN, TASK_VOTE, TASK_RESULT)

	seconds := ctx.Timings.FinalResultSeconds

	ctx.BroadcastResp(
		WrapResponse(
			RESP_SHOW_RESULT,
			ShowResultResponse{
				Msg:      msg,
				Duration: seconds,
			},
		),
	)

	for _, p := range ctx.Players {
		p.IsReady = p.IsHost
		p.IsAlive = true
	}

	ctx.sched.Delay(TASK_LOBBY_RESET, seconds, STAGE_WAITING, 0)
	ctx.Metrics.GameFinished(winner)

	zap.L().Info(
		"游戏结束",
		zap.String("room_code", ctx.RoomCode),
		zap.String("winner", winner),
	)

	ctx.GameStage = STAGE_WAITING
}

// onPlayerJoin 只在等待阶段接受新玩家
func onPlayerJoin(ctx *GameContext, client *Client, nickname string) (*Player, error) {
	if ctx.GameStage != STAGE_WAITING {
		return nil, ErrGameInProgress
	}

	if p, _ := ctx.GetPlayer(client.ID); p != nil {
		return nil, ErrAlreadyInRoom
	}

	if len(ctx.Players) >= MAX_PLAYERS {
		return nil, ErrRoomFull
	}

	player := &Player{
		ID:      client.ID,
		Name:    SanitizeNickname(nickname, DefaultNickname(len(ctx.Players)+1)),
		IsAlive: true,
		client:  client,
	}

	ctx.Players = append(ctx.Players, player)

	zap.L().Info(
		"玩家加入房间",
		zap.String("room_code", ctx.RoomCode),
		zap.String("player_id", player.ID),
		zap.String("name", player.Name),
	)

	return player, nil
}

// onPlayerLeave 从名单中移除玩家，不存在时返回 nil
func onPlayerLeave(ctx *GameContext, playerID string) (*Player, int) {
	player, idx := ctx.GetPlayer(playerID)
	if player == nil {
		return nil, -1
	}

	ctx.Players = slices.Delete(ctx.Players, idx, idx+1)

	zap.L().Info(
		"玩家离开房间",
		zap.String("room_code", ctx.RoomCode),
		zap.String("player_id", player.ID),
		zap.String("stage", ctx.GameStage),
	)

	return player, idx
}

// leaveOutcomeMessage 玩家中途离开导致游戏结束时的提示
func leaveOutcomeMessage(outcome string, name string) (string, string) {
	if outcome == OUTCOME_MAJORITY_WINS {
		return WINNER_MAJORITY, fmt.Sprintf("%s (帥潮) 離開了房間！這是屬於哥布林的勝利！", name)
	}

	return WINNER_UNDERCOVER, fmt.Sprintf("%s 離開了房間，剩下的人抓不到帥潮，帥潮獲勝！", name)
}
