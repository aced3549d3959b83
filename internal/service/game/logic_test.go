package game

import (
	"fmt"
	"strings"
	"testing"

	"github.com/BOB-921223/whoisyourdaddy/internal/service/words"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enterSpeaking(t *testing.T, gm *GameMachine, host *Client, others ...*Client) {
	t.Helper()

	for _, c := range others {
		send(gm, c, REQ_TOGGLE_READY, RoomRequest{RoomCode: "1234"})
	}

	send(gm, host, REQ_START_GAME, RoomRequest{RoomCode: "1234"})
	require.Equal(t, STAGE_REVEAL, gm.ctx.GameStage)

	fire(gm, TASK_REVEAL, 0)
	require.Equal(t, STAGE_SPEAKING, gm.ctx.GameStage)
}

func enterVoting(t *testing.T, gm *GameMachine, clients ...*Client) {
	t.Helper()

	enterSpeaking(t, gm, clients[0], clients[1:]...)

	for _, c := range clients {
		send(gm, c, REQ_SKIP_TURN, RoomRequest{RoomCode: "1234"})
	}

	require.Equal(t, STAGE_VOTING, gm.ctx.GameStage)
}

func vote(gm *GameMachine, voter *Client, targetID string) {
	send(gm, voter, REQ_VOTE_PLAYER, VotePlayerRequest{RoomCode: "1234", TargetID: targetID})
}

func lastResult(t *testing.T, client *Client) ShowResultResponse {
	t.Helper()

	results := findResp(drain(client), RESP_SHOW_RESULT)
	require.NotEmpty(t, results)

	return results[len(results)-1].Data.(ShowResultResponse)
}

func playersWithReady(n int, mask int) *GameContext {
	ctx := &GameContext{HostID: "p0"}

	for i := 0; i < n; i++ {
		p := &Player{ID: fmt.Sprintf("p%d", i), IsAlive: true}
		if i == 0 {
			p.IsHost = true
			p.IsReady = true
		} else {
			p.IsReady = mask&(1<<(i-1)) != 0
		}

		ctx.Players = append(ctx.Players, p)
	}

	return ctx
}

func TestCanStart_AllReadyPermutations(t *testing.T) {
	for n := 1; n <= MAX_PLAYERS; n++ {
		full := 1<<(n-1) - 1

		for mask := 0; mask <= full; mask++ {
			ctx := playersWithReady(n, mask)
			want := n >= MIN_PLAYERS && mask == full

			err := canStart(ctx, "p0")
			assert.Equal(t, want, err == nil, "n=%d mask=%b", n, mask)

			if n > 1 {
				assert.ErrorIs(t, canStart(ctx, "p1"), ErrForbidden)
			}
		}
	}
}

func TestNextAliveIndex_SkipsDead(t *testing.T) {
	ctx := playersWithReady(5, 0)
	ctx.Players[2].IsAlive = false

	assert.Equal(t, 3, ctx.NextAliveIndex(1))
	assert.Equal(t, 0, ctx.NextAliveIndex(-1))

	ctx.Players[3].IsAlive = false
	ctx.Players[4].IsAlive = false
	assert.Equal(t, 5, ctx.NextAliveIndex(1))
}

func TestEvaluateWin(t *testing.T) {
	ctx := playersWithReady(5, 0)
	ctx.Game.UndercoverID = "p3"

	// 卧底被淘汰时无论剩余人数多少都由多数方获胜
	ctx.Players[3].IsAlive = false
	assert.Equal(t, OUTCOME_MAJORITY_WINS, evaluateWin(ctx, "p3"))

	ctx.Players[3].IsAlive = true
	ctx.Players[1].IsAlive = false
	assert.Equal(t, OUTCOME_CONTINUE, evaluateWin(ctx, "p1"))

	ctx.Players[2].IsAlive = false
	ctx.Players[4].IsAlive = false
	assert.Equal(t, OUTCOME_UNDERCOVER_WINS, evaluateWin(ctx, "p4"))
}

func TestScenario_AliceBobCarol(t *testing.T) {
	gm, alice := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")

	assert.Equal(t, "1234", gm.RoomCode())

	send(gm, alice, REQ_START_GAME, RoomRequest{RoomCode: "1234"})
	assert.Equal(t, STAGE_WAITING, gm.ctx.GameStage)

	send(gm, bob, REQ_TOGGLE_READY, RoomRequest{RoomCode: "1234"})
	send(gm, alice, REQ_START_GAME, RoomRequest{RoomCode: "1234"})
	assert.Equal(t, STAGE_WAITING, gm.ctx.GameStage)

	send(gm, carol, REQ_TOGGLE_READY, RoomRequest{RoomCode: "1234"})
	send(gm, bob, REQ_START_GAME, RoomRequest{RoomCode: "1234"})
	assert.Equal(t, STAGE_WAITING, gm.ctx.GameStage)

	send(gm, alice, REQ_START_GAME, RoomRequest{RoomCode: "1234"})
	require.Equal(t, STAGE_REVEAL, gm.ctx.GameStage)

	assert.Equal(t, words.Pair{Normal: "蘋果", Undercover: "水梨"}, gm.ctx.Game.WordPair)

	undercoverCount := 0
	for _, c := range []*Client{alice, bob, carol} {
		started := findResp(drain(c), RESP_GAME_STARTED)
		require.Len(t, started, 1)

		resp := started[0].Data.(GameStartedResponse)
		assert.Equal(t, ROLE_LABEL, resp.Role)

		if c.ID == gm.ctx.Game.UndercoverID {
			assert.Equal(t, "水梨", resp.Word)
			undercoverCount++
		} else {
			assert.Equal(t, "蘋果", resp.Word)
		}
	}

	assert.Equal(t, 1, undercoverCount)
}

func TestToggleReady_HostIgnored(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")

	send(gm, host, REQ_TOGGLE_READY, RoomRequest{RoomCode: "1234"})
	assert.True(t, gm.ctx.GetHost().IsReady)

	send(gm, bob, REQ_TOGGLE_READY, RoomRequest{RoomCode: "1234"})
	p, _ := gm.ctx.GetPlayer(bob.ID)
	assert.True(t, p.IsReady)

	send(gm, bob, REQ_TOGGLE_READY, RoomRequest{RoomCode: "1234"})
	assert.False(t, p.IsReady)
}

func TestJoin_LimitsAndNicknames(t *testing.T) {
	gm, host := newTestMachine(t)

	blank := joinPlayer(t, gm, "   ")
	p, _ := gm.ctx.GetPlayer(blank.ID)
	assert.Equal(t, "玩家2", p.Name)

	long := joinPlayer(t, gm, "一二三四五六七八九十十一")
	p, _ = gm.ctx.GetPlayer(long.ID)
	assert.Equal(t, "一二三四五六七八九十", p.Name)

	assert.ErrorIs(t, tryJoin(gm, long, "again"), ErrAlreadyInRoom)

	clients := []*Client{blank, long}
	for len(gm.ctx.Players) < MAX_PLAYERS {
		clients = append(clients, joinPlayer(t, gm, "x"))
	}

	assert.ErrorIs(t, tryJoin(gm, NewClient(8), "late"), ErrRoomFull)
	assert.Len(t, gm.ctx.Players, MAX_PLAYERS)

	send(gm, clients[0], REQ_LEAVE_ROOM, RoomRequest{RoomCode: "1234"})
	assert.Len(t, gm.ctx.Players, MAX_PLAYERS-1)

	// 重复离开是无操作
	send(gm, clients[0], REQ_LEAVE_ROOM, RoomRequest{RoomCode: "1234"})
	assert.Len(t, gm.ctx.Players, MAX_PLAYERS-1)

	clients = append(clients[1:], joinPlayer(t, gm, "y"))

	enterSpeaking(t, gm, host, clients...)
	assert.ErrorIs(t, tryJoin(gm, NewClient(8), "late"), ErrGameInProgress)
}

func TestReveal_CountdownThenSpeaking(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")

	send(gm, bob, REQ_TOGGLE_READY, RoomRequest{RoomCode: "1234"})
	send(gm, carol, REQ_TOGGLE_READY, RoomRequest{RoomCode: "1234"})
	send(gm, host, REQ_START_GAME, RoomRequest{RoomCode: "1234"})
	drain(host)

	assert.True(t, gm.ctx.sched.Active(TASK_REVEAL))

	fire(gm, TASK_REVEAL, 3)
	assert.Equal(t, STAGE_REVEAL, gm.ctx.GameStage)

	timers := findResp(drain(host), RESP_TIMER_UPDATE)
	require.Len(t, timers, 1)
	assert.Equal(t, 3, timers[0].Data)

	// 揭示阶段不接受发言
	send(gm, host, REQ_SKIP_TURN, RoomRequest{RoomCode: "1234"})
	assert.Equal(t, STAGE_REVEAL, gm.ctx.GameStage)

	fire(gm, TASK_REVEAL, 0)
	assert.Equal(t, STAGE_SPEAKING, gm.ctx.GameStage)
	assert.False(t, gm.ctx.sched.Active(TASK_REVEAL))

	resps := drain(host)
	assert.Len(t, findResp(resps, RESP_HIDE_OVERLAY), 1)

	turns := findResp(resps, RESP_PLAYER_TURN)
	require.Len(t, turns, 1)
	assert.Equal(t, PlayerTurnResponse{PlayerID: host.ID, Duration: 30}, turns[0].Data)
}

func TestSpeaking_TurnOrder(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")

	enterSpeaking(t, gm, host, bob, carol)
	assert.Equal(t, host.ID, gm.ctx.CurrentSpeaker().ID)

	send(gm, bob, REQ_SKIP_TURN, RoomRequest{RoomCode: "1234"})
	assert.Equal(t, host.ID, gm.ctx.CurrentSpeaker().ID)

	send(gm, host, REQ_SUBMIT_DESCRIPTION, SubmitDescriptionRequest{RoomCode: "1234", Msg: "紅色的"})
	assert.Equal(t, bob.ID, gm.ctx.CurrentSpeaker().ID)

	fire(gm, TASK_TURN, 5)
	assert.Equal(t, bob.ID, gm.ctx.CurrentSpeaker().ID)

	fire(gm, TASK_TURN, 0)
	assert.Equal(t, carol.ID, gm.ctx.CurrentSpeaker().ID)

	drain(host)
	send(gm, carol, REQ_SKIP_TURN, RoomRequest{RoomCode: "1234"})
	require.Equal(t, STAGE_VOTING, gm.ctx.GameStage)
	assert.False(t, gm.ctx.sched.Active(TASK_TURN))
	assert.True(t, gm.ctx.sched.Active(TASK_VOTE))

	started := findResp(drain(host), RESP_START_VOTING)
	require.Len(t, started, 1)
	assert.Len(t, started[0].Data.(StartVotingResponse).AlivePlayers, 3)
}

func TestVoting_UndercoverEliminatedEndsGame(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")
	clients := []*Client{host, bob, carol}

	enterVoting(t, gm, clients...)

	undercoverID := gm.ctx.Game.UndercoverID
	for _, c := range clients {
		if c.ID == undercoverID {
			other := clients[0]
			if other.ID == undercoverID {
				other = clients[1]
			}
			vote(gm, c, other.ID)
			continue
		}

		vote(gm, c, undercoverID)
	}

	require.Equal(t, STAGE_WAITING, gm.ctx.GameStage)
	assert.Contains(t, lastResult(t, host).Msg, "哥布林的勝利")

	for _, p := range gm.ctx.Players {
		assert.True(t, p.IsAlive)
		assert.Equal(t, p.IsHost, p.IsReady)
	}

	require.True(t, gm.ctx.sched.Active(TASK_LOBBY_RESET))
	drain(bob)
	fire(gm, TASK_LOBBY_RESET, 0)

	resps := drain(bob)
	assert.Len(t, findResp(resps, RESP_GAME_RESET), 1)
	assert.Len(t, findResp(resps, RESP_UPDATE_PLAYER_LIST), 1)
}

func TestVoting_UndercoverWinsWhenTwoLeft(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")
	clients := []*Client{host, bob, carol}

	enterVoting(t, gm, clients...)

	undercoverID := gm.ctx.Game.UndercoverID

	var victim *Client
	for _, c := range clients {
		if c.ID != undercoverID {
			victim = c
			break
		}
	}

	for _, c := range clients {
		if c == victim {
			vote(gm, c, undercoverID)
		} else {
			vote(gm, c, victim.ID)
		}
	}

	require.Equal(t, STAGE_WAITING, gm.ctx.GameStage)
	assert.Contains(t, lastResult(t, host).Msg, "帥潮獲勝")
}

func TestVoting_TieRestartsSpeakingWithSameWords(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")

	enterVoting(t, gm, host, bob, carol)
	pair := gm.ctx.Game.WordPair

	vote(gm, host, bob.ID)
	vote(gm, bob, carol.ID)
	vote(gm, carol, host.ID)

	require.Equal(t, STAGE_CALCULATING, gm.ctx.GameStage)
	assert.Equal(t, "今晚沒抓到帥潮", lastResult(t, host).Msg)
	assert.Equal(t, 3, gm.ctx.CountAlive())

	fire(gm, TASK_RESULT, 0)
	require.Equal(t, STAGE_SPEAKING, gm.ctx.GameStage)
	assert.Equal(t, pair, gm.ctx.Game.WordPair)
	assert.Equal(t, host.ID, gm.ctx.CurrentSpeaker().ID)
	assert.Empty(t, findResp(drain(bob), RESP_UPDATE_WORD))
}

func TestVoting_EliminationContinuesWithNewWords(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")
	dave := joinPlayer(t, gm, "Dave")
	clients := []*Client{host, bob, carol, dave}

	enterVoting(t, gm, clients...)

	undercoverID := gm.ctx.Game.UndercoverID

	var victim *Client
	for _, c := range clients {
		if c.ID != undercoverID {
			victim = c
			break
		}
	}

	for _, c := range clients {
		if c == victim {
			vote(gm, c, undercoverID)
		} else {
			vote(gm, c, victim.ID)
		}
	}

	require.Equal(t, STAGE_CALCULATING, gm.ctx.GameStage)
	assert.Contains(t, lastResult(t, host).Msg, "更換題目繼續")

	for _, c := range clients {
		drain(c)
	}

	fire(gm, TASK_RESULT, 0)
	require.Equal(t, STAGE_SPEAKING, gm.ctx.GameStage)
	assert.Equal(t, words.Pair{Normal: "咖啡", Undercover: "奶茶"}, gm.ctx.Game.WordPair)

	for _, c := range clients {
		updates := findResp(drain(c), RESP_UPDATE_WORD)
		if c == victim {
			assert.Empty(t, updates)
			continue
		}

		require.Len(t, updates, 1)
		want := "咖啡"
		if c.ID == undercoverID {
			want = "奶茶"
		}
		assert.Equal(t, UpdateWordResponse{Word: want}, updates[0].Data)
	}

	speaker := gm.ctx.CurrentSpeaker()
	require.NotNil(t, speaker)
	assert.True(t, speaker.IsAlive)
	assert.NotEqual(t, victim.ID, speaker.ID)
}

func TestVoting_TimeoutResolves(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")

	enterVoting(t, gm, host, bob, carol)

	vote(gm, host, bob.ID)
	require.Equal(t, STAGE_VOTING, gm.ctx.GameStage)

	fire(gm, TASK_VOTE, 0)

	// 三人局淘汰任何人都会结束游戏
	assert.Equal(t, STAGE_WAITING, gm.ctx.GameStage)
}

func TestVoting_RejectsInvalidVotes(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")
	dave := joinPlayer(t, gm, "Dave")

	vote(gm, host, bob.ID)
	assert.Zero(t, gm.ctx.Game.Votes.VoterCount())

	enterVoting(t, gm, host, bob, carol, dave)

	p, _ := gm.ctx.GetPlayer(dave.ID)
	p.IsAlive = false

	vote(gm, dave, bob.ID)
	vote(gm, host, dave.ID)
	vote(gm, host, "nobody")
	assert.Zero(t, gm.ctx.Game.Votes.VoterCount())

	vote(gm, host, bob.ID)
	vote(gm, host, carol.ID)
	assert.Equal(t, 1, gm.ctx.Game.Votes.VoterCount())
	assert.Equal(t, STAGE_VOTING, gm.ctx.GameStage)
}

func TestLeave_CurrentSpeakerAdvances(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")
	dave := joinPlayer(t, gm, "Dave")

	enterSpeaking(t, gm, host, bob, carol, dave)
	gm.ctx.Game.UndercoverID = dave.ID

	send(gm, host, REQ_SKIP_TURN, RoomRequest{RoomCode: "1234"})
	require.Equal(t, bob.ID, gm.ctx.CurrentSpeaker().ID)
	seq := gm.ctx.Game.TurnSeq

	send(gm, bob, REQ_LEAVE_ROOM, RoomRequest{RoomCode: "1234"})

	assert.Len(t, gm.ctx.Players, 3)
	assert.Equal(t, STAGE_SPEAKING, gm.ctx.GameStage)
	assert.Equal(t, carol.ID, gm.ctx.CurrentSpeaker().ID)
	assert.Equal(t, seq+1, gm.ctx.Game.TurnSeq)
}

func TestLeave_EarlierPlayerKeepsSpeaker(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")
	dave := joinPlayer(t, gm, "Dave")

	enterSpeaking(t, gm, host, bob, carol, dave)
	gm.ctx.Game.UndercoverID = dave.ID

	send(gm, host, REQ_SKIP_TURN, RoomRequest{RoomCode: "1234"})
	send(gm, bob, REQ_SKIP_TURN, RoomRequest{RoomCode: "1234"})
	require.Equal(t, carol.ID, gm.ctx.CurrentSpeaker().ID)
	seq := gm.ctx.Game.TurnSeq

	send(gm, bob, REQ_LEAVE_ROOM, RoomRequest{RoomCode: "1234"})

	assert.Equal(t, 1, gm.ctx.Game.CurrentTurnIndex)
	assert.Equal(t, carol.ID, gm.ctx.CurrentSpeaker().ID)
	assert.Equal(t, seq, gm.ctx.Game.TurnSeq)
}

func TestLeave_UndercoverEndsGame(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")
	dave := joinPlayer(t, gm, "Dave")

	enterSpeaking(t, gm, host, bob, carol, dave)
	gm.ctx.Game.UndercoverID = carol.ID

	send(gm, carol, REQ_LEAVE_ROOM, RoomRequest{RoomCode: "1234"})

	assert.Equal(t, STAGE_WAITING, gm.ctx.GameStage)
	assert.False(t, gm.ctx.sched.Active(TASK_TURN))
	assert.True(t, strings.HasPrefix(lastResult(t, host).Msg, "Carol"))
}

func TestLeave_VotingReachesQuorum(t *testing.T) {
	gm, host := newTestMachine(t)
	bob := joinPlayer(t, gm, "Bob")
	carol := joinPlayer(t, gm, "Carol")
	dave := joinPlayer(t, gm, "Dave")

	enterVoting(t, gm, host, bob, carol, dave)
	gm.ctx.Game.UndercoverID = host.ID

	vote(gm, host, bob.ID)
	vote(gm, bob, carol.ID)
	vote(gm, carol, bob.ID)
	require.Equal(t, STAGE_VOTING, gm.ctx.GameStage)

	send(gm, dave, REQ_LEAVE_ROOM, RoomRequest{RoomCode: "1234"})

	// Bob 被淘汰后只剩卧底与一名玩家
	assert.Equal(t, STAGE_WAITING, gm.ctx.GameStage)
	assert.Contains(t, lastResult(t, host).Msg, "淘汰者是：Bob")
}
