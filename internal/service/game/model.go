package game

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BOB-921223/whoisyourdaddy/internal/service/words"
	"go.uber.org/zap"
)

const (
	MIN_PLAYERS  = 3
	MAX_PLAYERS  = 8
	MAX_NAME_LEN = 10
)

// 所有人收到的身份标签相同，身份只能靠词语推断
const ROLE_LABEL = "身分保密"

const (
	WINNER_MAJORITY   = "majority"
	WINNER_UNDERCOVER = "undercover"
)

// Client 是一条连接在服务端的身份，核心逻辑只需要比较 ID 和投递消息
type Client struct {
	ID     string
	RespCh chan ResponseWrapper
}

func NewClient(bufSize int) *Client {
	return &Client{
		ID:     GenID(),
		RespCh: make(chan ResponseWrapper, bufSize),
	}
}

// Send 非阻塞投递，通道满时丢弃
func (c *Client) Send(resp ResponseWrapper) bool {
	select {
	case c.RespCh <- resp:
		return true
	default:
		zap.L().Warn(
			"发送响应失败：客户端响应通道已满",
			zap.String("client_id", c.ID),
			zap.String("response_type", resp.RespType),
		)
		return false
	}
}

type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsHost  bool   `json:"is_host"`
	IsReady bool   `json:"is_ready"`
	IsAlive bool   `json:"is_alive"`

	client *Client
}

// GameData 只在非 waiting 阶段有意义
type GameData struct {
	WordPair         words.Pair
	UndercoverID     string
	CurrentTurnIndex int
	// 每次轮到新玩家发言时递增，发言计时器以此识别自己是否过期
	TurnSeq         int
	Votes           *VoteTally
	UsedWordIndices words.UsedSet
}

func newGameData() GameData {
	return GameData{
		CurrentTurnIndex: -1,
		Votes:            NewVoteTally(),
		UsedWordIndices:  make(words.UsedSet),
	}
}

type Timings struct {
	RevealSeconds      int
	TurnSeconds        int
	VoteSeconds        int
	ResultSeconds      int
	FinalResultSeconds int
	TickInterval       time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		RevealSeconds:      10,
		TurnSeconds:        30,
		VoteSeconds:        20,
		ResultSeconds:      8,
		FinalResultSeconds: 10,
		TickInterval:       time.Second,
	}
}

// RoomSnapshot 是房间协程对外提供的只读快照
type RoomSnapshot struct {
	RoomCode  string
	Stage     string
	HostName  string
	Players   []Player
	CreatedAt time.Time
}

// SanitizeNickname 去掉首尾空白并截断到 MAX_NAME_LEN 个字符，为空时使用 fallback
func SanitizeNickname(nickname, fallback string) string {
	name := strings.TrimSpace(nickname)

	if utf8.RuneCountInString(name) > MAX_NAME_LEN {
		name = strings.TrimSpace(string([]rune(name)[:MAX_NAME_LEN]))
	}

	if name == "" {
		return fallback
	}

	return name
}

func DefaultNickname(seat int) string {
	return fmt.Sprintf("玩家%d", seat)
}
