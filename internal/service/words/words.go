package words

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"go.uber.org/zap"
)

//go:embed pairs.json
var defaultPairs []byte

// Pair 是一组词语：多数人拿到 Normal，卧底拿到 Undercover
type Pair struct {
	Normal     string `json:"normal"`
	Undercover string `json:"undercover"`
}

// UsedSet 记录一个房间已经用过的词组下标
type UsedSet map[int]struct{}

// Source 为房间提供词组
type Source interface {
	NextUnusedPair(used UsedSet) (Pair, UsedSet)
	Len() int
}

type Bank struct {
	pairs []Pair
}

func NewBank(pairs []Pair) (*Bank, error) {
	if len(pairs) == 0 {
		return nil, errors.New("词库为空")
	}

	for i, p := range pairs {
		normal := strings.TrimSpace(p.Normal)
		undercover := strings.TrimSpace(p.Undercover)

		if normal == "" || undercover == "" {
			return nil, fmt.Errorf("词库第 %d 组包含空词", i)
		}

		if normal == undercover {
			return nil, fmt.Errorf("词库第 %d 组的两个词相同：%s", i, normal)
		}
	}

	return &Bank{pairs: pairs}, nil
}

// LoadBank 读取词库文件，path 为空时使用内置词库
func LoadBank(path string) (*Bank, error) {
	data := defaultPairs

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取词库文件失败: %w", err)
		}

		data = raw
	}

	var pairs []Pair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, fmt.Errorf("解析词库失败: %w", err)
	}

	bank, err := NewBank(pairs)
	if err != nil {
		return nil, err
	}

	zap.L().Info(
		"词库加载完成",
		zap.String("path", path),
		zap.Int("pairs", bank.Len()),
	)

	return bank, nil
}

func MustDefaultBank() *Bank {
	bank, err := LoadBank("")
	if err != nil {
		panic("内置词库无效: " + err.Error())
	}

	return bank
}

func (b *Bank) Len() int {
	return len(b.pairs)
}

// NextUnusedPair 在未使用过的词组中均匀抽取一组，并把下标记入 used。
// 全部用完时先清空 used 再从全部词组中抽取。
func (b *Bank) NextUnusedPair(used UsedSet) (Pair, UsedSet) {
	if used == nil {
		used = make(UsedSet)
	}

	available := make([]int, 0, len(b.pairs))
	for i := range b.pairs {
		if _, ok := used[i]; !ok {
			available = append(available, i)
		}
	}

	var idx int

	if len(available) == 0 {
		clear(used)
		idx = rand.IntN(len(b.pairs))
	} else {
		idx = available[rand.IntN(len(available))]
	}

	used[idx] = struct{}{}

	return b.pairs[idx], used
}
