package game

// VoteTally 记录 voterID -> targetID，同一投票人以最后一票为准
type VoteTally struct {
	votes map[string]string
}

type VoteResult struct {
	// 仅在唯一最高票时非空
	TargetID string
	MaxVotes int
	// 与最高票并列的所有候选人
	Leaders []string
	Counts  map[string]int
}

func NewVoteTally() *VoteTally {
	return &VoteTally{
		votes: make(map[string]string),
	}
}

func (vt *VoteTally) Cast(voterID, targetID string) {
	vt.votes[voterID] = targetID
}

// Retract 删除该玩家投出的票以及投给该玩家的票
func (vt *VoteTally) Retract(playerID string) {
	delete(vt.votes, playerID)

	for voterID, targetID := range vt.votes {
		if targetID == playerID {
			delete(vt.votes, voterID)
		}
	}
}

func (vt *VoteTally) VoteOf(voterID string) (string, bool) {
	targetID, ok := vt.votes[voterID]
	return targetID, ok
}

func (vt *VoteTally) VoterCount() int {
	return len(vt.votes)
}

func (vt *VoteTally) HasQuorum(aliveCount int) bool {
	return aliveCount > 0 && len(vt.votes) >= aliveCount
}

func (vt *VoteTally) Counts() map[string]int {
	counts := make(map[string]int, len(vt.votes))
	for _, targetID := range vt.votes {
		counts[targetID]++
	}

	return counts
}

// Resolve 计票。无人投票或最高票并列时不淘汰任何人
func (vt *VoteTally) Resolve() VoteResult {
	counts := vt.Counts()

	maxVotes := 0
	for _, count := range counts {
		maxVotes = max(maxVotes, count)
	}

	leaders := make([]string, 0, 1)
	if maxVotes > 0 {
		for targetID, count := range counts {
			if count == maxVotes {
				leaders = append(leaders, targetID)
			}
		}
	}

	result := VoteResult{
		MaxVotes: maxVotes,
		Leaders:  leaders,
		Counts:   counts,
	}

	if len(leaders) == 1 {
		result.TargetID = leaders[0]
	}

	return result
}

func (vr VoteResult) Eliminates() bool {
	return vr.TargetID != ""
}
