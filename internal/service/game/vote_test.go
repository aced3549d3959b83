package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVoteTally_UniqueMaxEliminates(t *testing.T) {
	vt := NewVoteTally()
	vt.Cast("A", "X")
	vt.Cast("B", "X")
	vt.Cast("C", "Y")

	result := vt.Resolve()

	assert.True(t, result.Eliminates())
	assert.Equal(t, "X", result.TargetID)
	assert.Equal(t, 2, result.MaxVotes)
	assert.Equal(t, map[string]int{"X": 2, "Y": 1}, result.Counts)
}

func TestVoteTally_TieEliminatesNoOne(t *testing.T) {
	vt := NewVoteTally()
	vt.Cast("A", "X")
	vt.Cast("B", "Y")

	result := vt.Resolve()

	assert.False(t, result.Eliminates())
	assert.Equal(t, 1, result.MaxVotes)
	assert.ElementsMatch(t, []string{"X", "Y"}, result.Leaders)
}

func TestVoteTally_NoVotes(t *testing.T) {
	result := NewVoteTally().Resolve()

	assert.False(t, result.Eliminates())
	assert.Zero(t, result.MaxVotes)
	assert.Empty(t, result.Leaders)
}

func TestVoteTally_LastVoteCounts(t *testing.T) {
	vt := NewVoteTally()
	vt.Cast("A", "X")
	vt.Cast("A", "Y")

	assert.Equal(t, 1, vt.VoterCount())

	target, ok := vt.VoteOf("A")
	assert.True(t, ok)
	assert.Equal(t, "Y", target)
	assert.Equal(t, "Y", vt.Resolve().TargetID)
}

func TestVoteTally_Retract(t *testing.T) {
	vt := NewVoteTally()
	vt.Cast("A", "X")
	vt.Cast("B", "A")
	vt.Cast("C", "A")
	vt.Cast("X", "C")

	vt.Retract("A")

	assert.Equal(t, 1, vt.VoterCount())
	_, ok := vt.VoteOf("A")
	assert.False(t, ok)
	assert.Equal(t, map[string]int{"C": 1}, vt.Counts())
}

func TestVoteTally_HasQuorum(t *testing.T) {
	vt := NewVoteTally()

	assert.False(t, vt.HasQuorum(0))
	assert.False(t, vt.HasQuorum(2))

	vt.Cast("A", "B")
	assert.False(t, vt.HasQuorum(2))

	vt.Cast("B", "A")
	assert.True(t, vt.HasQuorum(2))
}
