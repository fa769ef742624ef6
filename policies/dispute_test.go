package policies

import (
	"testing"
	"time"

	"github.com/Dosada05/competition-engine/models"
	"github.com/stretchr/testify/assert"
)

func TestRegisterDispute_Threshold(t *testing.T) {
	p := NewDisputePolicy(3)

	tests := []struct {
		current int
		want    DisputeOutcome
	}{
		{0, DisputeOutcome{Strikes: 1, BannedNextMatch: false}},
		{1, DisputeOutcome{Strikes: 2, BannedNextMatch: false}},
		{2, DisputeOutcome{Strikes: 3, BannedNextMatch: true}},
		{3, DisputeOutcome{Strikes: 4, BannedNextMatch: true}},
		{-5, DisputeOutcome{Strikes: 1, BannedNextMatch: false}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.RegisterDispute(tt.current), "current=%d", tt.current)
	}
}

func TestNewDisputePolicy_DefaultsThreshold(t *testing.T) {
	assert.Equal(t, DefaultStrikeBanThreshold, NewDisputePolicy(0).BanThreshold)
	assert.Equal(t, 5, NewDisputePolicy(5).BanThreshold)
	assert.False(t, NewDisputePolicy(5).RegisterDispute(3).BannedNextMatch)
}

func TestIsPlayerBanned_OnlyExactUnusedMatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ban := NewBan("t1", "alice", "m2", "", now)
	bans := []*models.Ban{ban}

	assert.True(t, IsPlayerBanned(bans, "alice", "m2"))
	assert.False(t, IsPlayerBanned(bans, "alice", "m3"))
	assert.False(t, IsPlayerBanned(bans, "bob", "m2"))
	assert.Equal(t, DefaultBanReason, ban.Reason)

	assert.True(t, ConsumeBan(ban, now))
	assert.False(t, IsPlayerBanned(bans, "alice", "m2"))
	if assert.NotNil(t, ban.UsedAt) {
		assert.Equal(t, now, *ban.UsedAt)
	}

	// использованный бан не срабатывает повторно
	assert.False(t, ConsumeBan(ban, now.Add(time.Hour)))
	assert.Equal(t, now, *ban.UsedAt)
}

func TestAwaitingMatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ban := NewBan("t1", "alice", "", "", now)

	assert.True(t, AwaitingMatch(ban))
	assert.False(t, IsPlayerBanned([]*models.Ban{ban}, "alice", ""), "a ban without a match blocks nothing")

	ban.MatchID = "m4"
	assert.False(t, AwaitingMatch(ban))
	assert.True(t, IsPlayerBanned([]*models.Ban{ban}, "alice", "m4"))
	assert.False(t, AwaitingMatch(nil))
}
