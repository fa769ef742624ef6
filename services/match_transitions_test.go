package services

import (
	"testing"
	"time"

	"github.com/Dosada05/competition-engine/models"
	"github.com/Dosada05/competition-engine/policies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transitionNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func pendingMatch() *models.Match {
	return &models.Match{
		ID: "m1", TournamentID: "t1", Stage: models.StageLeague,
		PlayerAID: "alice", PlayerBID: "bob",
		Status: models.MatchPending, Version: 1,
	}
}

func TestApplyToggleReady(t *testing.T) {
	m := pendingMatch()
	require.NoError(t, applyToggleReady(m, "alice"))
	assert.True(t, m.ReadyA)
	assert.False(t, m.ReadyB)
	require.NoError(t, applyToggleReady(m, "alice"))
	assert.False(t, m.ReadyA)

	before := *m
	assert.ErrorIs(t, applyToggleReady(m, "mallory"), ErrUnauthorized)
	assert.Equal(t, before, *m)

	m.Status = models.MatchPendingConfirmation
	assert.ErrorIs(t, applyToggleReady(m, "bob"), ErrPreconditionFailed)

	empty := pendingMatch()
	empty.Stage = models.StageKnockout
	empty.PlayerBID = ""
	assert.ErrorIs(t, applyToggleReady(empty, "alice"), ErrOpponentSlotEmpty)
}

func TestApplySubmitScore(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(m *models.Match)
		by      string
		score   models.Score
		wantErr error
	}{
		{"not ready", func(m *models.Match) {}, "alice", models.Score{A: 1}, ErrPlayersNotReady},
		{"only one ready", func(m *models.Match) { m.ReadyA = true }, "alice", models.Score{A: 1}, ErrPlayersNotReady},
		{"negative", func(m *models.Match) { m.ReadyA, m.ReadyB = true, true }, "alice", models.Score{A: -1}, ErrInvalidInput},
		{"outsider", func(m *models.Match) { m.ReadyA, m.ReadyB = true, true }, "mallory", models.Score{A: 1}, ErrUnauthorized},
		{"confirmed", func(m *models.Match) { m.Status = models.MatchConfirmed }, "alice", models.Score{A: 1}, ErrPreconditionFailed},
		{"knockout draw", func(m *models.Match) { m.Stage = models.StageKnockout; m.ReadyA, m.ReadyB = true, true }, "alice", models.Score{A: 2, B: 2}, ErrKnockoutDraw},
		{"league draw ok", func(m *models.Match) { m.ReadyA, m.ReadyB = true, true }, "bob", models.Score{A: 2, B: 2}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := pendingMatch()
			tt.prepare(m)
			before := *m
			err := applySubmitScore(m, tt.by, tt.score, transitionNow)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, *m, "rejected transition must not change the match")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.MatchPendingConfirmation, m.Status)
			assert.Equal(t, tt.by, m.SubmittedBy)
			assert.Equal(t, tt.score, m.Score)
			require.NotNil(t, m.SubmittedAt)
		})
	}
}

func submitted() *models.Match {
	m := pendingMatch()
	m.ReadyA, m.ReadyB = true, true
	m.Status = models.MatchPendingConfirmation
	m.SubmittedBy = "alice"
	m.Score = models.Score{A: 2, B: 1}
	return m
}

func TestApplyConfirmAndDispute(t *testing.T) {
	m := submitted()
	assert.ErrorIs(t, applyConfirmScore(m, "alice", transitionNow), ErrSubmitterCannotRespond)
	assert.ErrorIs(t, applyDisputeScore(m, "alice", transitionNow), ErrUnauthorized)
	assert.ErrorIs(t, applyConfirmScore(m, "mallory", transitionNow), ErrNotMatchParticipant)

	require.NoError(t, applyConfirmScore(m, "bob", transitionNow))
	assert.Equal(t, models.MatchConfirmed, m.Status)
	assert.Equal(t, "bob", m.ConfirmedBy)
	assert.ErrorIs(t, applyConfirmScore(m, "bob", transitionNow), ErrPreconditionFailed)

	d := submitted()
	require.NoError(t, applyDisputeScore(d, "bob", transitionNow))
	assert.Equal(t, models.MatchDisputed, d.Status)
	assert.Equal(t, "bob", d.DisputedBy)
	assert.ErrorIs(t, applyDisputeScore(d, "bob", transitionNow), ErrPreconditionFailed)
}

func TestApplyAdminTransitions(t *testing.T) {
	m := submitted()
	assert.ErrorIs(t, applyAdminForceConfirm(m, transitionNow), ErrMatchNotDisputed)

	require.NoError(t, applyDisputeScore(m, "bob", transitionNow))
	require.NoError(t, applyAdminForceConfirm(m, transitionNow))
	assert.Equal(t, models.ConfirmedByAdmin, m.ConfirmedBy)
	assert.Equal(t, models.Score{A: 2, B: 1}, m.Score)

	o := pendingMatch()
	require.NoError(t, applyAdminOverrideScore(o, models.Score{A: 0, B: 4}, transitionNow))
	assert.Equal(t, models.MatchConfirmed, o.Status)
	assert.Equal(t, models.ConfirmedByOverride, o.ConfirmedBy)
	assert.ErrorIs(t, applyAdminOverrideScore(o, models.Score{A: 1}, transitionNow), ErrMatchAlreadyConfirmed)

	ko := pendingMatch()
	ko.Stage = models.StageKnockout
	assert.ErrorIs(t, applyAdminOverrideScore(ko, models.Score{A: 1, B: 1}, transitionNow), ErrInvalidInput)
}

func TestApplyAutoResolution(t *testing.T) {
	m := pendingMatch()
	require.NoError(t, applyAutoResolution(m, policies.Resolution{Score: models.Score{A: 3}, Reason: policies.ReasonOpponentAbsent}, transitionNow))
	assert.True(t, m.AutoResolved)
	assert.Equal(t, "opponent_absent", m.AutoReason)
	assert.Equal(t, models.ConfirmedByAuto, m.ConfirmedBy)

	ko := pendingMatch()
	ko.Stage = models.StageKnockout
	assert.ErrorIs(t, applyAutoResolution(ko, policies.Resolution{Reason: policies.ReasonBothAbsent}, transitionNow), ErrKnockoutDraw)
	assert.False(t, ko.AutoResolved)
}
