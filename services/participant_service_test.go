package services

import (
	"context"
	"testing"

	"github.com/Dosada05/competition-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestJoin(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	tour := e.tournament(t, models.FormatLeague)

	p, err := e.participants.RequestJoin(ctx, tour.ID, "alice", "  Alice ")
	require.NoError(t, err)
	assert.Equal(t, "Alice", p.DisplayName)
	assert.Equal(t, models.ParticipantPending, p.Status)
	assert.Zero(t, e.getTournament(t, tour.ID).PlayerCount)

	_, err = e.participants.RequestJoin(ctx, tour.ID, "alice", "Alice again")
	assert.ErrorIs(t, err, ErrRegistrationConflict)

	_, err = e.participants.RequestJoin(ctx, tour.ID, "bob", " ")
	assert.ErrorIs(t, err, ErrDisplayNameRequired)

	_, err = e.participants.RequestJoin(ctx, "missing", "bob", "Bob")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestApproveParticipant_RespectsCapacity(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	tour, err := e.tournaments.CreateTournament(ctx, "owner", CreateTournamentInput{
		Name:       "Duel",
		Format:     models.FormatKnockout,
		MaxPlayers: 2,
	})
	require.NoError(t, err)

	pending := make([]*models.Participant, 0, 3)
	for _, user := range []string{"a", "b", "c"} {
		p, err := e.participants.RequestJoin(ctx, tour.ID, user, user)
		require.NoError(t, err)
		pending = append(pending, p)
	}

	for _, p := range pending[:2] {
		approved, err := e.participants.ApproveParticipant(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ParticipantApproved, approved.Status)
	}
	_, err = e.participants.ApproveParticipant(ctx, pending[0].ID)
	assert.ErrorIs(t, err, ErrParticipantNotPending)

	_, err = e.participants.ApproveParticipant(ctx, pending[2].ID)
	assert.ErrorIs(t, err, ErrTournamentFull)

	late, err := e.participants.GetParticipant(ctx, pending[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.ParticipantPending, late.Status)
	assert.Equal(t, 2, e.getTournament(t, tour.ID).PlayerCount)

	_, err = e.participants.RequestJoin(ctx, tour.ID, "d", "d")
	assert.ErrorIs(t, err, ErrTournamentFull)

	approved := models.ParticipantApproved
	list, err := e.participants.ListParticipants(ctx, tour.ID, &approved)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].UserID)
	assert.Equal(t, "b", list[1].UserID)
}

func TestRegistrationClosesWhenLive(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	tour := e.tournament(t, models.FormatLeague, "p1", "p2")
	late, err := e.participants.RequestJoin(ctx, tour.ID, "late", "Late")
	require.NoError(t, err)

	_, err = e.fixtures.GenerateFixtures(ctx, tour.ID)
	require.NoError(t, err)

	_, err = e.participants.RequestJoin(ctx, tour.ID, "p3", "p3")
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)
	_, err = e.participants.ApproveParticipant(ctx, late.ID)
	assert.ErrorIs(t, err, ErrRegistrationNotOpen)
}

func TestAssignGroup_RequiresGroupFormat(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	league := e.tournament(t, models.FormatLeague, "p1")

	_, err := e.participants.AssignGroup(ctx, e.participant(t, league.ID, "p1").ID, "A")
	assert.ErrorIs(t, err, ErrTournamentFormatMismatch)

	grouped := e.tournament(t, models.FormatGroupKnockout, "p1")
	_, err = e.participants.AssignGroup(ctx, e.participant(t, grouped.ID, "p1").ID, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = e.participants.AssignGroup(ctx, "missing", "A")
	assert.ErrorIs(t, err, ErrParticipantNotFound)
}
