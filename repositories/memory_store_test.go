package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dosada05/competition-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTournament(t *testing.T, store *MemoryStore, maxPlayers int) *models.Tournament {
	t.Helper()
	tour := &models.Tournament{
		Name:       "Spring Cup",
		Slug:       "spring-cup",
		Format:     models.FormatLeague,
		Status:     models.StatusRegistrationOpen,
		MaxPlayers: maxPlayers,
		OwnerID:    "owner",
	}
	require.NoError(t, store.Repos().Tournaments.Create(context.Background(), tour))
	require.NotEmpty(t, tour.ID)
	return tour
}

func TestMemoryStore_RunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tour := seedTournament(t, store, 4)

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(ctx context.Context, tx Repositories) error {
		if err := tx.Tournaments.UpdateStatus(ctx, tour.ID, models.StatusRegistrationOpen, models.StatusLive); err != nil {
			return err
		}
		_, err := tx.Tournaments.IncrementPlayerCount(ctx, tour.ID)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Repos().Tournaments.GetByID(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistrationOpen, got.Status)
	assert.Equal(t, 0, got.PlayerCount)
}

func TestMemoryStore_RunInTxCommits(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tour := seedTournament(t, store, 4)

	err := store.RunInTx(ctx, func(ctx context.Context, tx Repositories) error {
		return tx.Tournaments.UpdateStatus(ctx, tour.ID, models.StatusRegistrationOpen, models.StatusLive)
	})
	require.NoError(t, err)

	got, err := store.Repos().Tournaments.GetByID(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, got.Status)
}

func TestMemoryTournaments_PlayerCountNeverExceedsMax(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tour := seedTournament(t, store, 2)
	repo := store.Repos().Tournaments

	n, err := repo.IncrementPlayerCount(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = repo.IncrementPlayerCount(ctx, tour.ID)
	require.NoError(t, err)
	_, err = repo.IncrementPlayerCount(ctx, tour.ID)
	assert.ErrorIs(t, err, ErrTournamentFull)

	_, err = repo.IncrementPlayerCount(ctx, "missing")
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestMemoryTournaments_StatusAndAdmins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tour := seedTournament(t, store, 2)
	repo := store.Repos().Tournaments

	assert.ErrorIs(t, repo.Complete(ctx, tour.ID, "u1"), ErrTournamentStatusConflict)
	require.NoError(t, repo.UpdateStatus(ctx, tour.ID, models.StatusRegistrationOpen, models.StatusLive))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, tour.ID, models.StatusRegistrationOpen, models.StatusLive), ErrTournamentStatusConflict)
	require.NoError(t, repo.Complete(ctx, tour.ID, "u1"))

	require.NoError(t, repo.AddAdmin(ctx, tour.ID, "mod"))
	require.NoError(t, repo.AddAdmin(ctx, tour.ID, "mod"))
	got, err := repo.GetByID(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"mod"}, got.AdminIDs)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, "u1", *got.WinnerID)

	require.NoError(t, repo.RemoveAdmin(ctx, tour.ID, "mod"))
	got, _ = repo.GetByID(ctx, tour.ID)
	assert.Empty(t, got.AdminIDs)

	assert.ErrorIs(t, repo.Create(ctx, &models.Tournament{Slug: "spring-cup"}), ErrTournamentSlugConflict)
}

func TestMemoryParticipants_RegistrationOrderAndCounters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tour := seedTournament(t, store, 8)
	repo := store.Repos().Participants

	for _, u := range []string{"zed", "amy", "kai"} {
		require.NoError(t, repo.Create(ctx, &models.Participant{TournamentID: tour.ID, UserID: u, DisplayName: u, Status: models.ParticipantPending}))
	}
	err := repo.Create(ctx, &models.Participant{TournamentID: tour.ID, UserID: "amy"})
	assert.ErrorIs(t, err, ErrParticipantConflict)

	list, err := repo.ListByTournament(ctx, tour.ID, nil)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "zed", list[0].UserID)
	assert.Equal(t, "amy", list[1].UserID)
	assert.Equal(t, "kai", list[2].UserID)

	amy := list[1]
	require.NoError(t, repo.UpdateStatus(ctx, amy.ID, models.ParticipantPending, models.ParticipantApproved))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, amy.ID, models.ParticipantPending, models.ParticipantApproved), ErrParticipantStatusConflict)

	approved := models.ParticipantApproved
	list, err = repo.ListByTournament(ctx, tour.ID, &approved)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	for want := 1; want <= 3; want++ {
		got, err := repo.IncrementStrikes(ctx, amy.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	require.NoError(t, repo.SetBanned(ctx, amy.ID, true))
	require.NoError(t, repo.IncrementAccuracyTotal(ctx, amy.ID))
	require.NoError(t, repo.ClearStrikes(ctx, amy.ID))

	got, err := repo.GetByTournamentAndUser(ctx, tour.ID, "amy")
	require.NoError(t, err)
	assert.Zero(t, got.Strikes)
	assert.False(t, got.BannedNextMatch)
	assert.Equal(t, 1, got.AccuracyTotal)
}

func TestMemoryMatches_IdempotentCreateAndCAS(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tour := seedTournament(t, store, 8)
	repo := store.Repos().Matches

	m := &models.Match{TournamentID: tour.ID, Stage: models.StageLeague, PlayerAID: "a", PlayerBID: "b",
		RoundName: "Matchday 1", Status: models.MatchPending, IdempotencyKey: tour.ID + ":league:0:0"}
	created, err := repo.Create(ctx, m)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, m.Version)

	created, err = repo.Create(ctx, &models.Match{TournamentID: tour.ID, IdempotencyKey: m.IdempotencyKey})
	require.NoError(t, err)
	assert.False(t, created)

	first, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, m.ID)
	require.NoError(t, err)

	first.ReadyA = true
	require.NoError(t, repo.Update(ctx, first, 1))
	assert.Equal(t, 2, first.Version)

	second.ReadyB = true
	assert.ErrorIs(t, repo.Update(ctx, second, second.Version), ErrMatchVersionConflict)

	stored, err := repo.GetByKey(ctx, m.IdempotencyKey)
	require.NoError(t, err)
	assert.True(t, stored.ReadyA)
	assert.False(t, stored.ReadyB)

	assert.ErrorIs(t, repo.Update(ctx, &models.Match{ID: "missing"}, 1), ErrMatchNotFound)
}

func TestMemoryMatches_ListDue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tour := seedTournament(t, store, 8)
	repo := store.Repos().Matches
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	mk := func(key string, deadline *time.Time, status models.MatchStatus, b string) {
		_, err := repo.Create(ctx, &models.Match{TournamentID: tour.ID, PlayerAID: "a", PlayerBID: b,
			Status: status, Deadline: deadline, IdempotencyKey: key})
		require.NoError(t, err)
	}
	mk("due", &past, models.MatchPending, "b")
	mk("due-submitted", &past, models.MatchPendingConfirmation, "b")
	mk("future", &future, models.MatchPending, "b")
	mk("no-deadline", nil, models.MatchPending, "b")
	mk("disputed", &past, models.MatchDisputed, "b")
	mk("empty-slot", &past, models.MatchPending, "")
	_, err := repo.Create(ctx, &models.Match{TournamentID: tour.ID, PlayerAID: "a", PlayerBID: "b",
		Status: models.MatchPending, Deadline: &past, AutoReason: models.AutoAwaitingAdmin, IdempotencyKey: "awaiting-admin"})
	require.NoError(t, err)

	due, err := repo.ListDue(ctx, now, 0)
	require.NoError(t, err)
	keys := []string{}
	for _, m := range due {
		keys = append(keys, m.IdempotencyKey)
	}
	assert.ElementsMatch(t, []string{"due", "due-submitted"}, keys)
}

func TestMemoryBansAndPayouts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tour := seedTournament(t, store, 8)
	repos := store.Repos()
	now := time.Now()

	ban := &models.Ban{TournamentID: tour.ID, PlayerID: "a", MatchID: "m1", Reason: "strikes", CreatedAt: now}
	require.NoError(t, repos.Bans.Create(ctx, ban))
	assert.ErrorIs(t, repos.Bans.Create(ctx, &models.Ban{PlayerID: "a", MatchID: "m1"}), ErrBanConflict)

	require.NoError(t, repos.Bans.MarkUsed(ctx, ban.ID, now))
	assert.ErrorIs(t, repos.Bans.MarkUsed(ctx, ban.ID, now), ErrBanNotFound)

	bans, err := repos.Bans.ListByMatch(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, bans, 1)
	assert.True(t, bans[0].Used)
	require.NotNil(t, bans[0].UsedAt)

	// бан без матча ждёт, пока матч появится
	pending := &models.Ban{TournamentID: tour.ID, PlayerID: "a", Reason: "strikes", CreatedAt: now}
	require.NoError(t, repos.Bans.Create(ctx, pending))
	assert.ErrorIs(t, repos.Bans.AssignMatch(ctx, pending.ID, "m1"), ErrBanConflict)
	require.NoError(t, repos.Bans.AssignMatch(ctx, pending.ID, "m2"))
	assert.ErrorIs(t, repos.Bans.AssignMatch(ctx, pending.ID, "m3"), ErrBanNotFound)

	revoked, err := repos.Bans.RevokeUnused(ctx, tour.ID, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, revoked)
	left, err := repos.Bans.ListByPlayer(ctx, tour.ID, "a")
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, ban.ID, left[0].ID, "used bans stay as history")

	require.NoError(t, repos.Payouts.Create(ctx, &models.Payout{TournamentID: tour.ID, UserID: "a", Amount: 500, Status: models.PayoutPending}))
	assert.ErrorIs(t, repos.Payouts.Create(ctx, &models.Payout{TournamentID: tour.ID, UserID: "b"}), ErrPayoutConflict)
	payouts, err := repos.Payouts.ListByTournament(ctx, tour.ID)
	require.NoError(t, err)
	assert.Len(t, payouts, 1)
}
