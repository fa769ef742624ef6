package repositories

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/competition-engine/models"
	"github.com/google/uuid"
)

// MemoryStore - нестойкое хранилище для тестов и локального запуска без DATABASE_URL.
// Транзакция работает над копией состояния и подменяет его целиком при успехе.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState(), now: increasingClock()}
}

// increasingClock гарантирует строго возрастающие created_at, от них зависит порядок регистрации.
func increasingClock() func() time.Time {
	var mu sync.Mutex
	var last time.Time
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := time.Now()
		if !t.After(last) {
			t = last.Add(time.Microsecond)
		}
		last = t
		return t
	}
}

type memState struct {
	tournaments  map[string]*models.Tournament
	participants map[string]*models.Participant
	matches      map[string]*models.Match
	bans         map[string]*models.Ban
	payouts      map[string]*models.Payout
}

func newMemState() *memState {
	return &memState{
		tournaments:  make(map[string]*models.Tournament),
		participants: make(map[string]*models.Participant),
		matches:      make(map[string]*models.Match),
		bans:         make(map[string]*models.Ban),
		payouts:      make(map[string]*models.Payout),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for id, t := range s.tournaments {
		c.tournaments[id] = cloneTournament(t)
	}
	for id, p := range s.participants {
		c.participants[id] = cloneParticipant(p)
	}
	for id, m := range s.matches {
		c.matches[id] = m.Clone()
	}
	for id, b := range s.bans {
		c.bans[id] = cloneBan(b)
	}
	for id, p := range s.payouts {
		cp := *p
		c.payouts[id] = &cp
	}
	return c
}

// memView даёт репозиториям доступ к состоянию: вне транзакции под мьютексом стора,
// внутри транзакции - к её копии без блокировки (мьютекс уже удерживается RunInTx).
type memView struct {
	lock  sync.Locker
	state func() *memState
	now   func() time.Time
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

func (v memView) with(fn func(s *memState) error) error {
	v.lock.Lock()
	defer v.lock.Unlock()
	return fn(v.state())
}

func newMemoryRepositories(v memView) Repositories {
	return Repositories{
		Tournaments:  &memoryTournamentRepository{v},
		Participants: &memoryParticipantRepository{v},
		Matches:      &memoryMatchRepository{v},
		Bans:         &memoryBanRepository{v},
		Payouts:      &memoryPayoutRepository{v},
	}
}

func (s *MemoryStore) Repos() Repositories {
	return newMemoryRepositories(memView{lock: &s.mu, state: func() *memState { return s.state }, now: s.now})
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txState := s.state.clone()
	if err := fn(ctx, newMemoryRepositories(memView{lock: noopLocker{}, state: func() *memState { return txState }, now: s.now})); err != nil {
		return err
	}
	s.state = txState
	return nil
}

func cloneTournament(t *models.Tournament) *models.Tournament {
	c := *t
	c.AdminIDs = slices.Clone(t.AdminIDs)
	if t.WinnerID != nil {
		w := *t.WinnerID
		c.WinnerID = &w
	}
	return &c
}

func cloneParticipant(p *models.Participant) *models.Participant {
	c := *p
	if p.GroupKey != nil {
		g := *p.GroupKey
		c.GroupKey = &g
	}
	return &c
}

func cloneBan(b *models.Ban) *models.Ban {
	c := *b
	if b.UsedAt != nil {
		u := *b.UsedAt
		c.UsedAt = &u
	}
	return &c
}

type memoryTournamentRepository struct{ v memView }

func (r *memoryTournamentRepository) Create(_ context.Context, t *models.Tournament) error {
	return r.v.with(func(s *memState) error {
		for _, existing := range s.tournaments {
			if t.Slug != "" && existing.Slug == t.Slug {
				return ErrTournamentSlugConflict
			}
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.AdminIDs == nil {
			t.AdminIDs = []string{}
		}
		t.CreatedAt = r.v.now()
		s.tournaments[t.ID] = cloneTournament(t)
		return nil
	})
}

func (r *memoryTournamentRepository) GetByID(_ context.Context, id string) (*models.Tournament, error) {
	var out *models.Tournament
	err := r.v.with(func(s *memState) error {
		t, ok := s.tournaments[id]
		if !ok {
			return ErrTournamentNotFound
		}
		out = cloneTournament(t)
		return nil
	})
	return out, err
}

func (r *memoryTournamentRepository) List(_ context.Context, filter ListTournamentsFilter) ([]*models.Tournament, error) {
	out := make([]*models.Tournament, 0)
	_ = r.v.with(func(s *memState) error {
		for _, t := range s.tournaments {
			if filter.Status != nil && t.Status != *filter.Status {
				continue
			}
			if filter.OwnerID != nil && t.OwnerID != *filter.OwnerID {
				continue
			}
			out = append(out, cloneTournament(t))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*models.Tournament{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memoryTournamentRepository) update(id string, fn func(t *models.Tournament) error) error {
	return r.v.with(func(s *memState) error {
		t, ok := s.tournaments[id]
		if !ok {
			return ErrTournamentNotFound
		}
		return fn(t)
	})
}

func (r *memoryTournamentRepository) UpdateStatus(_ context.Context, id string, from, to models.TournamentStatus) error {
	return r.update(id, func(t *models.Tournament) error {
		if t.Status != from {
			return ErrTournamentStatusConflict
		}
		t.Status = to
		return nil
	})
}

func (r *memoryTournamentRepository) Complete(_ context.Context, id, winnerID string) error {
	return r.update(id, func(t *models.Tournament) error {
		if t.Status != models.StatusLive {
			return ErrTournamentStatusConflict
		}
		t.Status = models.StatusCompleted
		w := winnerID
		t.WinnerID = &w
		return nil
	})
}

func (r *memoryTournamentRepository) IncrementPlayerCount(_ context.Context, id string) (int, error) {
	var count int
	err := r.update(id, func(t *models.Tournament) error {
		if t.PlayerCount >= t.MaxPlayers {
			return ErrTournamentFull
		}
		t.PlayerCount++
		count = t.PlayerCount
		return nil
	})
	return count, err
}

func (r *memoryTournamentRepository) AddAdmin(_ context.Context, id, userID string) error {
	return r.update(id, func(t *models.Tournament) error {
		if !slices.Contains(t.AdminIDs, userID) {
			t.AdminIDs = append(t.AdminIDs, userID)
		}
		return nil
	})
}

func (r *memoryTournamentRepository) RemoveAdmin(_ context.Context, id, userID string) error {
	return r.update(id, func(t *models.Tournament) error {
		t.AdminIDs = slices.DeleteFunc(t.AdminIDs, func(a string) bool { return a == userID })
		return nil
	})
}

type memoryParticipantRepository struct{ v memView }

func (r *memoryParticipantRepository) Create(_ context.Context, p *models.Participant) error {
	return r.v.with(func(s *memState) error {
		if _, ok := s.tournaments[p.TournamentID]; !ok {
			return ErrParticipantTournament
		}
		for _, existing := range s.participants {
			if existing.TournamentID == p.TournamentID && existing.UserID == p.UserID {
				return ErrParticipantConflict
			}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.CreatedAt = r.v.now()
		s.participants[p.ID] = cloneParticipant(p)
		return nil
	})
}

func (r *memoryParticipantRepository) GetByID(_ context.Context, id string) (*models.Participant, error) {
	var out *models.Participant
	err := r.v.with(func(s *memState) error {
		p, ok := s.participants[id]
		if !ok {
			return ErrParticipantNotFound
		}
		out = cloneParticipant(p)
		return nil
	})
	return out, err
}

func (r *memoryParticipantRepository) GetByTournamentAndUser(_ context.Context, tournamentID, userID string) (*models.Participant, error) {
	var out *models.Participant
	err := r.v.with(func(s *memState) error {
		for _, p := range s.participants {
			if p.TournamentID == tournamentID && p.UserID == userID {
				out = cloneParticipant(p)
				return nil
			}
		}
		return ErrParticipantNotFound
	})
	return out, err
}

func (r *memoryParticipantRepository) ListByTournament(_ context.Context, tournamentID string, status *models.ParticipantStatus) ([]*models.Participant, error) {
	out := make([]*models.Participant, 0)
	_ = r.v.with(func(s *memState) error {
		for _, p := range s.participants {
			if p.TournamentID != tournamentID {
				continue
			}
			if status != nil && p.Status != *status {
				continue
			}
			out = append(out, cloneParticipant(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryParticipantRepository) update(id string, fn func(p *models.Participant) error) error {
	return r.v.with(func(s *memState) error {
		p, ok := s.participants[id]
		if !ok {
			return ErrParticipantNotFound
		}
		return fn(p)
	})
}

func (r *memoryParticipantRepository) UpdateStatus(_ context.Context, id string, from, to models.ParticipantStatus) error {
	return r.update(id, func(p *models.Participant) error {
		if p.Status != from {
			return ErrParticipantStatusConflict
		}
		p.Status = to
		return nil
	})
}

func (r *memoryParticipantRepository) SetGroup(_ context.Context, id string, groupKey *string) error {
	return r.update(id, func(p *models.Participant) error {
		if groupKey == nil {
			p.GroupKey = nil
			return nil
		}
		g := *groupKey
		p.GroupKey = &g
		return nil
	})
}

func (r *memoryParticipantRepository) IncrementStrikes(_ context.Context, id string) (int, error) {
	var strikes int
	err := r.update(id, func(p *models.Participant) error {
		p.Strikes++
		strikes = p.Strikes
		return nil
	})
	return strikes, err
}

func (r *memoryParticipantRepository) SetBanned(_ context.Context, id string, banned bool) error {
	return r.update(id, func(p *models.Participant) error {
		p.BannedNextMatch = banned
		return nil
	})
}

func (r *memoryParticipantRepository) ClearStrikes(_ context.Context, id string) error {
	return r.update(id, func(p *models.Participant) error {
		p.Strikes = 0
		p.BannedNextMatch = false
		return nil
	})
}

func (r *memoryParticipantRepository) IncrementAccuracyTotal(_ context.Context, id string) error {
	return r.update(id, func(p *models.Participant) error {
		p.AccuracyTotal++
		return nil
	})
}

func (r *memoryParticipantRepository) IncrementAccuracyConfirmed(_ context.Context, id string) error {
	return r.update(id, func(p *models.Participant) error {
		p.AccuracyConfirmed++
		return nil
	})
}

type memoryMatchRepository struct{ v memView }

func (r *memoryMatchRepository) Create(_ context.Context, m *models.Match) (bool, error) {
	created := false
	err := r.v.with(func(s *memState) error {
		if _, ok := s.tournaments[m.TournamentID]; !ok {
			return ErrMatchTournamentInvalid
		}
		if m.IdempotencyKey != "" {
			for _, existing := range s.matches {
				if existing.IdempotencyKey == m.IdempotencyKey {
					return nil
				}
			}
		}
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.Version == 0 {
			m.Version = 1
		}
		m.CreatedAt = r.v.now()
		s.matches[m.ID] = m.Clone()
		created = true
		return nil
	})
	return created, err
}

func (r *memoryMatchRepository) GetByID(_ context.Context, id string) (*models.Match, error) {
	var out *models.Match
	err := r.v.with(func(s *memState) error {
		m, ok := s.matches[id]
		if !ok {
			return ErrMatchNotFound
		}
		out = m.Clone()
		return nil
	})
	return out, err
}

func (r *memoryMatchRepository) GetByKey(_ context.Context, idempotencyKey string) (*models.Match, error) {
	var out *models.Match
	err := r.v.with(func(s *memState) error {
		for _, m := range s.matches {
			if m.IdempotencyKey == idempotencyKey {
				out = m.Clone()
				return nil
			}
		}
		return ErrMatchNotFound
	})
	return out, err
}

func (r *memoryMatchRepository) ListByTournament(_ context.Context, tournamentID string, filter MatchFilter) ([]*models.Match, error) {
	return r.collect(func(m *models.Match) bool {
		if m.TournamentID != tournamentID {
			return false
		}
		if filter.Stage != nil && m.Stage != *filter.Stage {
			return false
		}
		if filter.Status != nil && m.Status != *filter.Status {
			return false
		}
		if filter.RoundName != nil && m.RoundName != *filter.RoundName {
			return false
		}
		if filter.GroupKey != nil && m.GroupKey != *filter.GroupKey {
			return false
		}
		return true
	}, func(a, b *models.Match) bool {
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	}, 0)
}

func (r *memoryMatchRepository) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Match, error) {
	return r.collect(func(m *models.Match) bool {
		if m.Deadline == nil || m.Deadline.After(now) || m.AutoResolved || !m.IsComplete() || m.AutoReason == models.AutoAwaitingAdmin {
			return false
		}
		return m.Status == models.MatchPending || m.Status == models.MatchPendingConfirmation
	}, func(a, b *models.Match) bool {
		if !a.Deadline.Equal(*b.Deadline) {
			return a.Deadline.Before(*b.Deadline)
		}
		return a.ID < b.ID
	}, limit)
}

func (r *memoryMatchRepository) collect(keep func(*models.Match) bool, less func(a, b *models.Match) bool, limit int) ([]*models.Match, error) {
	out := make([]*models.Match, 0)
	_ = r.v.with(func(s *memState) error {
		for _, m := range s.matches {
			if keep(m) {
				out = append(out, m.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryMatchRepository) Update(_ context.Context, m *models.Match, expectedVersion int) error {
	return r.v.with(func(s *memState) error {
		current, ok := s.matches[m.ID]
		if !ok {
			return ErrMatchNotFound
		}
		if current.Version != expectedVersion {
			return ErrMatchVersionConflict
		}
		next := m.Clone()
		// неизменяемые поля остаются как при создании
		next.TournamentID = current.TournamentID
		next.Stage = current.Stage
		next.GroupKey = current.GroupKey
		next.RoundName = current.RoundName
		next.BracketIndex = current.BracketIndex
		next.Order = current.Order
		next.IdempotencyKey = current.IdempotencyKey
		next.CreatedAt = current.CreatedAt
		next.Version = expectedVersion + 1
		s.matches[m.ID] = next
		m.Version = next.Version
		return nil
	})
}

type memoryBanRepository struct{ v memView }

func (r *memoryBanRepository) Create(_ context.Context, b *models.Ban) error {
	return r.v.with(func(s *memState) error {
		if b.MatchID != "" {
			for _, existing := range s.bans {
				if existing.PlayerID == b.PlayerID && existing.MatchID == b.MatchID {
					return ErrBanConflict
				}
			}
		}
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		s.bans[b.ID] = cloneBan(b)
		return nil
	})
}

func (r *memoryBanRepository) ListByMatch(_ context.Context, matchID string) ([]*models.Ban, error) {
	return r.collect(func(b *models.Ban) bool { return b.MatchID == matchID }), nil
}

func (r *memoryBanRepository) ListByPlayer(_ context.Context, tournamentID, playerID string) ([]*models.Ban, error) {
	return r.collect(func(b *models.Ban) bool { return b.TournamentID == tournamentID && b.PlayerID == playerID }), nil
}

func (r *memoryBanRepository) collect(keep func(*models.Ban) bool) []*models.Ban {
	out := make([]*models.Ban, 0)
	_ = r.v.with(func(s *memState) error {
		for _, b := range s.bans {
			if keep(b) {
				out = append(out, cloneBan(b))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *memoryBanRepository) MarkUsed(_ context.Context, id string, at time.Time) error {
	return r.v.with(func(s *memState) error {
		b, ok := s.bans[id]
		if !ok || b.Used {
			return ErrBanNotFound
		}
		b.Used = true
		usedAt := at
		b.UsedAt = &usedAt
		return nil
	})
}

func (r *memoryBanRepository) AssignMatch(_ context.Context, id, matchID string) error {
	return r.v.with(func(s *memState) error {
		b, ok := s.bans[id]
		if !ok || b.Used || b.MatchID != "" {
			return ErrBanNotFound
		}
		for _, existing := range s.bans {
			if existing.PlayerID == b.PlayerID && existing.MatchID == matchID {
				return ErrBanConflict
			}
		}
		b.MatchID = matchID
		return nil
	})
}

func (r *memoryBanRepository) RevokeUnused(_ context.Context, tournamentID, playerID string) (int, error) {
	revoked := 0
	err := r.v.with(func(s *memState) error {
		for id, b := range s.bans {
			if b.TournamentID == tournamentID && b.PlayerID == playerID && !b.Used {
				delete(s.bans, id)
				revoked++
			}
		}
		return nil
	})
	return revoked, err
}

type memoryPayoutRepository struct{ v memView }

func (r *memoryPayoutRepository) Create(_ context.Context, p *models.Payout) error {
	return r.v.with(func(s *memState) error {
		for _, existing := range s.payouts {
			if existing.TournamentID == p.TournamentID {
				return ErrPayoutConflict
			}
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		p.CreatedAt = r.v.now()
		cp := *p
		s.payouts[p.ID] = &cp
		return nil
	})
}

func (r *memoryPayoutRepository) ListByTournament(_ context.Context, tournamentID string) ([]*models.Payout, error) {
	out := make([]*models.Payout, 0)
	_ = r.v.with(func(s *memState) error {
		for _, p := range s.payouts {
			if p.TournamentID == tournamentID {
				cp := *p
				out = append(out, &cp)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
