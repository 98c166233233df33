package service_test

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pkordes/tripvote/internal/domain"
	"github.com/pkordes/tripvote/internal/repo"
)

// memStore is an in-memory repo.Store. InTx holds one lock for the whole
// transaction and restores a snapshot when fn fails, which is enough to
// reproduce the row-lock serialisation the Postgres store gives.
type memStore struct {
	mu        sync.Mutex
	trips     map[uuid.UUID]domain.Trip
	members   map[uuid.UUID]map[uuid.UUID]domain.TripMember
	proposals map[uuid.UUID]domain.Proposal
	votes     map[uuid.UUID]map[uuid.UUID]bool
	order     []uuid.UUID
	clock     time.Time

	// staleWrites makes the next N UpdateItinerary calls fail with
	// domain.ErrVersionConflict, as if another merge had just committed.
	staleWrites     int
	itineraryWrites int
}

func newMemStore() *memStore {
	return &memStore{
		trips:     map[uuid.UUID]domain.Trip{},
		members:   map[uuid.UUID]map[uuid.UUID]domain.TripMember{},
		proposals: map[uuid.UUID]domain.Proposal{},
		votes:     map[uuid.UUID]map[uuid.UUID]bool{},
		clock:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

var _ repo.Store = (*memStore)(nil)

func (s *memStore) Repos() repo.Repos { return s.repos(false) }

func (s *memStore) InTx(_ context.Context, fn func(repo.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(s.repos(true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) repos(locked bool) repo.Repos {
	r := &memRepos{s: s, locked: locked}
	return repo.Repos{Trips: memTrips{r}, Members: memMembers{r}, Proposals: memProposals{r}}
}

type memState struct {
	trips     map[uuid.UUID]domain.Trip
	members   map[uuid.UUID]map[uuid.UUID]domain.TripMember
	proposals map[uuid.UUID]domain.Proposal
	votes     map[uuid.UUID]map[uuid.UUID]bool
	order     []uuid.UUID
}

func (s *memStore) snapshot() memState {
	st := memState{
		trips:     maps.Clone(s.trips),
		members:   map[uuid.UUID]map[uuid.UUID]domain.TripMember{},
		proposals: maps.Clone(s.proposals),
		votes:     map[uuid.UUID]map[uuid.UUID]bool{},
		order:     slices.Clone(s.order),
	}
	for k, v := range s.members {
		st.members[k] = maps.Clone(v)
	}
	for k, v := range s.votes {
		st.votes[k] = maps.Clone(v)
	}
	return st
}

func (s *memStore) restore(st memState) {
	s.trips, s.members, s.proposals, s.votes, s.order = st.trips, st.members, st.proposals, st.votes, st.order
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// ---- seeding helpers (take the lock) ---------------------------------------

func (s *memStore) addTrip(owner uuid.UUID, days ...domain.TripDay) domain.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	t := domain.Trip{
		ID:         uuid.New(),
		OwnerID:    owner,
		Name:       "Test trip",
		Visibility: domain.VisibilityPrivate,
		Itinerary:  domain.NewItinerary(days...),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.trips[t.ID] = t
	s.members[t.ID] = map[uuid.UUID]domain.TripMember{owner: {TripID: t.ID, UserID: owner, Role: domain.RoleOwner, JoinedAt: now}}
	return t
}

func (s *memStore) addMember(tripID, userID uuid.UUID, role domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[tripID][userID] = domain.TripMember{TripID: tripID, UserID: userID, Role: role, JoinedAt: s.tick()}
}

func (s *memStore) trip(id uuid.UUID) domain.Trip {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trips[id]
}

func (s *memStore) proposal(id uuid.UUID) domain.Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proposals[id]
}

func (s *memStore) setStaleWrites(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleWrites = n
}

func (s *memStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itineraryWrites
}

// ---- repositories ----------------------------------------------------------

type memRepos struct {
	s      *memStore
	locked bool
}

func (r *memRepos) do(fn func(s *memStore)) {
	if !r.locked {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	fn(r.s)
}

type memTrips struct{ r *memRepos }

func (m memTrips) Create(_ context.Context, t domain.Trip) (out domain.Trip, err error) {
	m.r.do(func(s *memStore) {
		now := s.tick()
		t.ID, t.Version, t.CreatedAt, t.UpdatedAt = uuid.New(), 1, now, now
		t.Itinerary = t.Itinerary.Clone()
		s.trips[t.ID] = t
		out = t
	})
	return out, nil
}

func (m memTrips) GetByID(_ context.Context, id uuid.UUID) (out domain.Trip, err error) {
	m.r.do(func(s *memStore) {
		t, ok := s.trips[id]
		if !ok {
			err = domain.ErrNotFound
			return
		}
		out = t
		out.Itinerary = t.Itinerary.Clone()
	})
	return out, err
}

func (m memTrips) GetForUpdate(ctx context.Context, id uuid.UUID) (domain.Trip, error) {
	return m.GetByID(ctx, id)
}

func (m memTrips) UpdateItinerary(_ context.Context, id uuid.UUID, it domain.Itinerary, expected int64) (out domain.Trip, err error) {
	m.r.do(func(s *memStore) {
		if s.staleWrites > 0 {
			s.staleWrites--
			err = domain.ErrVersionConflict
			return
		}
		t, ok := s.trips[id]
		if !ok || t.Version != expected {
			err = domain.ErrVersionConflict
			return
		}
		if err = it.Validate(); err != nil {
			return
		}
		t.Itinerary = it.Clone()
		t.Version++
		t.UpdatedAt = s.tick()
		s.trips[id] = t
		s.itineraryWrites++
		out = t
	})
	return out, err
}

type memMembers struct{ r *memRepos }

func (m memMembers) GetRole(_ context.Context, tripID, userID uuid.UUID) (role domain.Role, err error) {
	m.r.do(func(s *memStore) { role = s.members[tripID][userID].Role })
	return role, nil
}

func (m memMembers) EditorUserIDs(_ context.Context, tripID uuid.UUID) (ids []uuid.UUID, err error) {
	m.r.do(func(s *memStore) {
		for _, mem := range sortedMembers(s.members[tripID]) {
			if mem.Role.CanEdit() {
				ids = append(ids, mem.UserID)
			}
		}
	})
	return ids, nil
}

func (m memMembers) List(_ context.Context, tripID uuid.UUID) (out []domain.TripMember, err error) {
	m.r.do(func(s *memStore) { out = sortedMembers(s.members[tripID]) })
	return out, nil
}

func (m memMembers) Upsert(_ context.Context, mem domain.TripMember) (out domain.TripMember, err error) {
	m.r.do(func(s *memStore) {
		if _, ok := s.trips[mem.TripID]; !ok {
			err = domain.ErrNotFound
			return
		}
		if s.members[mem.TripID] == nil {
			s.members[mem.TripID] = map[uuid.UUID]domain.TripMember{}
		}
		if existing, ok := s.members[mem.TripID][mem.UserID]; ok {
			mem.JoinedAt = existing.JoinedAt
		} else {
			mem.JoinedAt = s.tick()
		}
		s.members[mem.TripID][mem.UserID] = mem
		out = mem
	})
	return out, err
}

func (m memMembers) Remove(_ context.Context, tripID, userID uuid.UUID) (err error) {
	m.r.do(func(s *memStore) {
		if _, ok := s.members[tripID][userID]; !ok {
			err = domain.ErrNotFound
			return
		}
		delete(s.members[tripID], userID)
	})
	return err
}

func sortedMembers(byUser map[uuid.UUID]domain.TripMember) []domain.TripMember {
	out := slices.Collect(maps.Values(byUser))
	slices.SortFunc(out, func(a, b domain.TripMember) int {
		if (a.Role == domain.RoleOwner) != (b.Role == domain.RoleOwner) {
			if a.Role == domain.RoleOwner {
				return -1
			}
			return 1
		}
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	return out
}

type memProposals struct{ r *memRepos }

func (m memProposals) Create(_ context.Context, p domain.Proposal) (out domain.Proposal, err error) {
	m.r.do(func(s *memStore) {
		if _, ok := s.trips[p.TripID]; !ok {
			err = domain.ErrNotFound
			return
		}
		p.ID = uuid.New()
		p.CreatedAt = s.tick()
		p.EligibleVoterIDs = slices.Clone(p.EligibleVoterIDs)
		s.proposals[p.ID] = p
		s.order = append(s.order, p.ID)
		out = p
	})
	return out, err
}

func (m memProposals) GetByID(_ context.Context, id, viewerID uuid.UUID) (out domain.Proposal, err error) {
	m.r.do(func(s *memStore) {
		p, ok := s.proposals[id]
		if !ok {
			err = domain.ErrNotFound
			return
		}
		out = s.withVote(p, viewerID)
	})
	return out, err
}

func (m memProposals) GetForUpdate(_ context.Context, id uuid.UUID) (out domain.Proposal, err error) {
	m.r.do(func(s *memStore) {
		p, ok := s.proposals[id]
		if !ok {
			err = domain.ErrNotFound
			return
		}
		out = p
	})
	return out, err
}

func (m memProposals) ListByTrip(_ context.Context, tripID, viewerID uuid.UUID, pg domain.PaginationParams) (out []domain.Proposal, total int64, err error) {
	m.r.do(func(s *memStore) {
		var all []domain.Proposal
		for i := len(s.order) - 1; i >= 0; i-- {
			if p := s.proposals[s.order[i]]; p.TripID == tripID {
				all = append(all, s.withVote(p, viewerID))
			}
		}
		total = int64(len(all))
		start := min(pg.Offset(), len(all))
		end := min(start+pg.Limit, len(all))
		out = all[start:end]
	})
	return out, total, nil
}

func (m memProposals) UpsertVote(_ context.Context, v domain.Vote) (err error) {
	m.r.do(func(s *memStore) {
		if _, ok := s.proposals[v.ProposalID]; !ok {
			err = domain.ErrNotFound
			return
		}
		if s.votes[v.ProposalID] == nil {
			s.votes[v.ProposalID] = map[uuid.UUID]bool{}
		}
		s.votes[v.ProposalID][v.UserID] = v.Value
	})
	return err
}

func (m memProposals) CountVotes(_ context.Context, id uuid.UUID) (t domain.VoteTally, err error) {
	m.r.do(func(s *memStore) {
		for _, v := range s.votes[id] {
			if v {
				t.For++
			} else {
				t.Against++
			}
		}
	})
	return t, nil
}

func (m memProposals) UpdateTally(_ context.Context, id uuid.UUID, t domain.VoteTally, status domain.ProposalStatus, resolvedAt *time.Time) (err error) {
	m.r.do(func(s *memStore) {
		p := s.proposals[id]
		if p.Status != domain.StatusPending || (status != domain.StatusPending && !domain.StatusPending.CanTransitionTo(status)) {
			err = domain.ErrConflict
			return
		}
		p.VotesFor, p.VotesAgainst, p.Status, p.ResolvedAt = t.For, t.Against, status, resolvedAt
		s.proposals[id] = p
	})
	return err
}

func (m memProposals) Resolve(_ context.Context, id uuid.UUID, from, to domain.ProposalStatus, resolvedAt time.Time) (err error) {
	m.r.do(func(s *memStore) {
		p := s.proposals[id]
		if p.Status != from || !from.CanTransitionTo(to) {
			err = domain.ErrConflict
			return
		}
		p.Status, p.ResolvedAt = to, &resolvedAt
		s.proposals[id] = p
	})
	return err
}

func (s *memStore) withVote(p domain.Proposal, viewerID uuid.UUID) domain.Proposal {
	if v, ok := s.votes[p.ID][viewerID]; ok {
		p.UserVote = &v
	}
	return p
}
