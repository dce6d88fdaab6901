package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
	"membership-service/internal/repositories"
)

// ── In-memory UnitOfWork ──
//
// Transactions are serialized on one mutex and roll back by restoring a
// snapshot of the whole state, which mirrors the row locks and guarded
// updates of the PostgreSQL store closely enough for the service rules.

type memState struct {
	groups      map[string]models.Group
	legacyRoles map[string]map[string]string
	memberships map[string]models.Membership
	invites     map[string]models.Invite
	requests    map[string]models.JoinRequest
	videos      map[string]models.Video
	likes       map[string]bool
}

func newMemState() *memState {
	return &memState{
		groups:      map[string]models.Group{},
		legacyRoles: map[string]map[string]string{},
		memberships: map[string]models.Membership{},
		invites:     map[string]models.Invite{},
		requests:    map[string]models.JoinRequest{},
		videos:      map[string]models.Video{},
		likes:       map[string]bool{},
	}
}

func (s *memState) clone() *memState {
	out := newMemState()
	for k, v := range s.groups {
		out.groups[k] = v
	}
	for k, v := range s.legacyRoles {
		roles := make(map[string]string, len(v))
		for u, r := range v {
			roles[u] = r
		}
		out.legacyRoles[k] = roles
	}
	for k, v := range s.memberships {
		out.memberships[k] = v
	}
	for k, v := range s.invites {
		out.invites[k] = v
	}
	for k, v := range s.requests {
		out.requests[k] = v
	}
	for k, v := range s.videos {
		out.videos[k] = v
	}
	for k, v := range s.likes {
		out.likes[k] = v
	}
	return out
}

func pairKey(a, b string) string { return a + "/" + b }

type fakeStore struct {
	mu        sync.Mutex
	state     *memState
	failures  map[string]error
	conflicts int
	txCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{state: newMemState(), failures: map[string]error{}}
}

func (s *fakeStore) Repos() repositories.Repos { return s.repos(false) }

func (s *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r repositories.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txCalls++
	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("%w: injected", apperrors.ErrConflict)
	}
	snapshot := s.state.clone()
	if err := fn(ctx, s.repos(true)); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

func (s *fakeStore) repos(inTx bool) repositories.Repos {
	c := &memConn{store: s, inTx: inTx}
	return repositories.Repos{
		Groups:       &memGroups{c},
		Memberships:  &memMemberships{c},
		Invites:      &memInvites{c},
		JoinRequests: &memJoinRequests{c},
		Likes:        &memLikes{c},
	}
}

// failOn makes the named repository method return err.
func (s *fakeStore) failOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

func (s *fakeStore) injectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

func (s *fakeStore) read(fn func(st *memState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

func (s *fakeStore) addGroup(g models.Group) {
	s.read(func(st *memState) { st.groups[g.ID] = g })
}

func (s *fakeStore) addMember(m models.Membership) {
	s.read(func(st *memState) { st.memberships[pairKey(m.GroupID, m.UserID)] = m })
}

func (s *fakeStore) addInvite(inv models.Invite) {
	s.read(func(st *memState) { st.invites[inv.ID] = inv })
}

func (s *fakeStore) addVideo(v models.Video) {
	s.read(func(st *memState) { st.videos[v.ID] = v })
}

func (s *fakeStore) addLegacyRoles(groupID string, roles map[string]string) {
	s.read(func(st *memState) { st.legacyRoles[groupID] = roles })
}

func (s *fakeStore) group(id string) models.Group {
	var g models.Group
	s.read(func(st *memState) { g = st.groups[id] })
	return g
}

func (s *fakeStore) invite(id string) models.Invite {
	var inv models.Invite
	s.read(func(st *memState) { inv = st.invites[id] })
	return inv
}

func (s *fakeStore) membership(groupID, userID string) (models.Membership, bool) {
	var (
		m  models.Membership
		ok bool
	)
	s.read(func(st *memState) { m, ok = st.memberships[pairKey(groupID, userID)] })
	return m, ok
}

func (s *fakeStore) activeMembers(groupID string) int {
	n := 0
	s.read(func(st *memState) {
		for _, m := range st.memberships {
			if m.GroupID == groupID && m.IsActive {
				n++
			}
		}
	})
	return n
}

func (s *fakeStore) likeCount(videoID string) int {
	n := 0
	s.read(func(st *memState) {
		for k := range st.likes {
			if strings.HasSuffix(k, "/"+videoID) {
				n++
			}
		}
	})
	return n
}

type memConn struct {
	store *fakeStore
	inTx  bool
}

func (c *memConn) do(method string, fn func(st *memState) error) error {
	if !c.inTx {
		c.store.mu.Lock()
		defer c.store.mu.Unlock()
	}
	if err := c.store.failures[method]; err != nil {
		return err
	}
	return fn(c.store.state)
}

// ── Groups ──

type memGroups struct{ c *memConn }

func (r *memGroups) Create(_ context.Context, g models.Group) (models.Group, error) {
	err := r.c.do("Groups.Create", func(st *memState) error {
		if _, ok := st.groups[g.ID]; ok {
			return fmt.Errorf("group %s exists", g.ID)
		}
		g.CreatedAt = time.Now()
		g.UpdatedAt = g.CreatedAt
		st.groups[g.ID] = g
		return nil
	})
	return g, err
}

func (r *memGroups) get(method, id string) (models.Group, error) {
	var g models.Group
	err := r.c.do(method, func(st *memState) error {
		var ok bool
		if g, ok = st.groups[id]; !ok {
			return fmt.Errorf("group %s: %w", id, apperrors.ErrNotFound)
		}
		return nil
	})
	return g, err
}

func (r *memGroups) Get(_ context.Context, id string) (models.Group, error) {
	return r.get("Groups.Get", id)
}

func (r *memGroups) GetForUpdate(_ context.Context, id string) (models.Group, error) {
	return r.get("Groups.GetForUpdate", id)
}

func (r *memGroups) AdjustMemberCount(_ context.Context, id string, delta int) (int, error) {
	var count int
	err := r.c.do("Groups.AdjustMemberCount", func(st *memState) error {
		g, ok := st.groups[id]
		if !ok || g.MemberCount+delta < 0 {
			return fmt.Errorf("group %s: %w", id, apperrors.ErrNotFound)
		}
		g.MemberCount += delta
		st.groups[id] = g
		count = g.MemberCount
		return nil
	})
	return count, err
}

func (r *memGroups) UpdateSettings(_ context.Context, id string, settings models.GroupSettings) error {
	return r.c.do("Groups.UpdateSettings", func(st *memState) error {
		g, ok := st.groups[id]
		if !ok {
			return fmt.Errorf("group %s: %w", id, apperrors.ErrNotFound)
		}
		g.GroupSettings = settings
		st.groups[id] = g
		return nil
	})
}

func (r *memGroups) Deactivate(_ context.Context, id string) error {
	return r.c.do("Groups.Deactivate", func(st *memState) error {
		g, ok := st.groups[id]
		if !ok {
			return fmt.Errorf("group %s: %w", id, apperrors.ErrNotFound)
		}
		g.IsActive = false
		st.groups[id] = g
		return nil
	})
}

func (r *memGroups) ListForUser(_ context.Context, userID string) ([]models.Group, error) {
	groups := []models.Group{}
	err := r.c.do("Groups.ListForUser", func(st *memState) error {
		for _, m := range st.memberships {
			if m.UserID != userID || !m.IsActive {
				continue
			}
			if g, ok := st.groups[m.GroupID]; ok && g.IsActive {
				groups = append(groups, g)
			}
		}
		sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
		return nil
	})
	return groups, err
}

func (r *memGroups) ListLegacyRoles(_ context.Context, afterID string, limit int) ([]models.LegacyMemberRoles, error) {
	var out []models.LegacyMemberRoles
	err := r.c.do("Groups.ListLegacyRoles", func(st *memState) error {
		ids := make([]string, 0, len(st.legacyRoles))
		for id, roles := range st.legacyRoles {
			if id > afterID && len(roles) > 0 {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			if len(out) == limit {
				break
			}
			roles := map[string]string{}
			for u, role := range st.legacyRoles[id] {
				roles[u] = role
			}
			out = append(out, models.LegacyMemberRoles{GroupID: id, Roles: roles})
		}
		return nil
	})
	return out, err
}

func (r *memGroups) ClearLegacyRoles(_ context.Context, id string) error {
	return r.c.do("Groups.ClearLegacyRoles", func(st *memState) error {
		delete(st.legacyRoles, id)
		return nil
	})
}

// ── Memberships ──

type memMemberships struct{ c *memConn }

func (r *memMemberships) Get(_ context.Context, groupID, userID string) (models.Membership, error) {
	var m models.Membership
	err := r.c.do("Memberships.Get", func(st *memState) error {
		var ok bool
		if m, ok = st.memberships[pairKey(groupID, userID)]; !ok {
			return fmt.Errorf("membership: %w", apperrors.ErrNotFound)
		}
		return nil
	})
	return m, err
}

func (r *memMemberships) Activate(_ context.Context, m models.Membership) (models.Membership, bool, error) {
	created := false
	err := r.c.do("Memberships.Activate", func(st *memState) error {
		key := pairKey(m.GroupID, m.UserID)
		if existing, ok := st.memberships[key]; ok && existing.IsActive {
			m = existing
			return nil
		}
		m.IsActive = true
		st.memberships[key] = m
		created = true
		return nil
	})
	return m, created, err
}

func (r *memMemberships) InsertIfAbsent(_ context.Context, m models.Membership) (bool, error) {
	inserted := false
	err := r.c.do("Memberships.InsertIfAbsent", func(st *memState) error {
		key := pairKey(m.GroupID, m.UserID)
		if _, ok := st.memberships[key]; ok {
			return nil
		}
		st.memberships[key] = m
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *memMemberships) Deactivate(_ context.Context, groupID, userID string) (bool, error) {
	changed := false
	err := r.c.do("Memberships.Deactivate", func(st *memState) error {
		key := pairKey(groupID, userID)
		m, ok := st.memberships[key]
		if !ok || !m.IsActive {
			return nil
		}
		m.IsActive = false
		st.memberships[key] = m
		changed = true
		return nil
	})
	return changed, err
}

func (r *memMemberships) CountActive(_ context.Context, groupID string, role models.Role) (int, error) {
	n := 0
	err := r.c.do("Memberships.CountActive", func(st *memState) error {
		for _, m := range st.memberships {
			if m.GroupID == groupID && m.IsActive && (role == "" || m.Role == role) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *memMemberships) ListActive(_ context.Context, groupID string) ([]models.Membership, error) {
	members := []models.Membership{}
	err := r.c.do("Memberships.ListActive", func(st *memState) error {
		for _, m := range st.memberships {
			if m.GroupID == groupID && m.IsActive {
				members = append(members, m)
			}
		}
		sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
		return nil
	})
	return members, err
}

// ── Invites ──

type memInvites struct{ c *memConn }

func (r *memInvites) Create(_ context.Context, inv models.Invite) (models.Invite, error) {
	err := r.c.do("Invites.Create", func(st *memState) error {
		for _, existing := range st.invites {
			if existing.Code == inv.Code {
				return repositories.ErrDuplicateCode
			}
		}
		inv.UsedCount = 0
		inv.IsRevoked = false
		st.invites[inv.ID] = inv
		return nil
	})
	return inv, err
}

func (r *memInvites) byCode(method, code string, keep func(models.Invite) bool) (models.Invite, error) {
	var inv models.Invite
	err := r.c.do(method, func(st *memState) error {
		for _, candidate := range st.invites {
			if candidate.Code == code && keep(candidate) {
				inv = candidate
				return nil
			}
		}
		return fmt.Errorf("invite: %w", apperrors.ErrNotFound)
	})
	return inv, err
}

func (r *memInvites) FindRedeemable(_ context.Context, code string, now time.Time) (models.Invite, error) {
	return r.byCode("Invites.FindRedeemable", code, func(inv models.Invite) bool { return inv.Redeemable(now) })
}

func (r *memInvites) GetByCodeForUpdate(_ context.Context, code string) (models.Invite, error) {
	return r.byCode("Invites.GetByCodeForUpdate", code, func(models.Invite) bool { return true })
}

func (r *memInvites) GetByID(_ context.Context, id string) (models.Invite, error) {
	var inv models.Invite
	err := r.c.do("Invites.GetByID", func(st *memState) error {
		var ok bool
		if inv, ok = st.invites[id]; !ok {
			return fmt.Errorf("invite %s: %w", id, apperrors.ErrNotFound)
		}
		return nil
	})
	return inv, err
}

func (r *memInvites) IncrementUsed(_ context.Context, id string) (int, error) {
	var used int
	err := r.c.do("Invites.IncrementUsed", func(st *memState) error {
		inv, ok := st.invites[id]
		if !ok || inv.UsedCount >= inv.MaxUses {
			return fmt.Errorf("invite %s: %w", id, apperrors.ErrInviteExhausted)
		}
		inv.UsedCount++
		st.invites[id] = inv
		used = inv.UsedCount
		return nil
	})
	return used, err
}

func (r *memInvites) Revoke(_ context.Context, id string) (bool, error) {
	changed := false
	err := r.c.do("Invites.Revoke", func(st *memState) error {
		inv, ok := st.invites[id]
		if !ok || inv.IsRevoked {
			return nil
		}
		inv.IsRevoked = true
		st.invites[id] = inv
		changed = true
		return nil
	})
	return changed, err
}

func (r *memInvites) ListByGroup(_ context.Context, groupID string) ([]models.Invite, error) {
	invites := []models.Invite{}
	err := r.c.do("Invites.ListByGroup", func(st *memState) error {
		for _, inv := range st.invites {
			if inv.GroupID == groupID {
				invites = append(invites, inv)
			}
		}
		sort.Slice(invites, func(i, j int) bool { return invites[i].ID < invites[j].ID })
		return nil
	})
	return invites, err
}

// ── Join requests ──

type memJoinRequests struct{ c *memConn }

func (r *memJoinRequests) Create(_ context.Context, req models.JoinRequest) (models.JoinRequest, error) {
	err := r.c.do("JoinRequests.Create", func(st *memState) error {
		for _, existing := range st.requests {
			if existing.GroupID == req.GroupID && existing.UserID == req.UserID && existing.Status == models.JoinRequestPending {
				return apperrors.ErrAlreadyPending
			}
		}
		req.Status = models.JoinRequestPending
		req.CreatedAt = time.Now()
		req.UpdatedAt = req.CreatedAt
		st.requests[req.ID] = req
		return nil
	})
	return req, err
}

func (r *memJoinRequests) FindPending(_ context.Context, groupID, userID string) (models.JoinRequest, error) {
	var req models.JoinRequest
	err := r.c.do("JoinRequests.FindPending", func(st *memState) error {
		for _, candidate := range st.requests {
			if candidate.GroupID == groupID && candidate.UserID == userID && candidate.Status == models.JoinRequestPending {
				req = candidate
				return nil
			}
		}
		return fmt.Errorf("join request: %w", apperrors.ErrNotFound)
	})
	return req, err
}

func (r *memJoinRequests) GetForUpdate(_ context.Context, groupID, requestID string) (models.JoinRequest, error) {
	var req models.JoinRequest
	err := r.c.do("JoinRequests.GetForUpdate", func(st *memState) error {
		var ok bool
		if req, ok = st.requests[requestID]; !ok || req.GroupID != groupID {
			return fmt.Errorf("join request %s: %w", requestID, apperrors.ErrNotFound)
		}
		return nil
	})
	return req, err
}

func (r *memJoinRequests) UpdateStatus(_ context.Context, requestID string, status models.JoinRequestStatus, decidedBy string) (models.JoinRequest, error) {
	var req models.JoinRequest
	err := r.c.do("JoinRequests.UpdateStatus", func(st *memState) error {
		var ok bool
		if req, ok = st.requests[requestID]; !ok {
			return fmt.Errorf("join request %s: %w", requestID, apperrors.ErrNotFound)
		}
		req.Status = status
		req.DecidedBy = &decidedBy
		req.UpdatedAt = time.Now()
		st.requests[requestID] = req
		return nil
	})
	return req, err
}

func (r *memJoinRequests) ListPending(_ context.Context, groupID string) ([]models.JoinRequest, error) {
	reqs := []models.JoinRequest{}
	err := r.c.do("JoinRequests.ListPending", func(st *memState) error {
		for _, req := range st.requests {
			if req.GroupID == groupID && req.Status == models.JoinRequestPending {
				reqs = append(reqs, req)
			}
		}
		sort.Slice(reqs, func(i, j int) bool { return reqs[i].ID < reqs[j].ID })
		return nil
	})
	return reqs, err
}

// ── Likes ──

type memLikes struct{ c *memConn }

func (r *memLikes) GetVideoForUpdate(_ context.Context, videoID string) (models.Video, error) {
	var v models.Video
	err := r.c.do("Likes.GetVideoForUpdate", func(st *memState) error {
		var ok bool
		if v, ok = st.videos[videoID]; !ok {
			return fmt.Errorf("video %s: %w", videoID, apperrors.ErrNotFound)
		}
		return nil
	})
	return v, err
}

func (r *memLikes) Insert(_ context.Context, userID, videoID string) (bool, error) {
	inserted := false
	err := r.c.do("Likes.Insert", func(st *memState) error {
		key := pairKey(userID, videoID)
		if st.likes[key] {
			return nil
		}
		st.likes[key] = true
		inserted = true
		return nil
	})
	return inserted, err
}

func (r *memLikes) Delete(_ context.Context, userID, videoID string) (bool, error) {
	removed := false
	err := r.c.do("Likes.Delete", func(st *memState) error {
		key := pairKey(userID, videoID)
		if !st.likes[key] {
			return nil
		}
		delete(st.likes, key)
		removed = true
		return nil
	})
	return removed, err
}

func (r *memLikes) AdjustLikes(_ context.Context, videoID string, delta int) (int, error) {
	var likes int
	err := r.c.do("Likes.AdjustLikes", func(st *memState) error {
		v, ok := st.videos[videoID]
		if !ok {
			return fmt.Errorf("video %s: %w", videoID, apperrors.ErrNotFound)
		}
		v.Likes += delta
		if v.Likes < 0 {
			v.Likes = 0
		}
		st.videos[videoID] = v
		likes = v.Likes
		return nil
	})
	return likes, err
}

// ── Collaborators ──

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.GroupEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event models.GroupEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type seqGenerator struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (g *seqGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= len(g.codes) {
		return "", fmt.Errorf("seqGenerator exhausted")
	}
	code := g.codes[g.next]
	g.next++
	return code, nil
}

var (
	_ repositories.UnitOfWork = (*fakeStore)(nil)
	_ Notifier                = (*recordingNotifier)(nil)
)
