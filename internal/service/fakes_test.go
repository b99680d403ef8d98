package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/domain"
	"github.com/OmerEfron/friendlinesv2.0-sub002/internal/repository"
)

// fakeFriendshipRepo is an in-memory FriendshipRepository mirroring the
// transactional semantics of the GORM implementation.
type fakeFriendshipRepo struct {
	mu       sync.Mutex
	pending  map[[2]string]time.Time // [requester, addressee]
	edges    map[[2]string]struct{}  // [user, friend], both directions stored
	counters map[string]int64
	failWith error // when set, every call fails with this error
}

func newFakeFriendshipRepo() *fakeFriendshipRepo {
	return &fakeFriendshipRepo{
		pending:  make(map[[2]string]time.Time),
		edges:    make(map[[2]string]struct{}),
		counters: make(map[string]int64),
	}
}

func (f *fakeFriendshipRepo) SendRequest(_ context.Context, requesterID, addresseeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.edges[[2]string{requesterID, addresseeID}]; ok {
		return repository.ErrAlreadyFriends
	}
	if _, ok := f.pending[[2]string{requesterID, addresseeID}]; ok {
		return repository.ErrRequestExists
	}
	if _, ok := f.pending[[2]string{addresseeID, requesterID}]; ok {
		return repository.ErrRequestExists
	}
	f.pending[[2]string{requesterID, addresseeID}] = time.Now().UTC()
	return nil
}

func (f *fakeFriendshipRepo) AcceptRequest(_ context.Context, accepterID, requesterID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.pending[[2]string{requesterID, accepterID}]; !ok {
		return repository.ErrRequestNotFound
	}
	delete(f.pending, [2]string{requesterID, accepterID})
	f.edges[[2]string{requesterID, accepterID}] = struct{}{}
	f.edges[[2]string{accepterID, requesterID}] = struct{}{}
	f.counters[requesterID]++
	f.counters[accepterID]++
	return nil
}

func (f *fakeFriendshipRepo) DeleteRequest(_ context.Context, requesterID, addresseeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.pending[[2]string{requesterID, addresseeID}]; !ok {
		return repository.ErrRequestNotFound
	}
	delete(f.pending, [2]string{requesterID, addresseeID})
	return nil
}

func (f *fakeFriendshipRepo) RemoveFriendship(_ context.Context, userID, friendID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.edges[[2]string{userID, friendID}]; !ok {
		return repository.ErrFriendshipNotFound
	}
	delete(f.edges, [2]string{userID, friendID})
	delete(f.edges, [2]string{friendID, userID})
	if f.counters[userID] > 0 {
		f.counters[userID]--
	}
	if f.counters[friendID] > 0 {
		f.counters[friendID]--
	}
	return nil
}

func (f *fakeFriendshipRepo) State(_ context.Context, viewerID, otherID string) (domain.FriendshipState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.edges[[2]string{viewerID, otherID}]; ok {
		return domain.StateFriends, nil
	}
	if _, ok := f.pending[[2]string{viewerID, otherID}]; ok {
		return domain.StateRequestSent, nil
	}
	if _, ok := f.pending[[2]string{otherID, viewerID}]; ok {
		return domain.StateRequestReceived, nil
	}
	return domain.StateNone, nil
}

func (f *fakeFriendshipRepo) AreFriends(_ context.Context, userID, otherID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.edges[[2]string{userID, otherID}]
	return ok, nil
}

func (f *fakeFriendshipRepo) BatchAreFriends(_ context.Context, userID string, targetIDs []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		_, ok := f.edges[[2]string{userID, id}]
		out[id] = ok
	}
	return out, nil
}

func (f *fakeFriendshipRepo) ListFriends(_ context.Context, userID string, offset, limit int) ([]string, error) {
	ids, _ := f.ListFriendIDs(context.Background(), userID)
	if offset >= len(ids) {
		return nil, nil
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	return ids[offset:end], nil
}

func (f *fakeFriendshipRepo) ListFriendIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for edge := range f.edges {
		if edge[0] == userID {
			ids = append(ids, edge[1])
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeFriendshipRepo) ListRequests(_ context.Context, userID string, direction domain.RequestDirection, offset, limit int) ([]domain.FriendRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var reqs []domain.FriendRequest
	for pair, at := range f.pending {
		if (direction == domain.DirectionIncoming && pair[1] == userID) ||
			(direction == domain.DirectionOutgoing && pair[0] == userID) {
			reqs = append(reqs, domain.FriendRequest{
				RequesterID: pair[0],
				AddresseeID: pair[1],
				CreatedAt:   at,
			})
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].RequesterID < reqs[j].RequesterID })
	if offset >= len(reqs) {
		return nil, nil
	}
	end := offset + limit
	if end > len(reqs) {
		end = len(reqs)
	}
	return reqs[offset:end], nil
}

func (f *fakeFriendshipRepo) FriendsCount(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	return f.counters[userID], nil
}

// befriend wires an existing friendship directly, bypassing the handshake.
func (f *fakeFriendshipRepo) befriend(a, b string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[[2]string{a, b}] = struct{}{}
	f.edges[[2]string{b, a}] = struct{}{}
	f.counters[a]++
	f.counters[b]++
}

var _ repository.FriendshipRepository = (*fakeFriendshipRepo)(nil)

// fakeGroupRepo is an in-memory read-only GroupRepository.
type fakeGroupRepo struct {
	groups  map[string]*domain.Group
	members map[string][]string // groupID -> userIDs
}

func newFakeGroupRepo() *fakeGroupRepo {
	return &fakeGroupRepo{
		groups:  make(map[string]*domain.Group),
		members: make(map[string][]string),
	}
}

func (f *fakeGroupRepo) addGroup(groupID string, memberIDs ...string) {
	f.groups[groupID] = &domain.Group{ID: groupID, Name: groupID}
	f.members[groupID] = memberIDs
}

func (f *fakeGroupRepo) GetGroup(_ context.Context, groupID string) (*domain.Group, error) {
	g, ok := f.groups[groupID]
	if !ok {
		return nil, repository.ErrGroupNotFound
	}
	return g, nil
}

func (f *fakeGroupRepo) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	for _, id := range f.members[groupID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGroupRepo) MemberOfAny(ctx context.Context, groupIDs []string, userID string) (bool, error) {
	for _, gid := range groupIDs {
		ok, _ := f.IsMember(ctx, gid, userID)
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeGroupRepo) ListMemberIDs(_ context.Context, groupIDs []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, gid := range groupIDs {
		for _, id := range f.members[gid] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out, nil
}

var _ repository.GroupRepository = (*fakeGroupRepo)(nil)

// fakePostRepo is an in-memory PostRepository, newest first.
type fakePostRepo struct {
	mu    sync.Mutex
	posts []*domain.Post
}

func newFakePostRepo() *fakePostRepo { return &fakePostRepo{} }

func (f *fakePostRepo) Save(_ context.Context, post *domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append([]*domain.Post{post}, f.posts...)
	return nil
}

func (f *fakePostRepo) FindByID(_ context.Context, postID string) (*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == postID {
			return p, nil
		}
	}
	return nil, repository.ErrPostNotFound
}

func (f *fakePostRepo) ListRecent(_ context.Context, limit int) ([]*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.posts) {
		limit = len(f.posts)
	}
	out := make([]*domain.Post, limit)
	copy(out, f.posts[:limit])
	return out, nil
}

func (f *fakePostRepo) ListByAuthor(_ context.Context, authorID string, limit int) ([]*domain.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Post
	for _, p := range f.posts {
		if p.AuthorID == authorID {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

var _ repository.PostRepository = (*fakePostRepo)(nil)

// fakeTokenRepo is an in-memory DeviceTokenRepository.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string][]string // userID -> tokens
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string][]string)}
}

func (f *fakeTokenRepo) Upsert(_ context.Context, userID, token, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens[userID] {
		if t == token {
			return nil
		}
	}
	f.tokens[userID] = append(f.tokens[userID], token)
	return nil
}

func (f *fakeTokenRepo) GetTokens(_ context.Context, userIDs []string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, id := range userIDs {
		out = append(out, f.tokens[id]...)
	}
	return out, nil
}

var _ repository.DeviceTokenRepository = (*fakeTokenRepo)(nil)

// fakeCountStore is an in-memory FriendCountStore.
type fakeCountStore struct {
	mu       sync.Mutex
	counts   map[string]int64
	accesses map[string]int64
}

func newFakeCountStore() *fakeCountStore {
	return &fakeCountStore{
		counts:   make(map[string]int64),
		accesses: make(map[string]int64),
	}
}

func (f *fakeCountStore) GetFriendsCount(_ context.Context, userID string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.counts[userID]
	return c, ok, nil
}

func (f *fakeCountStore) SetFriendsCount(_ context.Context, userID string, count int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[userID] = count
	return nil
}

func (f *fakeCountStore) CondIncrFriendsCount(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.counts[userID]; ok {
		f.counts[userID]++
	}
	return nil
}

func (f *fakeCountStore) CondDecrFriendsCount(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.counts[userID]; ok && c > 0 {
		f.counts[userID]--
	}
	return nil
}

func (f *fakeCountStore) RecordAccess(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accesses[userID]++
	return nil
}

func (f *fakeCountStore) GetTopHotKeys(_ context.Context, n int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	type kv struct {
		id    string
		score int64
	}
	var all []kv
	for id, score := range f.accesses {
		all = append(all, kv{id, score})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	var out []string
	for i := 0; i < len(all) && int64(i) < n; i++ {
		out = append(out, all[i].id)
	}
	return out, nil
}

func (f *fakeCountStore) ResetHotKeyScores(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accesses = make(map[string]int64)
	return nil
}

func (f *fakeCountStore) Close() error { return nil }

// fakePush records every push batch handed to it.
type fakePush struct {
	mu      sync.Mutex
	batches [][]string
	bodies  []string
	fail    map[int]error // batch index -> error to return
	calls   int
}

func newFakePush() *fakePush {
	return &fakePush{fail: make(map[int]error)}
}

func (f *fakePush) Send(_ context.Context, tokens []string, _, body string, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	f.calls++
	batch := make([]string, len(tokens))
	copy(batch, tokens)
	f.batches = append(f.batches, batch)
	f.bodies = append(f.bodies, body)
	return f.fail[idx]
}

func (f *fakePush) Close() error { return nil }

func (f *fakePush) sentTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

// fakePublisher records published post events.
type fakePublisher struct {
	mu     sync.Mutex
	events []string // post IDs
	err    error
}

func (f *fakePublisher) PublishPostCreated(_ context.Context, post *domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, post.ID)
	return nil
}

func (f *fakePublisher) Close() error { return nil }
