package usecase_test

import (
	"context"
	"sync"

	"placesync/internal/saved/domain/model"
	"placesync/internal/saved/domain/repository"
)

// persistCall records one write the serializer handed to the remote store.
type persistCall struct {
	accountID string
	doc       model.AccountDocument
}

// fakeProfileRepo is an in-memory ProfileRepository recording persist calls.
// When gate is set, Persist blocks until a token is sent, letting tests pile
// up scheduled writes before any resolves.
type fakeProfileRepo struct {
	mu         sync.Mutex
	calls      []persistCall
	persistErr error
	gate       chan struct{}

	subs        []chan model.ProfileSnapshot
	subCancels  int
	subscribeTo string
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{}
}

func (f *fakeProfileRepo) Persist(ctx context.Context, accountID string, doc model.AccountDocument) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, persistCall{accountID: accountID, doc: doc})
	return f.persistErr
}

func (f *fakeProfileRepo) Subscribe(ctx context.Context, accountID string) (<-chan model.ProfileSnapshot, repository.CancelFunc, error) {
	ch := make(chan model.ProfileSnapshot, 8)
	f.mu.Lock()
	f.subs = append(f.subs, ch)
	f.subscribeTo = accountID
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			f.subCancels++
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (f *fakeProfileRepo) persistCalls() []persistCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]persistCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeProfileRepo) persistCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProfileRepo) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subCancels
}

func (f *fakeProfileRepo) latestSub() chan model.ProfileSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

// fakeAggregateFeed delivers aggregate snapshots pushed by the test.
type fakeAggregateFeed struct {
	mu      sync.Mutex
	subs    map[string]chan model.AggregateSnapshot
	cancels int
}

func newFakeAggregateFeed() *fakeAggregateFeed {
	return &fakeAggregateFeed{subs: make(map[string]chan model.AggregateSnapshot)}
}

func (f *fakeAggregateFeed) Subscribe(ctx context.Context, placeKey string) (<-chan model.AggregateSnapshot, repository.CancelFunc, error) {
	ch := make(chan model.AggregateSnapshot, 8)
	f.mu.Lock()
	f.subs[placeKey] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			f.cancels++
			f.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (f *fakeAggregateFeed) push(placeKey string, agg model.PlaceAggregate) {
	f.mu.Lock()
	ch := f.subs[placeKey]
	f.mu.Unlock()
	ch <- model.AggregateSnapshot{PlaceKey: placeKey, Aggregate: agg, Exists: true}
}

// fakeSocialGraph serves followee ids, save records and labels from fixture
// maps. blockRecords, when set, stalls SaveRecords until released; used to
// test that stale lookups never commit.
type fakeSocialGraph struct {
	mu           sync.Mutex
	followees    []string
	records      map[string][]model.SaveRecord // placeKey -> records
	labels       map[string]model.DisplayLabel
	followeesErr error
	recordsErr   error
	labelErr     error
	blockRecords chan struct{}
}

func newFakeSocialGraph() *fakeSocialGraph {
	return &fakeSocialGraph{
		records: make(map[string][]model.SaveRecord),
		labels:  make(map[string]model.DisplayLabel),
	}
}

func (f *fakeSocialGraph) FolloweeIDs(ctx context.Context, accountID string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.followeesErr != nil {
		return nil, f.followeesErr
	}
	if len(f.followees) > limit {
		return append([]string(nil), f.followees[:limit]...), nil
	}
	return append([]string(nil), f.followees...), nil
}

func (f *fakeSocialGraph) SaveRecords(ctx context.Context, placeKey string, accountIDs []string) ([]model.SaveRecord, error) {
	f.mu.Lock()
	block := f.blockRecords
	f.mu.Unlock()
	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordsErr != nil {
		return nil, f.recordsErr
	}
	wanted := make(map[string]struct{}, len(accountIDs))
	for _, id := range accountIDs {
		wanted[id] = struct{}{}
	}
	var out []model.SaveRecord
	for _, r := range f.records[placeKey] {
		if _, ok := wanted[r.AccountID]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSocialGraph) DisplayLabel(ctx context.Context, accountID string) (model.DisplayLabel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.labelErr != nil {
		return model.DisplayLabel{}, f.labelErr
	}
	return f.labels[accountID], nil
}
