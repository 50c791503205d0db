package recommend

import (
	"context"
	"sync"
	"testing"
	"time"

	errors "github.com/Laisky/errors/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type insertCall struct {
	term    string
	payload string
}

type memoryStore struct {
	mu       sync.Mutex
	records  map[string][]CacheRecord
	inserts  []insertCall
	finds    int
	findErr  error
	insertFn func(term, payload string) error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: map[string][]CacheRecord{}}
}

func (s *memoryStore) put(term, payload string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[term] = append(s.records[term], CacheRecord{
		ID:        uuid.New(),
		Term:      term,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
}

func (s *memoryStore) FindLatest(_ context.Context, term string) (*CacheRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}

	records := s.records[term]
	if len(records) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "term %q", term)
	}
	latest := records[len(records)-1]
	return &latest, nil
}

func (s *memoryStore) Insert(_ context.Context, term, payload string) error {
	s.mu.Lock()
	s.inserts = append(s.inserts, insertCall{term: term, payload: payload})
	fn := s.insertFn
	s.mu.Unlock()

	if fn != nil {
		if err := fn(term, payload); err != nil {
			return err
		}
	}
	s.put(term, payload)
	return nil
}

func (s *memoryStore) insertCalls() []insertCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]insertCall(nil), s.inserts...)
}

func (s *memoryStore) findCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

type stubFetcher struct {
	mu     sync.Mutex
	result *SearchResult
	err    error
	terms  []string
	before func()
}

func (f *stubFetcher) Fetch(_ context.Context, displayTerm string) (*SearchResult, error) {
	f.mu.Lock()
	f.terms = append(f.terms, displayTerm)
	before := f.before
	f.mu.Unlock()

	if before != nil {
		before()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *stubFetcher) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.terms...)
}

func newTestService(t *testing.T, store Store, fetcher Fetcher, opts ...ServiceOption) *Service {
	t.Helper()
	svc, err := NewService(store, fetcher, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(nil, &stubFetcher{})
	require.Error(t, err)
	_, err = NewService(newMemoryStore(), nil)
	require.Error(t, err)
}

func TestLookupCacheHit(t *testing.T) {
	store := newMemoryStore()
	cached := &SearchResult{
		BannerURL: "https://x/paris.png",
		Recommendations: []Recommendation{
			{Title: "Amélie", Type: MediaMovie},
			{Title: "Midnight in Paris", Type: MediaMovie},
		},
	}
	payload, err := EncodeResult(cached)
	require.NoError(t, err)
	store.put("paris", payload)

	fetcher := &stubFetcher{err: errors.New("should not be called")}
	svc := newTestService(t, store, fetcher)

	got, err := svc.Lookup(context.Background(), "Paris")
	require.NoError(t, err)
	require.Equal(t, "Paris", got.Term)
	require.Equal(t, "paris", got.Canonical)
	require.Equal(t, SourceCache, got.Source)
	require.Len(t, got.Result.Recommendations, 2)
	require.Equal(t, cached.BannerURL, got.Result.BannerURL)
	require.Empty(t, fetcher.calls())
	require.Empty(t, store.insertCalls())
}

func TestLookupCacheHitPicksLatestRecord(t *testing.T) {
	store := newMemoryStore()
	older, err := EncodeResult(&SearchResult{Recommendations: []Recommendation{{Title: "Old"}}})
	require.NoError(t, err)
	newer, err := EncodeResult(&SearchResult{Recommendations: []Recommendation{{Title: "New"}}})
	require.NoError(t, err)
	store.put("rome", older)
	store.put("rome", newer)

	svc := newTestService(t, store, &stubFetcher{})
	got, err := svc.Lookup(context.Background(), " ROME ")
	require.NoError(t, err)
	require.Equal(t, "New", got.Result.Recommendations[0].Title)
}

func TestLookupCacheMissFetchesAndFills(t *testing.T) {
	store := newMemoryStore()
	fetched := &SearchResult{
		BannerURL:       "https://x/banner.png",
		Recommendations: []Recommendation{{Title: "Lost in Translation", Type: MediaMovie}},
	}
	fetcher := &stubFetcher{result: fetched}
	svc := newTestService(t, store, fetcher)

	got, err := svc.Lookup(context.Background(), "Tokyo")
	require.NoError(t, err)
	require.Equal(t, SourceWebhook, got.Source)
	require.Equal(t, fetched, got.Result)
	require.Equal(t, []string{"Tokyo"}, fetcher.calls())

	inserts := store.insertCalls()
	require.Len(t, inserts, 1)
	require.Equal(t, "tokyo", inserts[0].term)

	stored, err := DecodeResult([]byte(inserts[0].payload))
	require.NoError(t, err)
	require.Equal(t, "https://x/banner.png", stored.BannerURL)
	require.Len(t, stored.Recommendations, 1)
	require.Empty(t, stored.AdditionalRecommendations)

	// the second lookup is served from the record written above
	again, err := svc.Lookup(context.Background(), "tokyo")
	require.NoError(t, err)
	require.Equal(t, SourceCache, again.Source)
	require.Equal(t, got.Result.Recommendations, again.Result.Recommendations)
	require.Len(t, fetcher.calls(), 1)
}

func TestLookupCorruptCacheFallsBackToFetch(t *testing.T) {
	store := newMemoryStore()
	store.put("berlin", `{"Recommendations": ["not json"]}`)
	fetcher := &stubFetcher{result: &SearchResult{Recommendations: []Recommendation{{Title: "Babylon Berlin"}}}}
	svc := newTestService(t, store, fetcher)

	got, err := svc.Lookup(context.Background(), "Berlin")
	require.NoError(t, err)
	require.Equal(t, SourceWebhook, got.Source)
	require.Equal(t, "Babylon Berlin", got.Result.Recommendations[0].Title)
	require.Len(t, store.insertCalls(), 1)
}

func TestLookupStoreReadErrorFallsBackToFetch(t *testing.T) {
	store := newMemoryStore()
	store.findErr = storeError("query cache record", errors.New("connection refused"))
	fetcher := &stubFetcher{result: &SearchResult{Recommendations: []Recommendation{{Title: "Roma"}}}}
	svc := newTestService(t, store, fetcher)

	got, err := svc.Lookup(context.Background(), "Mexico City")
	require.NoError(t, err)
	require.Equal(t, "Roma", got.Result.Recommendations[0].Title)
	require.Equal(t, []string{"Mexico City"}, fetcher.calls())
}

func TestLookupInsertFailureStillReturnsResult(t *testing.T) {
	store := newMemoryStore()
	store.insertFn = func(string, string) error {
		return storeError("insert cache record", errors.New("read only"))
	}
	fetched := &SearchResult{Recommendations: []Recommendation{{Title: "In Bruges"}}}
	svc := newTestService(t, store, &stubFetcher{result: fetched})

	got, err := svc.Lookup(context.Background(), "Bruges")
	require.NoError(t, err)
	require.Equal(t, fetched, got.Result)
	require.Len(t, store.insertCalls(), 1)
}

func TestLookupFetchFailure(t *testing.T) {
	store := newMemoryStore()
	fetcher := &stubFetcher{err: &Error{Code: ErrCodeFetch, Message: "webhook", StatusCode: 500}}
	svc := newTestService(t, store, fetcher)

	got, err := svc.Lookup(context.Background(), "Lisbon")
	require.Error(t, err)
	require.Nil(t, got)

	typed, ok := AsError(err)
	require.True(t, ok)
	require.Equal(t, ErrCodeFetch, typed.Code)
	require.Equal(t, 500, typed.StatusCode)
	require.True(t, typed.Retryable())
	require.Empty(t, store.insertCalls())
}

func TestLookupWrapsUntypedFetchError(t *testing.T) {
	svc := newTestService(t, newMemoryStore(), &stubFetcher{err: errors.New("dial tcp: timeout")})

	_, err := svc.Lookup(context.Background(), "Oslo")
	require.True(t, IsCode(err, ErrCodeFetch))
	require.Contains(t, err.Error(), "dial tcp")
}

func TestLookupEmptyTerm(t *testing.T) {
	store := newMemoryStore()
	fetcher := &stubFetcher{}
	var states []State
	svc := newTestService(t, store, fetcher, WithStateObserver(func(_ string, s State) {
		states = append(states, s)
	}))

	for _, term := range []string{"", "   ", "\t\n"} {
		got, err := svc.Lookup(context.Background(), term)
		require.ErrorIs(t, err, ErrEmptyTerm)
		require.Nil(t, got)
	}

	require.Zero(t, store.findCalls())
	require.Empty(t, fetcher.calls())
	require.Empty(t, states)
}

func TestLookupStateTransitions(t *testing.T) {
	var (
		mu     sync.Mutex
		states []State
	)
	observer := func(_ string, s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}

	ok := newTestService(t, newMemoryStore(), &stubFetcher{result: &SearchResult{}}, WithStateObserver(observer))
	_, err := ok.Lookup(context.Background(), "Seoul")
	require.NoError(t, err)

	failing := newTestService(t, newMemoryStore(), &stubFetcher{err: errors.New("boom")}, WithStateObserver(observer))
	_, err = failing.Lookup(context.Background(), "Seoul")
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []State{
		StateLookingUp, StateSuccess, StateIdle,
		StateLookingUp, StateFailed, StateIdle,
	}, states)
}

func TestLookupCanceledCallerLeavesWorkRunning(t *testing.T) {
	store := newMemoryStore()
	release := make(chan struct{})
	started := make(chan struct{})
	fetcher := &stubFetcher{
		result: &SearchResult{Recommendations: []Recommendation{{Title: "Vertigo"}}},
		before: func() {
			close(started)
			<-release
		},
	}
	svc := newTestService(t, store, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := svc.Lookup(ctx, "San Francisco")
		errCh <- err
	}()

	<-started
	cancel()
	err := <-errCh
	require.ErrorIs(t, err, ErrCanceled)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.Eventually(t, func() bool {
		return len(store.insertCalls()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestLookupAlreadyCanceledContext(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store, &stubFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Lookup(ctx, "Cairo")
	require.ErrorIs(t, err, ErrCanceled)
	require.Zero(t, store.findCalls())
}

func TestLookupConcurrentMissesWithoutCoalescing(t *testing.T) {
	store := newMemoryStore()
	var arrived sync.WaitGroup
	arrived.Add(2)
	fetcher := &stubFetcher{
		result: &SearchResult{Recommendations: []Recommendation{{Title: "Before Sunrise"}}},
		before: func() {
			arrived.Done()
			arrived.Wait()
		},
	}
	svc := newTestService(t, store, fetcher)

	var wg sync.WaitGroup
	for _, term := range []string{"Vienna", "vienna "} {
		wg.Add(1)
		go func(term string) {
			defer wg.Done()
			_, err := svc.Lookup(context.Background(), term)
			assert.NoError(t, err)
		}(term)
	}
	wg.Wait()

	require.Len(t, fetcher.calls(), 2)
	inserts := store.insertCalls()
	require.Len(t, inserts, 2)
	require.Equal(t, "vienna", inserts[0].term)
	require.Equal(t, "vienna", inserts[1].term)
}

func TestLookupCoalescing(t *testing.T) {
	store := newMemoryStore()
	release := make(chan struct{})
	fetcher := &stubFetcher{
		result: &SearchResult{Recommendations: []Recommendation{{Title: "The Third Man"}}},
		before: func() {
			<-release
		},
	}
	svc := newTestService(t, store, fetcher, WithCoalescing(true))

	terms := []string{"Vienna", "VIENNA", " vienna"}
	results := make([]*Lookup, len(terms))
	var wg sync.WaitGroup
	for i, term := range terms {
		wg.Add(1)
		go func(i int, term string) {
			defer wg.Done()
			got, err := svc.Lookup(context.Background(), term)
			assert.NoError(t, err)
			results[i] = got
		}(i, term)
	}

	require.Eventually(t, func() bool {
		return len(fetcher.calls()) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Len(t, fetcher.calls(), 1)
	require.Len(t, store.insertCalls(), 1)
	for i, got := range results {
		require.Equal(t, terms[i], got.Term)
		require.Equal(t, "vienna", got.Canonical)
		require.Equal(t, "The Third Man", got.Result.Recommendations[0].Title)
	}
}

func TestStateString(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "looking_up", StateLookingUp.String())
	require.Equal(t, "success", StateSuccess.String())
	require.Equal(t, "failed", StateFailed.String())
	require.Equal(t, "state(9)", State(9).String())
}
