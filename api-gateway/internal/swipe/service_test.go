package swipe

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aaronwang/pickup-auction/shared/models"
)

type memoryStateStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	loadErr error
	saveErr error

	// Called before the store lock is taken.
	beforeLoad func(profile string)
	beforeSave func(profile string)
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{data: make(map[string][]byte)}
}

func (m *memoryStateStore) LoadSwipeState(_ context.Context, profile string) ([]byte, error) {
	if m.beforeLoad != nil {
		m.beforeLoad(profile)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.data[profile], nil
}

func (m *memoryStateStore) SaveSwipeState(_ context.Context, profile string, data []byte) error {
	if m.beforeSave != nil {
		m.beforeSave(profile)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data[profile] = data
	return nil
}

func newTestService(store StateStore, roll float64) *Service {
	return NewService(testCharacters(5), store, zap.NewNop(),
		WithRand(rand.New(rand.NewPCG(1, 2))),
		fixedRoll(roll),
	)
}

func TestServicePersistsAfterMutation(t *testing.T) {
	store := newMemoryStateStore()
	svc := newTestService(store, 0)
	ctx := context.Background()

	res, err := svc.Swipe(ctx, "alice", models.SwipeRight)
	require.NoError(t, err)
	require.True(t, res.Matched)
	assert.Equal(t, 1, store.saves)

	var st State
	require.NoError(t, json.Unmarshal(store.data["alice"], &st))
	assert.Equal(t, 1, st.SwipeCount)
	require.Len(t, st.Matches, 1)
	assert.Equal(t, res.Character.ID, st.Matches[0].CharacterID)
	assert.Contains(t, string(store.data["alice"]), `"superLikesLeft"`)
}

func TestServiceRestoresOnFirstAccess(t *testing.T) {
	store := newMemoryStateStore()
	ctx := context.Background()

	first := newTestService(store, 0)
	_, err := first.SetMembership(ctx, "alice", models.MembershipGold)
	require.NoError(t, err)
	_, err = first.Swipe(ctx, "alice", models.SwipeUp)
	require.NoError(t, err)

	second := newTestService(store, 0)
	v, err := second.View(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipGold, v.Membership)
	assert.Equal(t, 14, v.SuperLikesLeft)
	assert.Equal(t, 1, v.SwipeCount)
	assert.Len(t, v.Matches, 1)
	assert.Zero(t, v.Index)

	other, err := second.View(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipFree, other.Membership)
}

func TestServiceFailedSwipeIsNotPersisted(t *testing.T) {
	store := newMemoryStateStore()
	svc := newTestService(store, 0)

	_, err := svc.Undo(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNothingToUndo)
	assert.Zero(t, store.saves)
}

func TestServiceSaveErrorKeepsMemoryState(t *testing.T) {
	store := newMemoryStateStore()
	store.saveErr = errors.New("redis down")
	svc := newTestService(store, 1)
	ctx := context.Background()

	_, err := svc.Swipe(ctx, "alice", models.SwipeLeft)
	require.NoError(t, err)

	v, err := svc.View(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, v.SwipeCount)
}

func TestServiceLoadError(t *testing.T) {
	store := newMemoryStateStore()
	store.loadErr = errors.New("redis down")
	svc := newTestService(store, 0)

	_, err := svc.View(context.Background(), "alice")
	assert.ErrorIs(t, err, store.loadErr)
}

func TestServiceDiscardsCorruptState(t *testing.T) {
	store := newMemoryStateStore()
	store.data["alice"] = []byte("{not json")
	svc := newTestService(store, 0)

	v, err := svc.View(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, v.SwipeCount)
}

func TestServiceSavesInMutationOrder(t *testing.T) {
	store := newMemoryStateStore()
	entered := make(chan struct{})
	var once sync.Once
	store.beforeSave = func(string) {
		once.Do(func() {
			close(entered)
			time.Sleep(50 * time.Millisecond)
		})
	}
	svc := newTestService(store, 1)
	ctx := context.Background()

	first := make(chan error, 1)
	go func() {
		_, err := svc.Swipe(ctx, "alice", models.SwipeLeft)
		first <- err
	}()
	<-entered

	_, err := svc.Swipe(ctx, "alice", models.SwipeLeft)
	require.NoError(t, err)
	require.NoError(t, <-first)

	var st State
	require.NoError(t, json.Unmarshal(store.data["alice"], &st))
	assert.Equal(t, 2, st.SwipeCount)
	assert.Equal(t, 2, store.saves)
}

func TestServiceSlowLoadDoesNotBlockOtherProfiles(t *testing.T) {
	store := newMemoryStateStore()
	loading := make(chan struct{})
	release := make(chan struct{})
	store.beforeLoad = func(profile string) {
		if profile == "slow" {
			close(loading)
			<-release
		}
	}
	svc := newTestService(store, 0)
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() {
		_, err := svc.View(ctx, "slow")
		slow <- err
	}()
	<-loading

	fast := make(chan error, 1)
	go func() {
		_, err := svc.View(ctx, "fast")
		fast <- err
	}()

	select {
	case err := <-fast:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("view of another profile waited on a pending load")
	}

	close(release)
	require.NoError(t, <-slow)
}

func TestServiceConcurrentFirstAccessSharesDeck(t *testing.T) {
	// Each deck seeds its own generator; the shared test one is not goroutine safe.
	svc := NewService(testCharacters(5), newMemoryStateStore(), zap.NewNop())
	ctx := context.Background()

	decks := make([]*Deck, 8)
	var wg sync.WaitGroup
	for i := range decks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := svc.Deck(ctx, "alice")
			assert.NoError(t, err)
			decks[i] = d
		}(i)
	}
	wg.Wait()

	for _, d := range decks[1:] {
		assert.Same(t, decks[0], d)
	}
}

func TestServiceValidation(t *testing.T) {
	svc := newTestService(nil, 0)
	ctx := context.Background()

	_, err := svc.View(ctx, "")
	assert.ErrorIs(t, err, ErrEmptyProfile)

	_, err = svc.SetMembership(ctx, "alice", "diamond")
	assert.ErrorIs(t, err, ErrInvalidMembership)
}

func TestServiceMatchFlow(t *testing.T) {
	svc := newTestService(nil, 0)
	ctx := context.Background()

	res, err := svc.Swipe(ctx, "alice", models.SwipeRight)
	require.NoError(t, err)

	v, err := svc.DismissMatch(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, v.ShowMatch)
	assert.Equal(t, 1, v.UnseenMatches)

	v, err = svc.MarkMatchesSeen(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, v.UnseenMatches)

	matched, err := svc.Matches(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, res.Character.ID, matched[0].ID)

	v, err = svc.SetPreferences(ctx, "alice", models.Preferences{Personality: []string{"Playful", "Witty"}})
	require.NoError(t, err)
	require.NotNil(t, v.Current)
	assert.Equal(t, MaxCompatibility, v.Current.Compatibility)

	v, err = svc.CompleteOnboarding(ctx, "alice", true)
	require.NoError(t, err)
	assert.True(t, v.OnboardingComplete)

	v, err = svc.Reset(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, v.Index)
}
