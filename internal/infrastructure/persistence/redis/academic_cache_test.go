package redis

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malla-ucn/malla-estudiante/internal/domain/academic"
	"github.com/malla-ucn/malla-estudiante/internal/testutil"
)

// memoryStore is a Store backed by a map.
type memoryStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	failGet error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Get(_ context.Context, key string, dest any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return m.failGet
	}
	raw, ok := m.data[key]
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryStore) DeleteByPattern(_ context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
		}
	}
	return nil
}

func newCached(t *testing.T) (*CachedSource, *testutil.FakeSource, *memoryStore) {
	t.Helper()
	upstream := testutil.NewFakeSource()
	store := newMemoryStore()
	return NewCachedSource(upstream, store, NewKeyer("test-secret"), DefaultCacheTTLs(), nil), upstream, store
}

func TestCachedSource_HistoryReadThrough(t *testing.T) {
	ctx := context.Background()
	cached, upstream, store := newCached(t)

	first, err := cached.FetchAttemptHistory(ctx, testutil.TestRut, testutil.TestProgram)
	require.NoError(t, err)
	second, err := cached.FetchAttemptHistory(ctx, testutil.TestRut, testutil.TestProgram)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, upstream.CallCount("FetchAttemptHistory"))

	key := NewKeyer("test-secret").HistoryKey(testutil.TestRut, testutil.TestProgram)
	assert.Equal(t, 5*time.Minute, store.ttls[key])
	assert.NotContains(t, key, testutil.TestRut, "raw rut must not appear in keys")
}

func TestCachedSource_EmptyResultsAreNotCached(t *testing.T) {
	ctx := context.Background()
	cached, upstream, store := newCached(t)

	for range 2 {
		got, err := cached.FetchAttemptHistory(ctx, "99999999-9", testutil.TestProgram)
		require.NoError(t, err)
		assert.Empty(t, got)
	}
	assert.Equal(t, 2, upstream.CallCount("FetchAttemptHistory"))
	assert.Empty(t, store.data)
}

func TestCachedSource_CurriculaKeyedByRefList(t *testing.T) {
	ctx := context.Background()
	cached, upstream, store := newCached(t)
	refs := []academic.CatalogRef{{Program: testutil.TestProgram, Catalog: testutil.TestCatalog}}

	_, err := cached.FetchCurricula(ctx, refs)
	require.NoError(t, err)
	got, err := cached.FetchCurricula(ctx, refs)
	require.NoError(t, err)

	assert.Len(t, got, len(testutil.Curriculum()))
	assert.Equal(t, 1, upstream.CallCount("FetchCurricula"))
	assert.Contains(t, store.data, PrefixCurriculum+"8606-202410")
	assert.Equal(t, 12*time.Hour, store.ttls[PrefixCurriculum+"8606-202410"])
}

func TestCachedSource_StoreFailureFallsThrough(t *testing.T) {
	ctx := context.Background()
	cached, upstream, store := newCached(t)
	store.failGet = errors.New("connection refused")

	got, err := cached.FetchCurriculum(ctx, academic.CatalogRef{Program: testutil.TestProgram, Catalog: testutil.TestCatalog})
	require.NoError(t, err)
	assert.NotEmpty(t, got)
	assert.Equal(t, 1, upstream.CallCount("FetchCurriculum"))
}

func TestCachedSource_UpstreamErrorPropagates(t *testing.T) {
	cached, upstream, _ := newCached(t)
	upstream.Err = errors.New("boom")

	_, err := cached.FetchEnrolledCourses(context.Background(), testutil.TestRut)
	assert.EqualError(t, err, "boom")
}

func TestCachedSource_InvalidateStudent(t *testing.T) {
	ctx := context.Background()
	cached, upstream, store := newCached(t)
	upstream.Enrolled[testutil.TestRut] = []academic.EnrolledCourse{{Code: "INF102", Status: academic.StatusInProgress}}

	_, err := cached.FetchAttemptHistory(ctx, testutil.TestRut, testutil.TestProgram)
	require.NoError(t, err)
	_, err = cached.FetchEnrolledCourses(ctx, testutil.TestRut)
	require.NoError(t, err)
	_, err = cached.FetchCurriculum(ctx, academic.CatalogRef{Program: testutil.TestProgram, Catalog: testutil.TestCatalog})
	require.NoError(t, err)
	require.Len(t, store.data, 3)

	require.NoError(t, cached.InvalidateStudent(ctx, testutil.TestRut))

	require.Len(t, store.data, 1)
	for k := range store.data {
		assert.True(t, strings.HasPrefix(k, PrefixCurriculum))
	}
}

func TestKeyer_Digest(t *testing.T) {
	a := NewKeyer("one")
	b := NewKeyer("two")

	assert.Len(t, a.Digest("12345678-9"), 32)
	assert.Equal(t, a.Digest("12345678-9"), a.Digest("12345678-9"))
	assert.NotEqual(t, a.Digest("12345678-9"), b.Digest("12345678-9"))
	assert.NotPanics(t, func() { NewKeyer(strings.Repeat("x", 100)).Digest("1") })
}
