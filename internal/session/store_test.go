package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateMintsNewSession(t *testing.T) {
	s := New(30 * time.Minute)
	now := time.Now()

	rec, created := s.GetOrCreate("", now)
	require.True(t, created)
	assert.Len(t, rec.ID, 32)

	for _, c := range rec.ID {
		assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'))
	}
}

func TestGetOrCreateRefreshesExisting(t *testing.T) {
	s := New(30 * time.Minute)
	now := time.Now()

	rec, created := s.GetOrCreate("", now)
	require.True(t, created)

	later := now.Add(10 * time.Minute)
	rec2, created2 := s.GetOrCreate(rec.ID, later)
	require.False(t, created2)
	assert.Equal(t, rec.ID, rec2.ID)
	assert.Equal(t, later.Add(30*time.Minute), rec2.Expires)
}

func TestGetOrCreateExpiredMintsNew(t *testing.T) {
	s := New(1 * time.Minute)
	now := time.Now()

	rec, _ := s.GetOrCreate("", now)

	later := now.Add(2 * time.Minute)
	rec2, created2 := s.GetOrCreate(rec.ID, later)
	require.True(t, created2)
	assert.NotEqual(t, rec.ID, rec2.ID)
}

func TestLookupExpiredTreatedAsAbsent(t *testing.T) {
	s := New(1 * time.Minute)
	now := time.Now()

	rec, _ := s.GetOrCreate("", now)

	later := now.Add(2 * time.Minute)
	assert.Nil(t, s.Lookup(rec.ID, later))
}

func TestUniqueIDsWithinLifetime(t *testing.T) {
	s := New(30 * time.Minute)
	now := time.Now()

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		rec, created := s.GetOrCreate("", now)
		require.True(t, created)
		assert.False(t, seen[rec.ID], "duplicate session ID minted")
		seen[rec.ID] = true
	}
}

func TestRecordSetGet(t *testing.T) {
	r := &Record{}
	r.Set("a", "1")
	r.Set("b", "2")
	r.Set("a", "3")

	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", v)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRecordSetCeiling(t *testing.T) {
	r := &Record{}
	for i := 0; i < 20; i++ {
		r.Set(string(rune('a'+i)), "v")
	}

	assert.Len(t, r.keys, 16)
}

func TestBucketChainingHandlesCollisions(t *testing.T) {
	s := New(30 * time.Minute)
	now := time.Now()

	// Force many sessions into the small (1024) bucket space; some will
	// collide and must be findable via the chain.
	ids := make([]string, 0, 2000)
	for i := 0; i < 2000; i++ {
		rec, _ := s.GetOrCreate("", now)
		ids = append(ids, rec.ID)
	}

	for _, id := range ids {
		assert.NotNil(t, s.Lookup(id, now))
	}
}
