package storage

import (
	"errors"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactCommit(t *testing.T) {
	s, err := NewMemory()
	require.Nil(t, err)
	defer s.Close()

	err = s.Transact(func() error {
		s.Put([]byte("a"), []byte("1"))
		s.Put([]byte("b"), []byte("2"))
		assert.Equal(t, []byte("1"), s.Get([]byte("a")))
		return nil
	})
	require.Nil(t, err)

	s.View(func() {
		assert.Equal(t, []byte("1"), s.Get([]byte("a")))
		assert.True(t, s.Has([]byte("b")))
		assert.False(t, s.Has([]byte("c")))
	})
}

func TestTransactRollbackOnError(t *testing.T) {
	s, err := NewMemory()
	require.Nil(t, err)
	defer s.Close()

	require.Nil(t, s.Transact(func() error {
		s.Put([]byte("a"), []byte("1"))
		return nil
	}))

	boom := errors.New("boom")
	err = s.Transact(func() error {
		s.Put([]byte("a"), []byte("2"))
		s.Delete([]byte("a"))
		s.Put([]byte("b"), []byte("3"))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s.View(func() {
		assert.Equal(t, []byte("1"), s.Get([]byte("a")))
		assert.Nil(t, s.Get([]byte("b")))
	})
}

func TestTransactRollbackOnPanic(t *testing.T) {
	s, err := NewMemory()
	require.Nil(t, err)
	defer s.Close()

	assert.Panics(t, func() {
		_ = s.Transact(func() error {
			s.Put([]byte("a"), []byte("1"))
			panic("exhausted")
		})
	})

	s.View(func() {
		assert.Nil(t, s.Get([]byte("a")))
	})

	// the store stays usable after a panic
	require.Nil(t, s.Transact(func() error {
		s.Put([]byte("a"), []byte("2"))
		return nil
	}))
	s.View(func() {
		assert.Equal(t, []byte("2"), s.Get([]byte("a")))
	})
}

func TestDeleteThenPut(t *testing.T) {
	s, err := NewMemory()
	require.Nil(t, err)
	defer s.Close()

	require.Nil(t, s.Transact(func() error {
		s.Put([]byte("k"), []byte("v1"))
		return nil
	}))
	require.Nil(t, s.Transact(func() error {
		s.Delete([]byte("k"))
		assert.False(t, s.Has([]byte("k")))
		s.Put([]byte("k"), []byte("v2"))
		return nil
	}))
	s.View(func() {
		assert.Equal(t, []byte("v2"), s.Get([]byte("k")))
	})
}

func TestKeys(t *testing.T) {
	s, err := NewMemory()
	require.Nil(t, err)
	defer s.Close()

	require.Nil(t, s.Transact(func() error {
		s.Put([]byte("p/1"), []byte("x"))
		s.Put([]byte("p/2"), []byte("x"))
		s.Put([]byte("q/1"), []byte("x"))
		return nil
	}))

	s.View(func() {
		s.Delete([]byte("p/1"))
		s.Put([]byte("p/3"), []byte("x"))
		var got []string
		for _, k := range s.Keys([]byte("p/")) {
			got = append(got, string(k))
		}
		sort.Strings(got)
		assert.Equal(t, []string{"p/2", "p/3"}, got)
	})
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "leveldb")

	s, err := New(path)
	require.Nil(t, err)
	require.Nil(t, s.Transact(func() error {
		s.Put([]byte("a"), []byte("1"))
		return nil
	}))
	require.Nil(t, s.Close())

	s, err = New(path)
	require.Nil(t, err)
	defer s.Close()
	s.View(func() {
		assert.Equal(t, []byte("1"), s.Get([]byte("a")))
	})
}

func TestReadFailurePanics(t *testing.T) {
	s, err := NewMemory()
	require.Nil(t, err)

	require.Nil(t, s.Transact(func() error {
		s.Put([]byte("a"), []byte("1"))
		return nil
	}))
	require.Nil(t, s.Close())

	assert.Panics(t, func() {
		_ = s.Transact(func() error {
			s.Put([]byte("b"), []byte("2"))
			s.Get([]byte("a"))
			return nil
		})
	})
	assert.Empty(t, s.pending)
	assert.Empty(t, s.deleted)

	assert.Panics(t, func() {
		s.View(func() {
			s.Keys([]byte("a"))
		})
	})
}

func TestGetMissingKey(t *testing.T) {
	s, err := NewMemory()
	require.Nil(t, err)
	defer s.Close()

	s.View(func() {
		assert.Nil(t, s.Get([]byte("missing")))
		assert.False(t, s.Has([]byte("missing")))
	})
}
