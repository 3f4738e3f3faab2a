package storage

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type Reader interface {
	Get(key []byte) []byte
	Has(key []byte) bool
}

type Writer interface {
	Put(key, value []byte)
	Delete(key []byte)
}

type KV interface {
	Reader
	Writer
}

var _ KV = (*Store)(nil)

// Store is a leveldb database with a write overlay. Reads and writes must
// happen inside Transact or View; Transact makes every write of one
// operation visible atomically, or none of them. A read the database cannot
// serve panics, which Transact turns into a rollback.
type Store struct {
	db *leveldb.DB

	txMu    sync.Mutex
	pending map[string][]byte
	deleted map[string]struct{}
}

func New(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open leveldb at %s", path)
	}
	return newStore(db), nil
}

// NewMemory opens a store that lives only in memory.
func NewMemory() (*Store, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "open memory leveldb")
	}
	return newStore(db), nil
}

func newStore(db *leveldb.DB) *Store {
	return &Store{
		db:      db,
		pending: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

func (s *Store) Get(key []byte) []byte {
	k := string(key)
	if v, ok := s.pending[k]; ok {
		return v
	}
	if _, ok := s.deleted[k]; ok {
		return nil
	}
	v, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	if err != nil {
		panic(errors.Wrapf(err, "get %x", key))
	}
	return v
}

func (s *Store) Has(key []byte) bool {
	return s.Get(key) != nil
}

func (s *Store) Put(key, value []byte) {
	k := string(key)
	delete(s.deleted, k)
	v := make([]byte, len(value))
	copy(v, value)
	s.pending[k] = v
}

func (s *Store) Delete(key []byte) {
	k := string(key)
	delete(s.pending, k)
	s.deleted[k] = struct{}{}
}

// Keys returns the committed and pending keys under prefix, committed first.
func (s *Store) Keys(prefix []byte) [][]byte {
	var keys [][]byte
	seen := make(map[string]struct{})
	it := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	for it.Next() {
		k := string(it.Key())
		if _, ok := s.deleted[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, []byte(k))
	}
	it.Release()
	if err := it.Error(); err != nil {
		panic(errors.Wrapf(err, "iterate %x", prefix))
	}
	for k := range s.pending {
		if _, ok := seen[k]; ok {
			continue
		}
		if len(k) >= len(prefix) && k[:len(prefix)] == string(prefix) {
			keys = append(keys, []byte(k))
		}
	}
	return keys
}

// Transact runs fn with exclusive access to the store. Writes made by fn are
// committed in one batch when it returns nil and discarded when it returns an
// error or panics; a panic is re-raised after the discard.
func (s *Store) Transact(fn func() error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.rollback()
			panic(r)
		}
	}()

	if err := fn(); err != nil {
		s.rollback()
		return err
	}
	return s.commit()
}

// View runs fn with exclusive access to the store and discards any write it
// makes.
func (s *Store) View(fn func()) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	defer s.rollback()
	fn()
}

func (s *Store) commit() error {
	if len(s.pending) == 0 && len(s.deleted) == 0 {
		return nil
	}
	batch := new(leveldb.Batch)
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	for k, v := range s.pending {
		batch.Put([]byte(k), v)
	}
	s.rollback()
	if err := s.db.Write(batch, nil); err != nil {
		return errors.Wrap(err, "commit batch")
	}
	return nil
}

func (s *Store) rollback() {
	s.pending = make(map[string][]byte)
	s.deleted = make(map[string]struct{})
}

func (s *Store) Close() error {
	return s.db.Close()
}
