package ledger

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"lukechampine.com/blake3"
)

// Database is a generic interface for a key-value store, allowing the account
// store to run on an in-memory backend in tests and LevelDB in the daemon.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Close()
}

// ErrNotFound is returned when an account key has no record in the store.
var ErrNotFound = errors.New("ledger: account not found")

// --- In-Memory DB (for testing) ---

type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	value, ok := db.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

func (db *MemDB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.data, string(key))
	return nil
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {}

// --- Persistent DB ---

// LevelDB is a persistent key-value store.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.db.Put(key, value, nil)
}

func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return value, err
}

func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.db.Delete(key, nil)
}

func (ldb *LevelDB) Close() {
	_ = ldb.db.Close()
}

// --- Account store ---

const (
	accountPrefix   = "acct/"
	checksumLen     = 32
	accountHeaderSz = 32 + 8 + 4
)

// AccountStore persists ledger accounts in a Database. Records are framed
// with a blake3 checksum that is verified on every read, so a torn write or
// on-disk corruption surfaces as an error instead of bad balances.
type AccountStore struct {
	db Database
}

func NewAccountStore(db Database) *AccountStore {
	return &AccountStore{db: db}
}

func accountKey(addr Address) []byte {
	return append([]byte(accountPrefix), addr[:]...)
}

func encodeAccount(acc *Account) []byte {
	buf := make([]byte, accountHeaderSz+len(acc.Data)+checksumLen)
	copy(buf[:32], acc.Owner[:])
	binary.LittleEndian.PutUint64(buf[32:40], acc.Lamports)
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(acc.Data)))
	copy(buf[accountHeaderSz:], acc.Data)
	sum := blake3.Sum256(buf[:accountHeaderSz+len(acc.Data)])
	copy(buf[accountHeaderSz+len(acc.Data):], sum[:])
	return buf
}

func decodeAccount(addr Address, raw []byte) (*Account, error) {
	if len(raw) < accountHeaderSz+checksumLen {
		return nil, fmt.Errorf("ledger: truncated record for %s", addr)
	}
	body := raw[:len(raw)-checksumLen]
	sum := blake3.Sum256(body)
	if !bytes.Equal(sum[:], raw[len(raw)-checksumLen:]) {
		return nil, fmt.Errorf("ledger: checksum mismatch for %s", addr)
	}
	dataLen := binary.LittleEndian.Uint32(body[40:44])
	if int(dataLen) != len(body)-accountHeaderSz {
		return nil, fmt.Errorf("ledger: inconsistent data length for %s", addr)
	}
	acc := &Account{Key: addr, Lamports: binary.LittleEndian.Uint64(body[32:40])}
	copy(acc.Owner[:], body[:32])
	acc.Data = append([]byte(nil), body[accountHeaderSz:]...)
	return acc, nil
}

// Put persists the account. Signer and Writable flags are per-invocation
// state and are not stored.
func (s *AccountStore) Put(acc *Account) error {
	if acc == nil {
		return errors.New("ledger: nil account")
	}
	return s.db.Put(accountKey(acc.Key), encodeAccount(acc))
}

// Get loads the account stored under addr, or ErrNotFound.
func (s *AccountStore) Get(addr Address) (*Account, error) {
	raw, err := s.db.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	return decodeAccount(addr, raw)
}

// Delete removes the account record entirely.
func (s *AccountStore) Delete(addr Address) error {
	return s.db.Delete(accountKey(addr))
}
