// Package database is the durable store behind a participant's wallet: claim
// secrets keyed by note identifier, consumption state for claimable notes and
// the last synced ledger height.
package database

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	bw6761fr "github.com/consensys/gnark-crypto/ecc/bw6-761/fr"

	"hashlock/internal/hashlock"
)

type DB struct {
	storage *leveldb.DB
}

var (
	secretPrefix = []byte("secret")
	notePrefix   = []byte("note")
	heightPrefix = []byte("syncedHeight")

	writeOptions = &opt.WriteOptions{NoWriteMerge: false, Sync: true}

	// ErrNoSecret is returned when no claim secret is stored for a note.
	ErrNoSecret = errors.New("no claim secret stored for note")
)

func New(path string) (*DB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet cannot be used without database %s", err.Error())
	}
	return &DB{storage: db}, nil
}

func (db *DB) Put(key, value []byte) error {
	return db.storage.Put(key, value, nil)
}

func (db *DB) Get(key []byte) ([]byte, error) {
	return db.storage.Get(key, nil)
}

func (db *DB) Delete(key []byte) error {
	return db.storage.Delete(key, nil)
}

func (db *DB) Close() error {
	return db.storage.Close()
}

// PutClaimSecret stores the preimage that opens a note.
//
// Schema
//
//	key: secretPrefix + noteID
//	value: SecretLen fixed-width field element encodings
func (db *DB) PutClaimSecret(noteID []byte, secret hashlock.Secret) error {
	value := make([]byte, 0, hashlock.SecretLen*bw6761fr.Bytes)
	for i := range secret {
		b := secret[i].Bytes()
		value = append(value, b[:]...)
	}
	return db.Put(append(secretPrefix, noteID...), value)
}

// FetchClaimSecret returns the stored preimage for a note.
func (db *DB) FetchClaimSecret(noteID []byte) (hashlock.Secret, error) {
	var secret hashlock.Secret
	value, err := db.Get(append(secretPrefix, noteID...))
	if err != nil {
		return secret, ErrNoSecret
	}
	if len(value) != hashlock.SecretLen*bw6761fr.Bytes {
		return secret, fmt.Errorf("corrupt secret record: %d bytes", len(value))
	}
	for i := range secret {
		secret[i].SetBytes(value[i*bw6761fr.Bytes : (i+1)*bw6761fr.Bytes])
	}
	return secret, nil
}

// RemoveClaimSecret drops the preimage once the note has been consumed.
func (db *DB) RemoveClaimSecret(noteID []byte) error {
	b := new(leveldb.Batch)
	b.Delete(append(secretPrefix, noteID...))
	return db.storage.Write(b, writeOptions)
}

// PutNoteRecord tracks a claimable note.
//
// Schema
//
//	key: notePrefix + noteID
//	value: timestamp(unix) + consumed flag + amount
func (db *DB) PutNoteRecord(noteID []byte, consumed bool, amount uint64) error {
	// 8 (timestamp) + 1 (consumed) + 8 (amount)
	value := make([]byte, 17)
	binary.LittleEndian.PutUint64(value[0:8], uint64(time.Now().Unix()))
	if consumed {
		value[8] = 1
	}
	binary.LittleEndian.PutUint64(value[9:17], amount)
	return db.Put(append(notePrefix, noteID...), value)
}

// MarkConsumed flips the consumed flag for a tracked note.
func (db *DB) MarkConsumed(noteID []byte) error {
	key := append(notePrefix, noteID...)
	value, err := db.Get(key)
	if err != nil {
		return err
	}
	if len(value) != 17 {
		return fmt.Errorf("corrupt note record: %d bytes", len(value))
	}
	value[8] = 1
	return db.Put(key, value)
}

// ClaimableBalance sums the amounts of all tracked, unconsumed notes.
func (db *DB) ClaimableBalance() (uint64, error) {
	var total uint64
	iter := db.storage.NewIterator(util.BytesPrefix(notePrefix), nil)
	defer iter.Release()
	for iter.Next() {
		value := iter.Value()
		if len(value) != 17 {
			return 0, fmt.Errorf("corrupt note record: %d bytes", len(value))
		}
		if value[8] == 0 {
			total += binary.LittleEndian.Uint64(value[9:17])
		}
	}
	return total, iter.Error()
}

// ClaimableNoteIDs lists identifiers of tracked, unconsumed notes.
func (db *DB) ClaimableNoteIDs() ([][]byte, error) {
	var ids [][]byte
	iter := db.storage.NewIterator(util.BytesPrefix(notePrefix), nil)
	defer iter.Release()
	for iter.Next() {
		value := iter.Value()
		if len(value) == 17 && value[8] == 0 {
			id := make([]byte, len(iter.Key())-len(notePrefix))
			copy(id, iter.Key()[len(notePrefix):])
			ids = append(ids, id)
		}
	}
	return ids, iter.Error()
}

// GetSyncedHeight returns the last ledger height this wallet reconciled with.
func (db *DB) GetSyncedHeight() (uint64, error) {
	heightBytes, err := db.storage.Get(heightPrefix, nil)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(heightBytes), nil
}

// UpdateSyncedHeight records a reconciled ledger height.
func (db *DB) UpdateSyncedHeight(newHeight uint64) error {
	heightBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(heightBytes, newHeight)
	return db.Put(heightPrefix, heightBytes)
}
