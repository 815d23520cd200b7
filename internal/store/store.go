package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
)

var ErrTrackNotFound = fmt.Errorf("track not found")

// Track is the persisted record of one generation job.
type Track struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Seconds    int       `json:"seconds"`
	SampleRate int       `json:"sample_rate"`
	Samples    int       `json:"samples"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store persists finished tracks and their audio payloads in an embedded
// badger database. Metadata lives under track: keys, WAV payloads under
// audio: keys.
type Store struct {
	db *badger.DB
}

// Open creates the data directory if needed and opens the database.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(path, "badger"))
	opts.Logger = nil // badger's own logging is too chatty for a service log

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open track database: %w", err)
	}
	return &Store{db: db}, nil
}

func trackKey(id string) []byte { return []byte("track:" + id) }
func audioKey(id string) []byte { return []byte("audio:" + id) }

// Put stores or replaces a track record.
func (s *Store) Put(track *Track) error {
	data, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("marshal track: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(trackKey(track.ID), data)
	})
}

// Get returns a track record by ID.
func (s *Store) Get(id string) (*Track, error) {
	var track Track
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(trackKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &track)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return &track, nil
}

// PutAudio stores the encoded audio payload for a track.
func (s *Store) PutAudio(id string, wav []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(audioKey(id), wav)
	})
}

// GetAudio returns the encoded audio payload for a track.
func (s *Store) GetAudio(id string) ([]byte, error) {
	var wav []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(audioKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			wav = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get audio: %w", err)
	}
	return wav, nil
}

// List returns up to limit track records, most recent first.
func (s *Store) List(limit int) ([]*Track, error) {
	var tracks []*Track
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("track:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var track Track
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &track)
			})
			if err != nil {
				return err
			}
			tracks = append(tracks, &track)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}

	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].CreatedAt.After(tracks[j].CreatedAt)
	})
	if limit > 0 && len(tracks) > limit {
		tracks = tracks[:limit]
	}
	return tracks, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
