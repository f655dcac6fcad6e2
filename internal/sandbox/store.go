package sandbox

import (
	"encoding/json"
	"errors"
	"sync"
)

// Buckets used by the gateway.
const (
	BucketPayments    = "payments"
	BucketTypes       = "types"
	BucketPaypages    = "paypages"
	BucketIdempotency = "idempotency"
	BucketProcessing  = "processing"
)

var buckets = []string{BucketPayments, BucketTypes, BucketPaypages, BucketIdempotency, BucketProcessing}

// ErrNotFound is returned when a key does not exist in its bucket.
var ErrNotFound = errors.New("record not found")

// Store persists the gateway's records as JSON values in named buckets.
type Store interface {
	Get(bucket, key string, v any) error
	Put(bucket, key string, v any) error
	// NextSequence returns the next value of the bucket's counter, starting at 1.
	NextSequence(bucket string) (uint64, error)
	Close() error
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	data     map[string]map[string][]byte
	counters map[string]uint64
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		data:     make(map[string]map[string][]byte),
		counters: make(map[string]uint64),
	}
	for _, b := range buckets {
		s.data[b] = make(map[string][]byte)
	}
	return s
}

func (s *MemoryStore) Get(bucket, key string, v any) error {
	s.mu.Lock()
	raw, ok := s.data[bucket][key]
	s.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, v)
}

func (s *MemoryStore) Put(bucket, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[bucket] == nil {
		s.data[bucket] = make(map[string][]byte)
	}
	s.data[bucket][key] = raw
	return nil
}

func (s *MemoryStore) NextSequence(bucket string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[bucket]++
	return s.counters[bucket], nil
}

func (s *MemoryStore) Close() error { return nil }
