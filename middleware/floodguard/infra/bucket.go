package infra

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// BucketStore é um token bucket por chave (x/time/rate) com cache e limpeza
// sob demanda. Ele não participa da decisão de flood: serve para proteger
// superfícies auxiliares (ex: a API administrativa) de abuso simples.
type BucketStore struct {
	mu      sync.Mutex
	entries map[string]*bucketEntry

	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type bucketEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

type BucketOption func(*BucketStore)

func WithBucketIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func NewBucketStore(rps float64, burst int, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		entries: make(map[string]*bucketEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow consome um token do bucket da chave, criando-o na primeira vez.
func (s *BucketStore) Allow(key string) bool {
	now := time.Now()

	s.mu.Lock()
	ent, ok := s.entries[key]
	if !ok {
		ent = &bucketEntry{lim: rate.NewLimiter(s.rps, s.burst)}
		s.entries[key] = ent
	}
	ent.lastSeen = now
	lim := ent.lim
	s.mu.Unlock()

	return lim.Allow()
}

// Cleanup descarta buckets sem uso há mais que o idleTTL.
func (s *BucketStore) Cleanup(now time.Time) {
	cutoff := now.Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(s.entries, k)
		}
	}
}
