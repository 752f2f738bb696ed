// Package wallet implements the wallet ledger (C2) and fee treasury (C3).
//
// Wallets are shared across markets: a user's balance in asset X may be
// touched by any market that trades X. The concurrency design (§5) requires
// fine-grained locks keyed on (user_id, asset), acquired in a deterministic
// global order to prevent deadlock when a command needs more than one key.
// KeyLocker is that primitive, grounded on the map-plus-mutex session
// tracking in the teacher's internal/net/server.go (clientSessions /
// clientSessionsLock), generalized from a single coarse lock to one mutex
// per key.
package wallet

import (
	"sort"
	"sync"

	"matchrs/internal/domain"
)

// KeyLocker hands out per-(user,asset) mutexes, created lazily and never
// removed (wallets are long-lived for the process's life).
type KeyLocker struct {
	mu    sync.Mutex
	locks map[domain.WalletKey]*sync.Mutex
}

// NewKeyLocker returns an empty locker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[domain.WalletKey]*sync.Mutex)}
}

func (kl *KeyLocker) lockFor(key domain.WalletKey) *sync.Mutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	m, ok := kl.locks[key]
	if !ok {
		m = &sync.Mutex{}
		kl.locks[key] = m
	}
	return m
}

// LockSet is a held group of per-key locks, released together via Unlock.
type LockSet struct {
	locks []*sync.Mutex
}

// Lock acquires the locks for the given keys in deterministic
// lexicographic order (duplicates collapsed), preventing deadlock between
// commands that need overlapping key sets.
func (kl *KeyLocker) Lock(keys ...domain.WalletKey) *LockSet {
	unique := dedupe(keys)
	sort.Slice(unique, func(i, j int) bool { return unique[i].Less(unique[j]) })

	ls := &LockSet{locks: make([]*sync.Mutex, 0, len(unique))}
	for _, k := range unique {
		m := kl.lockFor(k)
		m.Lock()
		ls.locks = append(ls.locks, m)
	}
	return ls
}

// Unlock releases every lock held by the set, in reverse acquisition order.
func (ls *LockSet) Unlock() {
	for i := len(ls.locks) - 1; i >= 0; i-- {
		ls.locks[i].Unlock()
	}
}

func dedupe(keys []domain.WalletKey) []domain.WalletKey {
	seen := make(map[domain.WalletKey]struct{}, len(keys))
	out := make([]domain.WalletKey, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
