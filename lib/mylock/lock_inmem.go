package mylock

import (
	"context"
	"sync"
)

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// InMemoryLocker serialises callers within one process.
type InMemoryLocker struct {
	sync.Mutex
	locks map[string]*keyedLock
}

func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{
		locks: map[string]*keyedLock{},
	}
}

func (l *InMemoryLocker) Lock(c context.Context, key string) (func(), error) {
	l.Mutex.Lock()
	kl, found := l.locks[key]
	if !found {
		kl = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-c.Done():
		l.forget(key, kl)
		return nil, c.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.ch
			l.forget(key, kl)
		})
	}, nil
}

func (l *InMemoryLocker) forget(key string, kl *keyedLock) {
	l.Mutex.Lock()
	defer l.Unlock()

	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *InMemoryLocker) size() int {
	l.Mutex.Lock()
	defer l.Unlock()
	return len(l.locks)
}
