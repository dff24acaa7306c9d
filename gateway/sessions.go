package gateway

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/agentgate/core"
	"github.com/hupe1980/agentgate/logging"
)

// SessionCreator is the slice of core.Runner the SessionStore needs.
type SessionCreator interface {
	CreateSession(ctx context.Context, appName, userID string) (*core.Session, error)
}

// SessionStoreOptions configures a SessionStore.
type SessionStoreOptions struct {
	Logger logging.Logger
}

// SessionStore is the sole authority mapping a UserID to its SessionHandle.
// Entries are only ever added. Creation is serialized per user; different
// users never wait on each other's runtime calls.
type SessionStore struct {
	creator SessionCreator
	appName string
	logger  logging.Logger

	mu      sync.RWMutex
	handles map[UserID]SessionHandle
	group   singleflight.Group
}

// NewSessionStore creates an empty store creating sessions under appName.
func NewSessionStore(creator SessionCreator, appName string, optFns ...func(o *SessionStoreOptions)) *SessionStore {
	opts := SessionStoreOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SessionStore{
		creator: creator,
		appName: appName,
		logger:  opts.Logger,
		handles: make(map[UserID]SessionHandle),
	}
}

// Resolve returns the handle for user, creating a session on first use.
// Callers racing on the same user share one creation. A caller whose ctx
// ends stops waiting, but the shared creation still completes and is recorded.
// Creation errors are returned and not cached.
func (s *SessionStore) Resolve(ctx context.Context, user UserID) (SessionHandle, error) {
	if h, ok := s.Lookup(user); ok {
		return h, nil
	}

	ch := s.group.DoChan(string(user), func() (any, error) {
		if h, ok := s.Lookup(user); ok {
			return h, nil
		}
		sess, err := s.creator.CreateSession(context.WithoutCancel(ctx), s.appName, string(user))
		if err != nil {
			return SessionHandle(""), fmt.Errorf("create session for %s: %w", user, err)
		}
		h := SessionHandle(sess.ID)
		s.mu.Lock()
		s.handles[user] = h
		s.mu.Unlock()
		s.logger.Info("session created", "user_id", string(user), "session_id", sess.ID)
		return h, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(SessionHandle), nil
	}
}

// Lookup returns the handle for user without creating one.
func (s *SessionStore) Lookup(user UserID) (SessionHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[user]
	return h, ok
}

// Len returns the number of users with a session.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handles)
}
