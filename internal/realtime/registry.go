package realtime

import (
	"errors"
	"sort"
	"sync"

	"github.com/goevery/presence/internal/ierr"
	"go.uber.org/zap"
)

// TransitionFunc observes edge-triggered presence transitions: online is
// true when the user went from zero connections to one, false when the
// last connection went away. It is never invoked for connection churn
// that does not cross that boundary.
type TransitionFunc func(userId string, online bool)

type transition struct {
	userId string
	online bool
}

// Registry is the authoritative mapping from user identity to live
// connections, plus the reverse lookup used for disconnect cleanup.
// State is process-local; clients rebuild it by re-announcing after a
// restart.
type Registry struct {
	logger *zap.Logger

	mu                sync.RWMutex
	connections       map[string]*Connection
	usersByConnection map[string]string
	connectionsByUser map[string]map[string]struct{}

	onTransition TransitionFunc

	// Transitions are queued under mu in the order their edges were
	// computed and handed to the listener by a single drainer, so two
	// racing flaps for the same user can never reach the listener
	// inverted.
	pendingTransitions []transition
	dispatchMu         sync.Mutex
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:            logger,
		connections:       make(map[string]*Connection),
		usersByConnection: make(map[string]string),
		connectionsByUser: make(map[string]map[string]struct{}),
	}
}

// SetTransitionListener wires the presence aggregator in after both
// sides are constructed. Must be called before the first connection is
// registered.
func (r *Registry) SetTransitionListener(fn TransitionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onTransition = fn
}

func (r *Registry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.Id] = conn

	r.logger.Debug("connection registered",
		zap.String("connectionId", conn.Id))
}

// Announce binds a connection to a user identity. Idempotent for the
// same pair; rebinding an announced connection to a different user is a
// caller bug.
func (r *Registry) Announce(connectionId string, userId string) error {
	if userId == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("userId cannot be empty"))
	}

	r.mu.Lock()

	conn, ok := r.connections[connectionId]
	if !ok {
		r.mu.Unlock()

		return ierr.New(ierr.ErrorCodeNotFound, errors.New("unknown connection: "+connectionId))
	}

	if bound, ok := r.usersByConnection[connectionId]; ok {
		r.mu.Unlock()

		if bound == userId {
			return nil
		}

		return ierr.New(ierr.ErrorCodeFailedPrecondition,
			errors.New("connection is already announced for another user"))
	}

	r.usersByConnection[connectionId] = userId

	set, ok := r.connectionsByUser[userId]
	if !ok {
		set = make(map[string]struct{})
		r.connectionsByUser[userId] = set
	}

	wentOnline := len(set) == 0
	set[connectionId] = struct{}{}
	conn.setUserId(userId)

	if wentOnline {
		r.pendingTransitions = append(r.pendingTransitions, transition{userId, true})
	}
	r.mu.Unlock()

	r.logger.Debug("connection announced",
		zap.String("connectionId", connectionId),
		zap.String("userId", userId))

	if wentOnline {
		r.dispatchTransitions()
	}

	return nil
}

// Disconnect removes a connection and its user binding. Unknown
// connection ids are a no-op: sockets may close after their entry was
// already cleaned up by another path.
func (r *Registry) Disconnect(connectionId string) {
	r.mu.Lock()

	conn, ok := r.connections[connectionId]
	if !ok {
		r.mu.Unlock()

		return
	}

	delete(r.connections, connectionId)

	userId, announced := r.usersByConnection[connectionId]
	wentOffline := false
	if announced {
		delete(r.usersByConnection, connectionId)

		set := r.connectionsByUser[userId]
		delete(set, connectionId)
		if len(set) == 0 {
			delete(r.connectionsByUser, userId)
			wentOffline = true
		}
	}

	if wentOffline {
		r.pendingTransitions = append(r.pendingTransitions, transition{userId, false})
	}
	r.mu.Unlock()

	// Send stays open: a concurrent fan-out may still be pushing into
	// it. The write pump observes Done instead.
	conn.Close()

	r.logger.Debug("connection removed",
		zap.String("connectionId", connectionId),
		zap.String("userId", userId))

	if wentOffline {
		r.dispatchTransitions()
	}
}

// dispatchTransitions drains the queue in FIFO order. Only one drainer
// runs at a time; a caller that loses the TryLock leaves its item to
// the active drainer. The listener is invoked with no locks held since
// it re-enters the registry through the router.
func (r *Registry) dispatchTransitions() {
	for {
		if !r.dispatchMu.TryLock() {
			return
		}

		for {
			r.mu.Lock()
			if len(r.pendingTransitions) == 0 {
				r.mu.Unlock()

				break
			}

			next := r.pendingTransitions[0]
			r.pendingTransitions = r.pendingTransitions[1:]
			fn := r.onTransition
			r.mu.Unlock()

			if fn != nil {
				fn(next.userId, next.online)
			}
		}

		r.dispatchMu.Unlock()

		// An item enqueued between the empty check and the unlock
		// belongs to a caller whose TryLock failed; recheck so it is
		// not stranded.
		r.mu.Lock()
		again := len(r.pendingTransitions) > 0
		r.mu.Unlock()

		if !again {
			return
		}
	}
}

func (r *Registry) IsOnline(userId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connectionsByUser[userId]) > 0
}

func (r *Registry) OnlineUserIds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userIds := make([]string, 0, len(r.connectionsByUser))
	for userId := range r.connectionsByUser {
		userIds = append(userIds, userId)
	}

	sort.Strings(userIds)

	return userIds
}

// ConnectionsFor returns the live connections announced for a user. An
// offline user yields an empty slice, not an error.
func (r *Registry) ConnectionsFor(userId string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectionIds := r.connectionsByUser[userId]

	connections := make([]*Connection, 0, len(connectionIds))
	for connectionId := range connectionIds {
		if conn, ok := r.connections[connectionId]; ok {
			connections = append(connections, conn)
		}
	}

	return connections
}

func (r *Registry) Connection(connectionId string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connectionId]

	return conn, ok
}

func (r *Registry) AllConnections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}

	return connections
}
