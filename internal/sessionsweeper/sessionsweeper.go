package sessionsweeper

import (
	"context"
	"time"

	"github.com/patric-chuzhbe/securevault/internal/logger"
)

type sessionKeeper interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) ([]string, error)
}

type stateDropper interface {
	Drop(sessionID string)
}

// SessionSweeper periodically purges expired sessions from the storage and
// drops the view state kept for them.
type SessionSweeper struct {
	db           sessionKeeper
	states       stateDropper
	interval     time.Duration
	errorChannel chan error
	now          func() time.Time
}

// New returns a sweeper that runs every interval once Run is called.
func New(
	db sessionKeeper,
	states stateDropper,
	interval time.Duration,
	errorChannelCapacity int,
) *SessionSweeper {
	return &SessionSweeper{
		db:           db,
		states:       states,
		interval:     interval,
		errorChannel: make(chan error, errorChannelCapacity),
		now:          time.Now,
	}
}

// ListenErrors hands every sweep failure to callback until Run stops.
func (s *SessionSweeper) ListenErrors(callback func(error)) {
	go func() {
		for err := range s.errorChannel {
			callback(err)
		}
	}()
}

// Sweep runs one purge and returns the number of removed sessions.
func (s *SessionSweeper) Sweep(ctx context.Context) (int, error) {
	expired, err := s.db.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, sessionID := range expired {
		s.states.Drop(sessionID)
	}

	return len(expired), nil
}

// Run starts the sweeping loop in a goroutine. It stops when ctx is done
// and then closes the error channel, which ends ListenErrors. Call it once.
func (s *SessionSweeper) Run(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		defer close(s.errorChannel)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := s.Sweep(ctx)
				if err != nil {
					select {
					case s.errorChannel <- err:
					default:
						logger.Log.Warnln("session sweeper error channel is full, dropping: ", err)
					}
					continue
				}
				if removed > 0 {
					logger.Log.Infof("removed %d expired sessions", removed)
				}
			}
		}
	}()
}
