package service

import (
	"sync/atomic"
	"time"
)

// State - то, что торговый цикл сообщает наружу для проб и /healthz.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	credentials  atomic.Bool
	lastTickUnix atomic.Int64 // unix seconds
	mode         atomic.Value // string
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.mode.Store("")
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetCredentials(v bool) { s.credentials.Store(v) }
func (s *State) Credentials() bool     { return s.credentials.Load() }

func (s *State) SetMode(m string) { s.mode.Store(m) }
func (s *State) Mode() string     { return s.mode.Load().(string) }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
