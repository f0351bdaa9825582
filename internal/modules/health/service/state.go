package service

import (
	"sync/atomic"
	"time"
)

// State — атомарные флаги живости движка для health-эндпоинтов.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected  atomic.Bool
	lastTickUnix atomic.Int64 // unix seconds
	openCount    atomic.Int64
	haltedPairs  atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) LastTick() time.Time {
	u := s.lastTickUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) SetOpenCount(n int)   { s.openCount.Store(int64(n)) }
func (s *State) OpenCount() int       { return int(s.openCount.Load()) }
func (s *State) SetHaltedPairs(n int) { s.haltedPairs.Store(int64(n)) }
func (s *State) HaltedPairs() int     { return int(s.haltedPairs.Load()) }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
