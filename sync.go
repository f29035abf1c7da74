/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"sync"
	"time"
)

// nextWatermark returns a watermark strictly greater than the previous one.
// Wall-clock milliseconds when the clock has moved, last+1 when it has not,
// so back-to-back mutations within the same millisecond still order.
func nextWatermark(last int64) int64 {
	mark := time.Now().UnixMilli()
	if mark <= last {
		mark = last + 1
	}
	return mark
}

// notifier fans each room's new watermark out to subscribed watchers. Sends
// never block: a watcher that cannot keep up simply misses intermediate marks
// and catches up on its next poll.
type notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan int64]struct{}
}

func newNotifier() *notifier {
	return &notifier{
		subs: make(map[string]map[chan int64]struct{}),
	}
}

// subscribe registers a watcher for one room. The returned cancel func must be
// called when the watcher disconnects.
func (n *notifier) subscribe(roomID string) (<-chan int64, func()) {
	ch := make(chan int64, 4)

	n.mu.Lock()
	if n.subs[roomID] == nil {
		n.subs[roomID] = make(map[chan int64]struct{})
	}
	n.subs[roomID][ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if set, ok := n.subs[roomID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(n.subs, roomID)
			}
		}
		n.mu.Unlock()
	}

	return ch, cancel
}

func (n *notifier) notify(roomID string, mark int64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs[roomID] {
		select {
		case ch <- mark:
		default:
		}
	}
}

// closeRoom drops every watcher of a deleted room.
func (n *notifier) closeRoom(roomID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for ch := range n.subs[roomID] {
		close(ch)
	}
	delete(n.subs, roomID)
}

// Watch subscribes to a room's watermark pushes.
func (s *RoomService) Watch(roomID string) (<-chan int64, func()) {
	return s.notes.subscribe(roomID)
}

// reaperLoop periodically removes rooms idle longer than the session timeout
// and, from waiting rooms only, players idle longer than the player timeout.
func (s *RoomService) reaperLoop() {
	interval := s.cfg.sessionTimeout / 2
	if interval <= 0 {
		interval = s.cfg.playerTimeout / 2
	}

	ticker := time.NewTicker(interval)
	for range ticker.C {
		s.sweep(time.Now())
	}
}

func (s *RoomService) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := s.store.load()
	changed := false

	for id, room := range rooms {
		if s.cfg.sessionTimeout > 0 {
			last := time.UnixMilli(room.LastActivity)
			if last.Before(now.Add(-s.cfg.sessionTimeout)) {
				delete(rooms, id)
				changed = true
				logf(s.cfg, "GAMES: Reaped idle %s room %s", room.Game, id)
				s.notes.closeRoom(id)
				continue
			}
		}

		if s.cfg.playerTimeout <= 0 || room.Status != StatusWaiting {
			continue
		}

		cutoff := now.Add(-s.cfg.playerTimeout)
		kicked := false
		for i := 0; i < len(room.Players); {
			p := room.Players[i]
			if p.LastAction.After(cutoff) {
				i++
				continue
			}

			wasHost := p.IsHost
			room.Players = append(room.Players[:i], room.Players[i+1:]...)
			if wasHost && len(room.Players) > 0 {
				room.Players[0].IsHost = true
				room.HostID = room.Players[0].ID
			}
			room.removeFromTeams(p.ID)
			room.adjustAfterRemoval(i)
			kicked = true
			logf(s.cfg, "GAMES: Kicked idle player %q from %s room %s", p.Name, room.Game, id)
		}

		if !kicked {
			continue
		}
		changed = true

		if len(room.Players) == 0 {
			delete(rooms, id)
			s.notes.closeRoom(id)
			continue
		}

		room.LastActivity = nextWatermark(room.LastActivity)
		s.notes.notify(id, room.LastActivity)
	}

	if changed {
		if err := s.store.save(rooms); err != nil {
			logf(s.cfg, "STORE: Reaper save failed: %v", err)
		}
	}
}
