// internal/lobby/player.go
package lobby

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pvprelay/internal/protocol"
)

// Player is the mutable state of one connection. Once the player is in a
// lobby, its fields are only touched with that lobby's Mu held.
type Player struct {
	ID       uuid.UUID
	Username string
	ModHash  string
	Location string
	Ante     int

	IsReady bool
	// FirstReady marks the player that readied first this round and was sent
	// the speedrun acknowledgment.
	FirstReady bool
	Score      protocol.Score
	HandsLeft  int
	Skips      int
	Lives      int

	// lifeBlocked caps life loss at one per round.
	lifeBlocked bool

	// lobby is written only from the player's own dispatch path.
	lobby atomic.Pointer[Lobby]

	outbox chan protocol.Message

	evicted   chan struct{}
	evictOnce sync.Once
}

// NewPlayer creates a player with an outbound buffer of size outboxSize.
func NewPlayer(outboxSize int) *Player {
	if outboxSize < 1 {
		outboxSize = 1
	}
	return &Player{
		ID:       uuid.New(),
		Username: "Guest",
		outbox:   make(chan protocol.Message, outboxSize),
		evicted:  make(chan struct{}),
	}
}

// Lobby returns the lobby the player is in, or nil.
func (p *Player) Lobby() *Lobby {
	return p.lobby.Load()
}

func (p *Player) setLobby(l *Lobby) {
	p.lobby.Store(l)
}

// Outbox is drained by the connection's write pump.
func (p *Player) Outbox() <-chan protocol.Message {
	return p.outbox
}

// Evicted is closed when the player fell too far behind to be told a match
// outcome. The connection owner should close the connection.
func (p *Player) Evicted() <-chan struct{} {
	return p.evicted
}

// Send queues msg for delivery without blocking. If the outbox is full the
// message is dropped and logged; dropping a round or match outcome evicts
// the player instead.
func (p *Player) Send(msg protocol.Message) {
	select {
	case p.outbox <- msg:
	default:
		entry := log.WithFields(log.Fields{
			"player": p.ID,
			"action": msg.Tag(),
		})
		if !isOutcome(msg) {
			entry.Warn("outbox full, dropped message")
			return
		}
		entry.Warn("outbox full, evicting player")
		p.evictOnce.Do(func() { close(p.evicted) })
	}
}

func isOutcome(msg protocol.Message) bool {
	switch msg.(type) {
	case protocol.WinGame, protocol.LoseGame, protocol.EndPvP:
		return true
	}
	return false
}

// SendError delivers a user-facing warning.
func (p *Player) SendError(message string) {
	p.Send(protocol.Error{Message: message})
}

// LoseLife takes one life unless the player already lost one this round or
// has none left. It reports whether a life was taken.
func (p *Player) LoseLife() bool {
	if p.lifeBlocked || p.Lives <= 0 {
		return false
	}
	p.Lives--
	p.lifeBlocked = true
	p.Send(protocol.PlayerInfo{Lives: p.Lives})
	return true
}

// ResetBlocker allows the player to lose a life again.
func (p *Player) ResetBlocker() {
	p.lifeBlocked = false
}

// setLives is used when a match starts.
func (p *Player) setLives(n int) {
	p.Lives = n
	p.lifeBlocked = false
	p.Send(protocol.PlayerInfo{Lives: n})
}

// resetRound clears the per-round counters.
func (p *Player) resetRound(hands int) {
	p.IsReady = false
	p.Score = protocol.Score{}
	p.HandsLeft = hands
	p.lifeBlocked = false
}

// enemyInfo is what the opponent is told about p.
func (p *Player) enemyInfo() protocol.EnemyInfo {
	return protocol.EnemyInfo{
		Score:     p.Score,
		HandsLeft: p.HandsLeft,
		Skips:     p.Skips,
		Lives:     p.Lives,
	}
}
