// internal/lobby/lobby.go
package lobby

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pvprelay/internal/gamemode"
	"github.com/jason-s-yu/pvprelay/internal/protocol"
)

var (
	ErrLobbyNotFound = errors.New("lobby does not exist")
	ErrLobbyFull     = errors.New("lobby is full")
	ErrNotHost       = errors.New("only the host may do that")
	ErrNoOpponent    = errors.New("lobby has no opponent")
)

// Phase is the match state of a lobby.
type Phase int

const (
	// PhaseIdle: no match has been started, or it was stopped.
	PhaseIdle Phase = iota
	// PhaseAwaitingReady: a match is running and at most one player is ready.
	PhaseAwaitingReady
	// PhaseRoundInProgress: both players readied and the round is being played.
	PhaseRoundInProgress
	// PhaseMatchOver: a player ran out of lives.
	PhaseMatchOver
)

func (ph Phase) String() string {
	switch ph {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingReady:
		return "awaiting_ready"
	case PhaseRoundInProgress:
		return "round_in_progress"
	case PhaseMatchOver:
		return "match_over"
	}
	return "unknown"
}

// Lobby pairs a host and an optional guest under a code.
//
// Mu serializes every mutation of the lobby and of its members' Player state.
// Methods documented with "Assumes lock is held" must be called with Mu held;
// Join and Leave acquire it themselves.
type Lobby struct {
	Code     string
	Mode     gamemode.Mode
	Settings gamemode.Settings

	Mu sync.Mutex

	host    *Player
	guest   *Player
	options protocol.LobbyOptions
	phase   Phase
	rounds  int

	// closed is set once the last member leaves; a closed lobby rejects joins
	// even if a caller still holds a pointer to it.
	closed bool

	// onEmpty is called (without Mu held) once the lobby becomes empty.
	onEmpty func(code string)
}

func newLobby(code string, mode gamemode.Mode, settings gamemode.Settings, host *Player) *Lobby {
	return &Lobby{
		Code:     code,
		Mode:     mode,
		Settings: settings,
		host:     host,
		options:  protocol.LobbyOptions{},
	}
}

// Host returns the first slot. Assumes lock is held.
func (l *Lobby) Host() *Player { return l.host }

// Guest returns the second slot, or nil. Assumes lock is held.
func (l *Lobby) Guest() *Player { return l.guest }

// Phase returns the match state. Assumes lock is held.
func (l *Lobby) Phase() Phase { return l.phase }

// Rounds counts the rounds started in the current match. Assumes lock is held.
func (l *Lobby) Rounds() int { return l.rounds }

// IsHost reports whether p occupies the host slot. Assumes lock is held.
func (l *Lobby) IsHost(p *Player) bool {
	return p != nil && l.host == p
}

// Opponent returns the other member. Assumes lock is held.
func (l *Lobby) Opponent(p *Player) (*Player, bool) {
	switch p {
	case l.host:
		return l.guest, l.guest != nil
	case l.guest:
		return l.host, l.host != nil
	}
	return nil, false
}

// Join places p in the guest slot. Acquires lock.
func (l *Lobby) Join(p *Player) error {
	l.Mu.Lock()
	defer l.Mu.Unlock()

	if l.closed {
		return ErrLobbyNotFound
	}
	if l.host == p || l.guest == p {
		l.broadcastLobbyInfo()
		return nil
	}
	if l.guest != nil {
		return ErrLobbyFull
	}

	l.guest = p
	p.setLobby(l)
	log.WithFields(log.Fields{"lobby": l.Code, "player": p.ID}).Info("player joined lobby")

	p.Send(protocol.JoinedLobby{Code: l.Code, Type: l.Mode})
	if len(l.options) > 0 {
		p.Send(l.Options())
	}
	l.broadcastLobbyInfo()
	return nil
}

// Leave vacates p's slot. A guest left alone is promoted to host; the
// remaining member is told about the departure and any running match is
// stopped. An emptied lobby is closed and handed to onEmpty. Acquires lock.
func (l *Lobby) Leave(p *Player) {
	l.Mu.Lock()

	switch p {
	case l.host:
		l.host, l.guest = l.guest, nil
	case l.guest:
		l.guest = nil
	default:
		l.Mu.Unlock()
		return
	}
	p.setLobby(nil)
	p.IsReady = false
	p.FirstReady = false

	log.WithFields(log.Fields{"lobby": l.Code, "player": p.ID}).Info("player left lobby")

	empty := l.host == nil
	if empty {
		l.closed = true
	} else {
		if l.phase == PhaseAwaitingReady || l.phase == PhaseRoundInProgress {
			l.StopMatch()
		}
		l.broadcastLobbyInfo()
	}
	onEmpty := l.onEmpty
	l.Mu.Unlock()

	if empty && onEmpty != nil {
		log.WithField("lobby", l.Code).Info("lobby is empty, removing")
		onEmpty(l.Code)
	}
}

// Broadcast sends msg to every occupied slot. Assumes lock is held.
func (l *Lobby) Broadcast(msg protocol.Message) {
	for _, p := range l.members() {
		p.Send(msg)
	}
}

// BroadcastLobbyInfo tells each member who is in the lobby. Assumes lock is held.
func (l *Lobby) BroadcastLobbyInfo() {
	l.broadcastLobbyInfo()
}

func (l *Lobby) broadcastLobbyInfo() {
	if l.host == nil {
		return
	}
	info := protocol.LobbyInfo{
		Host:     l.host.Username,
		HostHash: l.host.ModHash,
	}
	if l.guest != nil {
		info.Guest = l.guest.Username
		info.GuestHash = l.guest.ModHash
	}
	for _, p := range l.members() {
		msg := info
		msg.IsHost = p == l.host
		p.Send(msg)
	}
}

// SetOptions merges opts into the lobby's options and forwards the merged
// mapping to the other member. Values are validated where they are used.
// Assumes lock is held.
func (l *Lobby) SetOptions(from *Player, opts protocol.LobbyOptions) {
	for k, v := range opts {
		l.options[k] = v
	}
	merged := l.Options()
	for _, p := range l.members() {
		if p != from {
			p.Send(merged)
		}
	}
}

// Options returns a copy of the options mapping. Assumes lock is held.
func (l *Lobby) Options() protocol.LobbyOptions {
	out := make(protocol.LobbyOptions, len(l.options))
	for k, v := range l.options {
		out[k] = v
	}
	return out
}

// SetPlayersLives sets both members' lives to n. Assumes lock is held.
func (l *Lobby) SetPlayersLives(n int) {
	for _, p := range l.members() {
		p.setLives(n)
	}
}

// ResetPlayers clears both members' per-round state. Assumes lock is held.
func (l *Lobby) ResetPlayers() {
	for _, p := range l.members() {
		p.resetRound(l.Settings.HandsPerRound)
		p.FirstReady = false
	}
}

// Snapshot is a read-only view used for listings.
type Snapshot struct {
	Code    string            `json:"code"`
	Mode    gamemode.Mode     `json:"mode"`
	Host    string            `json:"host,omitempty"`
	Guest   string            `json:"guest,omitempty"`
	Phase   string            `json:"phase"`
	Rounds  int               `json:"rounds"`
	Options map[string]string `json:"options"`
}

// Snapshot describes the lobby. Acquires lock.
func (l *Lobby) Snapshot() Snapshot {
	l.Mu.Lock()
	defer l.Mu.Unlock()
	s := Snapshot{
		Code:    l.Code,
		Mode:    l.Mode,
		Phase:   l.phase.String(),
		Rounds:  l.rounds,
		Options: l.Options(),
	}
	if l.host != nil {
		s.Host = l.host.Username
	}
	if l.guest != nil {
		s.Guest = l.guest.Username
	}
	return s
}

func (l *Lobby) members() []*Player {
	out := make([]*Player, 0, 2)
	if l.host != nil {
		out = append(out, l.host)
	}
	if l.guest != nil {
		out = append(out, l.guest)
	}
	return out
}
