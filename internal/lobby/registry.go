// internal/lobby/registry.go
package lobby

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pvprelay/internal/gamemode"
	"github.com/jason-s-yu/pvprelay/internal/protocol"
)

var (
	ErrUnknownGameMode    = errors.New("unknown game mode")
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique lobby code")
)

const (
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeLength      = 5
	maxCodeAttempts = 1000
)

// Registry maps lobby codes to active lobbies. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	lobbies map[string]*Lobby
	modes   *gamemode.Registry

	newCode func() string
}

// NewRegistry returns an empty registry validating modes against modes.
func NewRegistry(modes *gamemode.Registry) *Registry {
	return &Registry{
		lobbies: make(map[string]*Lobby),
		modes:   modes,
		newCode: randomCode,
	}
}

// Create opens a lobby with host in the first slot under a fresh code and
// attaches it to host. The host is sent joinedLobby.
func (r *Registry) Create(host *Player, mode gamemode.Mode) (*Lobby, error) {
	settings, ok := r.modes.Lookup(mode)
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownGameMode, mode, r.modes.Modes())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code := ""
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		c := r.newCode()
		if _, taken := r.lobbies[c]; !taken {
			code = c
			break
		}
	}
	if code == "" {
		log.WithField("active", len(r.lobbies)).Error("lobby code space exhausted")
		return nil, ErrCodeSpaceExhausted
	}

	l := newLobby(code, mode, settings, host)
	l.onEmpty = r.Remove
	host.setLobby(l)
	host.Send(protocol.JoinedLobby{Code: code, Type: mode})
	r.lobbies[code] = l

	log.WithFields(log.Fields{"lobby": code, "mode": mode, "player": host.ID}).Info("lobby created")
	return l, nil
}

// Get looks a lobby up by code. Codes are case-insensitive.
func (r *Registry) Get(code string) (*Lobby, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lobbies[normalizeCode(code)]
	return l, ok
}

// Remove deletes the lobby under code. Removing an absent code is a no-op.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lobbies, normalizeCode(code))
}

// Len is the number of active lobbies.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.lobbies)
}

// List returns snapshots of every active lobby ordered by code.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	lobbies := make([]*Lobby, 0, len(r.lobbies))
	for _, l := range r.lobbies {
		lobbies = append(lobbies, l)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(lobbies))
	for _, l := range lobbies {
		out = append(out, l.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randomCode() string {
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}
