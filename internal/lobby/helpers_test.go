package lobby

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/pvprelay/internal/gamemode"
	"github.com/jason-s-yu/pvprelay/internal/protocol"
)

func newTestPlayer(name string) *Player {
	p := NewPlayer(64)
	p.Username = name
	p.ModHash = name + "-hash"
	return p
}

// drain empties p's outbox and returns what was queued.
func drain(p *Player) []protocol.Message {
	var out []protocol.Message
	for {
		select {
		case m := <-p.outbox:
			out = append(out, m)
		default:
			return out
		}
	}
}

func ofType[T protocol.Message](msgs []protocol.Message) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func tags(msgs []protocol.Message) []protocol.Action {
	out := make([]protocol.Action, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Tag())
	}
	return out
}

// setupLobby creates a lobby with a host and a joined guest, with outboxes drained.
func setupLobby(t *testing.T, mode gamemode.Mode) (*Registry, *Lobby, *Player, *Player) {
	t.Helper()
	reg := NewRegistry(gamemode.NewRegistry())
	host := newTestPlayer("host")
	guest := newTestPlayer("guest")

	l, err := reg.Create(host, mode)
	require.NoError(t, err)
	require.NoError(t, l.Join(guest))

	drain(host)
	drain(guest)
	return reg, l, host, guest
}

// setupMatch is setupLobby plus a started match with the given options.
func setupMatch(t *testing.T, opts protocol.LobbyOptions) (*Lobby, *Player, *Player) {
	t.Helper()
	_, l, host, guest := setupLobby(t, gamemode.Attrition)

	l.Mu.Lock()
	defer l.Mu.Unlock()
	if opts != nil {
		l.SetOptions(host, opts)
	}
	require.NoError(t, l.StartMatch(host, "SEED1234"))

	drain(host)
	drain(guest)
	return l, host, guest
}

// startRound readies both players. Assumes lock is held.
func startRound(l *Lobby, host, guest *Player) {
	l.Ready(host)
	l.Ready(guest)
	drain(host)
	drain(guest)
}
