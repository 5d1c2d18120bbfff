// Package relay routes decoded client messages to lobby operations.
package relay

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pvprelay/internal/lobby"
	"github.com/jason-s-yu/pvprelay/internal/protocol"
	"github.com/jason-s-yu/pvprelay/internal/version"
)

// User-facing warnings.
const (
	msgLobbyNotFound   = "Lobby does not exist."
	msgLobbyFull       = "Lobby is full."
	msgUnknownGameMode = "Unknown game mode."
	msgNoCodes         = "Could not create a lobby, please try again later."
	msgNoOpponent      = "Waiting for an opponent to join."
	msgInvalidMessage  = "Invalid message format"
)

// Recorder receives finished matches. Implementations must not block.
type Recorder interface {
	Record(result lobby.MatchResult)
}

type nopRecorder struct{}

func (nopRecorder) Record(lobby.MatchResult) {}

// Router dispatches client messages on behalf of connected players.
type Router struct {
	registry      *lobby.Registry
	recorder      Recorder
	logger        *logrus.Logger
	serverVersion string

	newSeed func() string
}

// NewRouter returns a router over registry. A nil recorder discards results.
func NewRouter(registry *lobby.Registry, recorder Recorder, logger *logrus.Logger, serverVersion string) *Router {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Router{
		registry:      registry,
		recorder:      recorder,
		logger:        logger,
		serverVersion: serverVersion,
		newSeed:       lobby.NewSeed,
	}
}

// Greet is sent to every new connection.
func (rt *Router) Greet(p *lobby.Player) {
	p.Send(protocol.Connected{})
	p.Send(protocol.VersionRequest{})
}

// Reject answers a payload the transport could not decode.
func (rt *Router) Reject(p *lobby.Player, err error) {
	if errors.Is(err, protocol.ErrUnknownAction) {
		rt.logger.WithField("player", p.ID).Debugf("ignoring message: %v", err)
		return
	}
	rt.logger.WithField("player", p.ID).Warnf("invalid message: %v", err)
	p.SendError(msgInvalidMessage)
}

// Disconnect removes p from its lobby. The transport calls it once the
// connection is gone.
func (rt *Router) Disconnect(p *lobby.Player) {
	rt.leave(p)
}

// Dispatch handles one message from p.
func (rt *Router) Dispatch(p *lobby.Player, msg protocol.ClientMessage) {
	rt.logger.WithFields(logrus.Fields{"player": p.ID, "action": msg.Tag()}).Debug("dispatch")

	switch m := msg.(type) {
	case protocol.Username:
		rt.update(p, func() {
			p.Username = m.Username
			p.ModHash = m.ModHash
		})
	case protocol.SetLocation:
		rt.update(p, func() { p.Location = m.Location })
	case protocol.SetAnte:
		rt.update(p, func() { p.Ante = int(m.Ante) })
	case protocol.KeepAlive:
		p.Send(protocol.KeepAliveAck{})
	case protocol.ClientVersion:
		if version.Outdated(m.Version, rt.serverVersion) {
			p.SendError(fmt.Sprintf("[WARN] Server expecting version %s", rt.serverVersion))
		}

	case protocol.CreateLobby:
		rt.createLobby(p, m)
	case protocol.JoinLobby:
		rt.joinLobby(p, m)
	case protocol.LeaveLobby:
		rt.leave(p)

	case protocol.LobbyInfoRequest:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			l.BroadcastLobbyInfo()
			return nil
		})
	case protocol.LobbyOptions:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			l.SetOptions(p, m)
			return nil
		})
	case protocol.StartGameRequest:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			rt.startMatch(l, p)
			return nil
		})
	case protocol.StopGame:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			l.StopMatch()
			return nil
		})
	case protocol.ReadyBlind:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			if l.Phase() == lobby.PhaseAwaitingReady {
				l.Ready(p)
			}
			return nil
		})
	case protocol.UnreadyBlind:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			l.Unready(p)
			return nil
		})
	case protocol.PlayHand:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			res, err := l.PlayHand(p, m.Score, int(m.HandsLeft))
			rt.logMatchError(l, p, err)
			return res
		})
	case protocol.FailRound:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			res, err := l.FailRound(p)
			if errors.Is(err, lobby.ErrInvalidOption) {
				p.SendError(err.Error())
			}
			rt.logMatchError(l, p, err)
			return res
		})
	case protocol.NewRound:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			p.ResetBlocker()
			return nil
		})
	case protocol.Skip:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			l.SetSkips(p, int(m.Skips))
			return nil
		})

	case protocol.SendPhantom, protocol.RemovePhantom, protocol.Asteroid,
		protocol.LetsGoGamblingNemesis, protocol.EatPizza, protocol.SoldJoker,
		protocol.SpentLastShop, protocol.Magnet, protocol.MagnetResponse:
		rt.withLobby(p, func(l *lobby.Lobby) *lobby.MatchResult {
			l.Forward(p, m)
			return nil
		})

	default:
		rt.logger.WithFields(logrus.Fields{"player": p.ID, "action": msg.Tag()}).Debug("unhandled message")
	}
}

// update applies fn to p's own fields, holding p's lobby lock if it has one.
func (rt *Router) update(p *lobby.Player, fn func()) {
	if l := p.Lobby(); l != nil {
		l.Mu.Lock()
		defer l.Mu.Unlock()
	}
	fn()
}

// withLobby runs fn with p's lobby locked. Messages from players outside a
// lobby are dropped. A match result returned by fn is recorded after the
// lock is released.
func (rt *Router) withLobby(p *lobby.Player, fn func(l *lobby.Lobby) *lobby.MatchResult) {
	l := p.Lobby()
	if l == nil {
		rt.logger.WithField("player", p.ID).Debug("not in a lobby, ignoring")
		return
	}

	l.Mu.Lock()
	var res *lobby.MatchResult
	if l.Host() == p || l.Guest() == p {
		res = fn(l)
	}
	l.Mu.Unlock()

	if res != nil {
		rt.recorder.Record(*res)
	}
}

func (rt *Router) createLobby(p *lobby.Player, m protocol.CreateLobby) {
	rt.leave(p)

	_, err := rt.registry.Create(p, m.GameMode)
	switch {
	case errors.Is(err, lobby.ErrUnknownGameMode):
		p.SendError(msgUnknownGameMode)
	case errors.Is(err, lobby.ErrCodeSpaceExhausted):
		p.SendError(msgNoCodes)
	case err != nil:
		rt.logger.WithField("player", p.ID).Errorf("create lobby: %v", err)
	}
}

func (rt *Router) joinLobby(p *lobby.Player, m protocol.JoinLobby) {
	target, ok := rt.registry.Get(m.Code)
	if !ok {
		p.SendError(msgLobbyNotFound)
		return
	}
	if current := p.Lobby(); current != target {
		rt.leave(p)
	}

	switch err := target.Join(p); {
	case errors.Is(err, lobby.ErrLobbyNotFound):
		p.SendError(msgLobbyNotFound)
	case errors.Is(err, lobby.ErrLobbyFull):
		p.SendError(msgLobbyFull)
	case err != nil:
		rt.logger.WithFields(logrus.Fields{"player": p.ID, "lobby": target.Code}).Errorf("join lobby: %v", err)
	}
}

func (rt *Router) leave(p *lobby.Player) {
	if l := p.Lobby(); l != nil {
		l.Leave(p)
	}
}

// startMatch is only honored from the host. Assumes lock is held.
func (rt *Router) startMatch(l *lobby.Lobby, p *lobby.Player) {
	err := l.StartMatch(p, rt.newSeed())
	switch {
	case err == nil:
	case errors.Is(err, lobby.ErrNotHost):
		rt.logger.WithFields(logrus.Fields{"player": p.ID, "lobby": l.Code}).Debug("startGame from non-host ignored")
	case errors.Is(err, lobby.ErrNoOpponent):
		p.SendError(msgNoOpponent)
	default:
		rt.logger.WithFields(logrus.Fields{"player": p.ID, "lobby": l.Code}).Infof("cannot start match: %v", err)
		p.SendError(err.Error())
	}
}

func (rt *Router) logMatchError(l *lobby.Lobby, p *lobby.Player, err error) {
	if err == nil {
		return
	}
	entry := rt.logger.WithFields(logrus.Fields{"player": p.ID, "lobby": l.Code})
	if errors.Is(err, lobby.ErrNoOpponent) {
		entry.Info("opponent missing, match stopped")
		return
	}
	entry.Warnf("match error: %v", err)
}
