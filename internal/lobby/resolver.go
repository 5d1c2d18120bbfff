// internal/lobby/resolver.go
package lobby

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jason-s-yu/pvprelay/internal/gamemode"
	"github.com/jason-s-yu/pvprelay/internal/protocol"
)

// DefaultDeck is the deck every match is played with.
const DefaultDeck = "c_multiplayer_1"

// MatchResult describes a finished match.
type MatchResult struct {
	Code        string        `json:"code"`
	Mode        gamemode.Mode `json:"mode"`
	WinnerID    uuid.UUID     `json:"winner_id"`
	WinnerName  string        `json:"winner_name"`
	WinnerLives int           `json:"winner_lives"`
	LoserID     uuid.UUID     `json:"loser_id"`
	LoserName   string        `json:"loser_name"`
	LoserLives  int           `json:"loser_lives"`
	Rounds      int           `json:"rounds"`
	EndedAt     time.Time     `json:"ended_at"`
}

// StartMatch begins a fresh match on behalf of p, who must be the host.
// Both members are sent startGame followed by their starting lives.
// Assumes lock is held.
func (l *Lobby) StartMatch(p *Player, seed string) error {
	if !l.IsHost(p) {
		return ErrNotHost
	}
	if l.guest == nil {
		return ErrNoOpponent
	}

	lives, err := l.StartingLives()
	if err != nil {
		return err
	}
	differentSeeds, err := l.Flag(OptionDifferentSeeds)
	if err != nil {
		return err
	}
	stake, hasStake, err := l.intOption(OptionStake)
	if err != nil {
		return err
	}

	msg := protocol.StartGame{Deck: DefaultDeck}
	if !differentSeeds {
		msg.Seed = seed
	}
	if hasStake {
		msg.Stake = &stake
	}

	l.Broadcast(msg)
	l.SetPlayersLives(lives)
	for _, m := range l.members() {
		m.resetRound(l.Settings.HandsPerRound)
		m.FirstReady = false
		m.Skips = 0
	}
	l.phase = PhaseAwaitingReady
	l.rounds = 0

	log.WithFields(log.Fields{"lobby": l.Code, "lives": lives}).Info("match started")
	return nil
}

// StopMatch aborts the match: members are sent stopGame and their per-round
// state is reset. Assumes lock is held.
func (l *Lobby) StopMatch() {
	l.Broadcast(protocol.StopGame{})
	l.ResetPlayers()
	l.phase = PhaseIdle
	log.WithField("lobby", l.Code).Info("match stopped")
}

// Ready marks p ready for the next round. The first player to ready up in a
// round, while the opponent is neither ready nor already rewarded, is sent
// speedrun. Once both members are ready the round starts. Assumes lock is held.
func (l *Lobby) Ready(p *Player) {
	p.IsReady = true

	enemy, hasEnemy := l.Opponent(p)
	if !p.FirstReady && !(hasEnemy && (enemy.IsReady || enemy.FirstReady)) {
		p.FirstReady = true
		p.Send(protocol.Speedrun{})
	}

	if l.host != nil && l.guest != nil && l.host.IsReady && l.guest.IsReady {
		l.startRound()
	}
}

// Unready withdraws p's readiness. Assumes lock is held.
func (l *Lobby) Unready(p *Player) {
	p.IsReady = false
}

func (l *Lobby) startRound() {
	for _, m := range l.members() {
		m.resetRound(l.Settings.HandsPerRound)
	}
	l.rounds++
	l.phase = PhaseRoundInProgress
	l.Broadcast(protocol.StartBlind{})
}

// PlayHand records p's score and hands left, forwards them to the opponent
// and, during a round, checks whether the round is decided. A non-nil result
// means the match ended. Without an opponent the match is stopped and
// ErrNoOpponent returned. Assumes lock is held.
func (l *Lobby) PlayHand(p *Player, score protocol.Score, handsLeft int) (*MatchResult, error) {
	enemy, ok := l.Opponent(p)
	if !ok {
		l.StopMatch()
		return nil, ErrNoOpponent
	}

	p.Score = score
	p.HandsLeft = max(handsLeft, 0)
	enemy.Send(p.enemyInfo())

	if l.phase != PhaseRoundInProgress {
		return nil, nil
	}
	return l.resolveRound(), nil
}

// roundOver holds when a side with no hands left trails, or neither side has
// hands left.
func roundOver(host, guest *Player, cmp int) bool {
	return (guest.HandsLeft == 0 && cmp > 0) ||
		(host.HandsLeft == 0 && cmp < 0) ||
		(host.HandsLeft == 0 && guest.HandsLeft == 0)
}

func (l *Lobby) resolveRound() *MatchResult {
	host, guest := l.host, l.guest
	cmp := host.Score.Cmp(guest.Score)
	if !roundOver(host, guest, cmp) {
		return nil
	}

	if cmp == 0 {
		l.endRound(host, guest, false)
		return nil
	}

	winner, loser := host, guest
	if cmp < 0 {
		winner, loser = guest, host
	}
	loser.LoseLife()

	if result := l.checkGameOver(); result != nil {
		return result
	}
	l.endRound(winner, loser, true)
	return nil
}

// endRound clears the speedrun claims and tells each side whether it lost.
func (l *Lobby) endRound(winner, loser *Player, decided bool) {
	winner.FirstReady = false
	loser.FirstReady = false
	l.phase = PhaseAwaitingReady

	winner.Send(protocol.EndPvP{Lost: false})
	loser.Send(protocol.EndPvP{Lost: decided})
}

// checkGameOver ends the match once a member has no lives left; the member
// with more lives wins.
func (l *Lobby) checkGameOver() *MatchResult {
	host, guest := l.host, l.guest
	if host.Lives > 0 && guest.Lives > 0 {
		return nil
	}
	winner, loser := guest, host
	if host.Lives > guest.Lives {
		winner, loser = host, guest
	}
	return l.finishMatch(winner, loser)
}

func (l *Lobby) finishMatch(winner, loser *Player) *MatchResult {
	winner.Send(protocol.WinGame{})
	loser.Send(protocol.LoseGame{})
	l.phase = PhaseMatchOver

	log.WithFields(log.Fields{
		"lobby":  l.Code,
		"winner": winner.ID,
		"loser":  loser.ID,
		"rounds": l.rounds,
	}).Info("match over")

	return &MatchResult{
		Code:        l.Code,
		Mode:        l.Mode,
		WinnerID:    winner.ID,
		WinnerName:  winner.Username,
		WinnerLives: winner.Lives,
		LoserID:     loser.ID,
		LoserName:   loser.Username,
		LoserLives:  loser.Lives,
		Rounds:      l.rounds,
		EndedAt:     time.Now().UTC(),
	}
}

// FailRound handles p failing a round outright. With death_on_round_loss
// enabled p loses a life, and running out ends the match in the opponent's
// favor. Outside a running match it does nothing. A malformed option is
// returned as an error and treated as disabled. Assumes lock is held.
func (l *Lobby) FailRound(p *Player) (*MatchResult, error) {
	enemy, ok := l.Opponent(p)
	if !ok {
		l.StopMatch()
		return nil, ErrNoOpponent
	}
	if l.phase != PhaseAwaitingReady && l.phase != PhaseRoundInProgress {
		return nil, nil
	}

	death, err := l.Flag(OptionDeathOnRoundLoss)
	if death {
		p.LoseLife()
	}
	if p.Lives == 0 {
		return l.finishMatch(enemy, p), err
	}
	return nil, err
}

// SetSkips records p's skip count and tells the opponent. Assumes lock is held.
func (l *Lobby) SetSkips(p *Player, skips int) {
	p.Skips = max(skips, 0)
	if enemy, ok := l.Opponent(p); ok {
		enemy.Send(p.enemyInfo())
	}
}

// Forward relays msg from p to its opponent unchanged. It reports whether an
// opponent was there to receive it. Assumes lock is held.
func (l *Lobby) Forward(p *Player, msg protocol.Message) bool {
	enemy, ok := l.Opponent(p)
	if !ok {
		return false
	}
	enemy.Send(msg)
	return true
}
