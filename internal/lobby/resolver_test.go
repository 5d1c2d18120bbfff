package lobby

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/pvprelay/internal/gamemode"
	"github.com/jason-s-yu/pvprelay/internal/protocol"
)

func score(t *testing.T, s string) protocol.Score {
	t.Helper()
	v, err := protocol.ParseScore(s)
	require.NoError(t, err)
	return v
}

func TestStartMatchDefaults(t *testing.T) {
	_, l, host, guest := setupLobby(t, gamemode.Attrition)
	l.Mu.Lock()
	defer l.Mu.Unlock()

	require.NoError(t, l.StartMatch(host, "ABCD1234"))

	for _, p := range []*Player{host, guest} {
		msgs := drain(p)
		require.Len(t, msgs, 2)
		assert.Equal(t, protocol.StartGame{Deck: DefaultDeck, Seed: "ABCD1234"}, msgs[0])
		assert.Equal(t, protocol.PlayerInfo{Lives: 4}, msgs[1])
		assert.Equal(t, 4, p.Lives)
		assert.Equal(t, 4, p.HandsLeft)
		assert.False(t, p.IsReady)
	}
	assert.Equal(t, PhaseAwaitingReady, l.Phase())
	assert.Zero(t, l.Rounds())
}

func TestStartMatchOptions(t *testing.T) {
	_, l, host, guest := setupLobby(t, gamemode.Showdown)
	l.Mu.Lock()
	defer l.Mu.Unlock()

	l.SetOptions(host, protocol.LobbyOptions{
		OptionStartingLives:  "7",
		OptionDifferentSeeds: "true",
		OptionStake:          "3",
	})
	drain(guest)

	require.NoError(t, l.StartMatch(host, "ABCD1234"))

	msgs := drain(guest)
	require.Len(t, msgs, 2)
	start, ok := msgs[0].(protocol.StartGame)
	require.True(t, ok)
	assert.Empty(t, start.Seed)
	require.NotNil(t, start.Stake)
	assert.Equal(t, 3, *start.Stake)
	assert.Equal(t, protocol.PlayerInfo{Lives: 7}, msgs[1])
	assert.Equal(t, 7, host.Lives)
}

func TestStartMatchModeDefaultLives(t *testing.T) {
	_, l, host, guest := setupLobby(t, gamemode.Showdown)
	l.Mu.Lock()
	defer l.Mu.Unlock()

	require.NoError(t, l.StartMatch(host, "S"))
	assert.Equal(t, 2, host.Lives)
	assert.Equal(t, 2, guest.Lives)
}

func TestStartMatchRejected(t *testing.T) {
	t.Run("not host", func(t *testing.T) {
		_, l, host, guest := setupLobby(t, gamemode.Attrition)
		l.Mu.Lock()
		defer l.Mu.Unlock()

		assert.ErrorIs(t, l.StartMatch(guest, "S"), ErrNotHost)
		assert.Empty(t, drain(host))
		assert.Equal(t, PhaseIdle, l.Phase())
	})

	t.Run("no opponent", func(t *testing.T) {
		reg := NewRegistry(gamemode.NewRegistry())
		host := newTestPlayer("host")
		l, err := reg.Create(host, gamemode.Attrition)
		require.NoError(t, err)
		l.Mu.Lock()
		defer l.Mu.Unlock()

		assert.ErrorIs(t, l.StartMatch(host, "S"), ErrNoOpponent)
	})

	for _, bad := range []string{"abc", "0", "-2"} {
		t.Run("starting_lives="+bad, func(t *testing.T) {
			_, l, host, guest := setupLobby(t, gamemode.Attrition)
			l.Mu.Lock()
			defer l.Mu.Unlock()
			l.SetOptions(host, protocol.LobbyOptions{OptionStartingLives: bad})
			drain(guest)

			assert.ErrorIs(t, l.StartMatch(host, "S"), ErrInvalidOption)
			assert.Empty(t, drain(host))
			assert.Empty(t, drain(guest))
			assert.Equal(t, PhaseIdle, l.Phase())
		})
	}
}

func TestSpeedrunGoesToFirstReadyOnly(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()

	l.Ready(host)
	assert.Equal(t, []protocol.Message{protocol.Speedrun{}}, drain(host))

	// Toggling readiness does not award it twice, nor hand it to the guest.
	l.Unready(host)
	l.Ready(host)
	assert.Empty(t, drain(host))
	l.Unready(host)

	l.Ready(guest)
	assert.Empty(t, ofType[protocol.Speedrun](drain(guest)))
	assert.Equal(t, PhaseAwaitingReady, l.Phase())
}

func TestBothReadyStartsRound(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()

	host.Score = score(t, "999")
	host.HandsLeft = 0

	l.Ready(host)
	l.Ready(guest)

	assert.Equal(t, []protocol.Action{protocol.ActionSpeedrun, protocol.ActionStartBlind}, tags(drain(host)))
	assert.Equal(t, []protocol.Action{protocol.ActionStartBlind}, tags(drain(guest)))

	assert.Equal(t, PhaseRoundInProgress, l.Phase())
	assert.Equal(t, 1, l.Rounds())
	for _, p := range []*Player{host, guest} {
		assert.False(t, p.IsReady)
		assert.Equal(t, "0", p.Score.String())
		assert.Equal(t, 4, p.HandsLeft)
	}
}

func TestPlayHandForwardsEnemyInfo(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()

	// Outside a round the numbers are only forwarded.
	res, err := l.PlayHand(host, score(t, "50"), 0)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, drain(host))

	info := ofType[protocol.EnemyInfo](drain(guest))
	require.Len(t, info, 1)
	assert.Equal(t, "50", info[0].Score.String())
	assert.Equal(t, 0, info[0].HandsLeft)
	assert.Equal(t, 4, info[0].Lives)
	assert.Equal(t, PhaseAwaitingReady, l.Phase())
}

func TestRoundDecidedWhenTrailingSideIsOut(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()
	startRound(l, host, guest)

	res, err := l.PlayHand(host, score(t, "300"), 2)
	require.NoError(t, err)
	assert.Nil(t, res)
	drain(guest)

	res, err = l.PlayHand(guest, score(t, "200"), 0)
	require.NoError(t, err)
	assert.Nil(t, res)

	assert.Equal(t, []protocol.Message{
		protocol.PlayerInfo{Lives: 3},
		protocol.EndPvP{Lost: true},
	}, drain(guest))

	hostMsgs := drain(host)
	assert.Equal(t, []protocol.Action{protocol.ActionEnemyInfo, protocol.ActionEndPvP}, tags(hostMsgs))
	assert.Equal(t, protocol.EndPvP{Lost: false}, hostMsgs[1])

	assert.Equal(t, 4, host.Lives)
	assert.Equal(t, 3, guest.Lives)
	assert.Equal(t, PhaseAwaitingReady, l.Phase())
}

func TestRoundContinuesWhileTrailingSideHasHands(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()
	startRound(l, host, guest)

	_, err := l.PlayHand(host, score(t, "300"), 0)
	require.NoError(t, err)
	_, err = l.PlayHand(guest, score(t, "200"), 2)
	require.NoError(t, err)

	assert.Empty(t, ofType[protocol.EndPvP](drain(host)))
	assert.Empty(t, ofType[protocol.EndPvP](drain(guest)))
	assert.Equal(t, PhaseRoundInProgress, l.Phase())

	// The guest overtakes with a hand to spare; the host is out and behind.
	_, err = l.PlayHand(guest, score(t, "301"), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, host.Lives)
	assert.Contains(t, drain(host), protocol.Message(protocol.EndPvP{Lost: true}))
}

func TestTiedRoundCostsNoLife(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()
	startRound(l, host, guest)

	_, err := l.PlayHand(host, score(t, "100"), 0)
	require.NoError(t, err)
	_, err = l.PlayHand(guest, score(t, "100"), 0)
	require.NoError(t, err)

	assert.Equal(t, []protocol.EndPvP{{Lost: false}}, ofType[protocol.EndPvP](drain(host)))
	assert.Equal(t, []protocol.EndPvP{{Lost: false}}, ofType[protocol.EndPvP](drain(guest)))
	assert.Equal(t, 4, host.Lives)
	assert.Equal(t, 4, guest.Lives)
}

func TestRoundResolvedOnce(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()
	startRound(l, host, guest)

	_, err := l.PlayHand(host, score(t, "300"), 1)
	require.NoError(t, err)
	_, err = l.PlayHand(guest, score(t, "200"), 0)
	require.NoError(t, err)
	// A late duplicate report after the round closed.
	_, err = l.PlayHand(guest, score(t, "200"), 0)
	require.NoError(t, err)

	assert.Len(t, ofType[protocol.EndPvP](drain(guest)), 1)
	assert.Equal(t, 3, guest.Lives)
}

func TestScoresBeyondInt64(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()
	startRound(l, host, guest)

	_, err := l.PlayHand(host, score(t, "99999999999999999999999999"), 0)
	require.NoError(t, err)
	_, err = l.PlayHand(guest, score(t, "1e30"), 0)
	require.NoError(t, err)

	assert.Equal(t, 4, guest.Lives)
	assert.Equal(t, 3, host.Lives)
}

func TestMatchEndsWhenLivesRunOut(t *testing.T) {
	l, host, guest := setupMatch(t, protocol.LobbyOptions{OptionStartingLives: "1"})
	l.Mu.Lock()
	defer l.Mu.Unlock()
	startRound(l, host, guest)

	_, err := l.PlayHand(host, score(t, "500"), 1)
	require.NoError(t, err)
	res, err := l.PlayHand(guest, score(t, "10"), 0)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, host.ID, res.WinnerID)
	assert.Equal(t, "host", res.WinnerName)
	assert.Equal(t, guest.ID, res.LoserID)
	assert.Equal(t, 0, res.LoserLives)
	assert.Equal(t, 1, res.Rounds)
	assert.Equal(t, l.Code, res.Code)

	assert.Contains(t, drain(host), protocol.Message(protocol.WinGame{}))
	guestMsgs := drain(guest)
	assert.Contains(t, guestMsgs, protocol.Message(protocol.LoseGame{}))
	assert.Empty(t, ofType[protocol.EndPvP](guestMsgs))
	assert.Equal(t, PhaseMatchOver, l.Phase())
}

func TestPlayHandWithoutOpponent(t *testing.T) {
	reg := NewRegistry(gamemode.NewRegistry())
	host := newTestPlayer("host")
	l, err := reg.Create(host, gamemode.Attrition)
	require.NoError(t, err)
	drain(host)

	l.Mu.Lock()
	defer l.Mu.Unlock()

	res, err := l.PlayHand(host, score(t, "1"), 0)
	assert.ErrorIs(t, err, ErrNoOpponent)
	assert.Nil(t, res)
	assert.Equal(t, []protocol.Message{protocol.StopGame{}}, drain(host))

	_, err = l.FailRound(host)
	assert.ErrorIs(t, err, ErrNoOpponent)
}

func TestFailRound(t *testing.T) {
	t.Run("without death option", func(t *testing.T) {
		l, host, guest := setupMatch(t, nil)
		l.Mu.Lock()
		defer l.Mu.Unlock()

		res, err := l.FailRound(host)
		require.NoError(t, err)
		assert.Nil(t, res)
		assert.Equal(t, 4, host.Lives)
		assert.Empty(t, drain(host))
		assert.Empty(t, drain(guest))
	})

	t.Run("with death option", func(t *testing.T) {
		l, host, _ := setupMatch(t, protocol.LobbyOptions{OptionDeathOnRoundLoss: "true"})
		l.Mu.Lock()
		defer l.Mu.Unlock()

		res, err := l.FailRound(host)
		require.NoError(t, err)
		assert.Nil(t, res)
		res, err = l.FailRound(host)
		require.NoError(t, err)
		assert.Nil(t, res)

		assert.Equal(t, 3, host.Lives, "at most one life per round")
		assert.Equal(t, []protocol.Message{protocol.PlayerInfo{Lives: 3}}, drain(host))
	})

	t.Run("last life ends match", func(t *testing.T) {
		l, host, guest := setupMatch(t, protocol.LobbyOptions{
			OptionDeathOnRoundLoss: "1",
			OptionStartingLives:    "1",
		})
		l.Mu.Lock()
		defer l.Mu.Unlock()

		res, err := l.FailRound(guest)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, host.ID, res.WinnerID)
		assert.Equal(t, PhaseMatchOver, l.Phase())
		assert.Contains(t, drain(guest), protocol.Message(protocol.LoseGame{}))

		// Nothing further happens once the match is over.
		res, err = l.FailRound(guest)
		require.NoError(t, err)
		assert.Nil(t, res)
	})

	t.Run("malformed option", func(t *testing.T) {
		l, host, _ := setupMatch(t, protocol.LobbyOptions{OptionDeathOnRoundLoss: "maybe"})
		l.Mu.Lock()
		defer l.Mu.Unlock()

		_, err := l.FailRound(host)
		assert.ErrorIs(t, err, ErrInvalidOption)
		assert.Equal(t, 4, host.Lives)
	})
}

func TestNewRoundClearsLifeBlocker(t *testing.T) {
	l, host, guest := setupMatch(t, protocol.LobbyOptions{OptionDeathOnRoundLoss: "true"})
	l.Mu.Lock()
	defer l.Mu.Unlock()

	_, err := l.FailRound(host)
	require.NoError(t, err)
	host.ResetBlocker()
	_, err = l.FailRound(host)
	require.NoError(t, err)
	assert.Equal(t, 2, host.Lives)

	startRound(l, host, guest)
	_, err = l.FailRound(host)
	require.NoError(t, err)
	assert.Equal(t, 1, host.Lives)
}

func TestStopMatch(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()
	l.Ready(host)
	drain(host)

	l.StopMatch()
	assert.Equal(t, PhaseIdle, l.Phase())
	assert.False(t, host.IsReady)
	assert.False(t, host.FirstReady)
	assert.Equal(t, []protocol.Message{protocol.StopGame{}}, drain(host))
	assert.Equal(t, []protocol.Message{protocol.StopGame{}}, drain(guest))
}

func TestSetSkipsAndForward(t *testing.T) {
	l, host, guest := setupMatch(t, nil)
	l.Mu.Lock()
	defer l.Mu.Unlock()

	l.SetSkips(host, 2)
	info := ofType[protocol.EnemyInfo](drain(guest))
	require.Len(t, info, 1)
	assert.Equal(t, 2, info[0].Skips)

	assert.True(t, l.Forward(guest, protocol.Asteroid{}))
	assert.Equal(t, []protocol.Message{protocol.Asteroid{}}, drain(host))
}

func TestNewSeed(t *testing.T) {
	for i := 0; i < 100; i++ {
		s := NewSeed()
		require.Len(t, s, 8)
		assert.NotContains(t, s, "0")
		assert.NotContains(t, s, "O")
	}
}
