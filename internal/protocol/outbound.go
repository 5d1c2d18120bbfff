package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jason-s-yu/pvprelay/internal/gamemode"
)

type Connected struct{}

// VersionRequest asks the client to report its version.
type VersionRequest struct{}

type Error struct {
	Message string `json:"message"`
}

type JoinedLobby struct {
	Code string        `json:"code"`
	Type gamemode.Mode `json:"type"`
}

// LobbyInfo describes lobby membership from the recipient's point of view.
type LobbyInfo struct {
	Host      string `json:"host"`
	HostHash  string `json:"hostHash"`
	Guest     string `json:"guest,omitempty"`
	GuestHash string `json:"guestHash,omitempty"`
	IsHost    bool   `json:"isHost"`
}

type StartGame struct {
	Deck  string `json:"deck"`
	Stake *int   `json:"stake,omitempty"`
	Seed  string `json:"seed,omitempty"`
}

type StartBlind struct{}

type WinGame struct{}

type LoseGame struct{}

type PlayerInfo struct {
	Lives int `json:"lives"`
}

// EnemyInfo carries the opponent's round progress.
type EnemyInfo struct {
	Score     Score `json:"score"`
	HandsLeft int   `json:"handsLeft"`
	Skips     int   `json:"skips"`
	Lives     int   `json:"lives"`
}

// EndPvP closes a round for one recipient.
type EndPvP struct {
	Lost bool `json:"lost"`
}

// Speedrun acknowledges the first player to ready up in a round.
type Speedrun struct{}

type KeepAliveAck struct{}

// LobbyOptions is the free-form rule mapping of a lobby. It is both accepted
// from clients and sent to them.
type LobbyOptions map[string]string

// Records relayed unchanged to the opponent.
type (
	SendPhantom struct {
		Key string `json:"key"`
	}
	RemovePhantom struct {
		Key string `json:"key"`
	}
	Asteroid              struct{}
	LetsGoGamblingNemesis struct{}
	EatPizza              struct {
		Whole bool `json:"whole"`
	}
	SoldJoker     struct{}
	SpentLastShop struct {
		Amount Int `json:"amount"`
	}
	Magnet         struct{}
	MagnetResponse struct {
		Key string `json:"key"`
	}
)

func (Connected) Tag() Action      { return ActionConnected }
func (VersionRequest) Tag() Action { return ActionVersion }
func (Error) Tag() Action          { return ActionError }
func (JoinedLobby) Tag() Action    { return ActionJoinedLobby }
func (LobbyInfo) Tag() Action      { return ActionLobbyInfo }
func (StartGame) Tag() Action      { return ActionStartGame }
func (StartBlind) Tag() Action     { return ActionStartBlind }
func (WinGame) Tag() Action        { return ActionWinGame }
func (LoseGame) Tag() Action       { return ActionLoseGame }
func (PlayerInfo) Tag() Action     { return ActionPlayerInfo }
func (EnemyInfo) Tag() Action      { return ActionEnemyInfo }
func (EndPvP) Tag() Action         { return ActionEndPvP }
func (Speedrun) Tag() Action       { return ActionSpeedrun }
func (KeepAliveAck) Tag() Action   { return ActionKeepAliveAck }
func (LobbyOptions) Tag() Action   { return ActionLobbyOptions }

func (SendPhantom) Tag() Action           { return ActionSendPhantom }
func (RemovePhantom) Tag() Action         { return ActionRemovePhantom }
func (Asteroid) Tag() Action              { return ActionAsteroid }
func (LetsGoGamblingNemesis) Tag() Action { return ActionLetsGoGamblingNemesis }
func (EatPizza) Tag() Action              { return ActionEatPizza }
func (SoldJoker) Tag() Action             { return ActionSoldJoker }
func (SpentLastShop) Tag() Action         { return ActionSpentLastShop }
func (Magnet) Tag() Action                { return ActionMagnet }
func (MagnetResponse) Tag() Action        { return ActionMagnetResponse }

// Encode marshals m as a JSON object with its tag in the "action" field.
func Encode(m Message) ([]byte, error) {
	if opts, ok := m.(LobbyOptions); ok {
		// an option key must not shadow the tag
		clean := make(map[string]string, len(opts))
		for k, v := range opts {
			if k != "action" {
				clean[k] = v
			}
		}
		m = LobbyOptions(clean)
	}

	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Tag(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("encode %s: not an object", m.Tag())
	}
	tag, err := json.Marshal(m.Tag())
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"action":`)
	buf.Write(tag)
	if !bytes.Equal(body, []byte("{}")) {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}
