package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jason-s-yu/pvprelay/internal/gamemode"
)

// ClientMessage is the closed set of records a client may send. The router
// switches over the concrete types exhaustively.
type ClientMessage interface {
	Message
	clientMessage()
}

type Username struct {
	Username string `json:"username"`
	ModHash  string `json:"modHash"`
}

type CreateLobby struct {
	GameMode gamemode.Mode `json:"gameMode"`
}

type JoinLobby struct {
	Code string `json:"code"`
}

type LeaveLobby struct{}

// LobbyInfoRequest asks the relay to rebroadcast lobby membership.
type LobbyInfoRequest struct{}

type KeepAlive struct{}

// StartGameRequest is only honored from the host.
type StartGameRequest struct{}

type ReadyBlind struct{}

type UnreadyBlind struct{}

// PlayHand reports the sender's running score and hands remaining in the
// current round.
type PlayHand struct {
	Score       Score `json:"score"`
	HandsLeft   Int   `json:"handsLeft"`
	HasSpeedrun bool  `json:"hasSpeedrun"`
}

// StopGame aborts the match. The same record is broadcast back to members.
type StopGame struct{}

type FailRound struct{}

type SetAnte struct {
	Ante Int `json:"ante"`
}

// ClientVersion reports the client's build string.
type ClientVersion struct {
	Version string `json:"version"`
}

type SetLocation struct {
	Location string `json:"location"`
}

type NewRound struct{}

type Skip struct {
	Skips Int `json:"skips"`
}

func (Username) Tag() Action         { return ActionUsername }
func (CreateLobby) Tag() Action      { return ActionCreateLobby }
func (JoinLobby) Tag() Action        { return ActionJoinLobby }
func (LeaveLobby) Tag() Action       { return ActionLeaveLobby }
func (LobbyInfoRequest) Tag() Action { return ActionLobbyInfo }
func (KeepAlive) Tag() Action        { return ActionKeepAlive }
func (StartGameRequest) Tag() Action { return ActionStartGame }
func (ReadyBlind) Tag() Action       { return ActionReadyBlind }
func (UnreadyBlind) Tag() Action     { return ActionUnreadyBlind }
func (PlayHand) Tag() Action         { return ActionPlayHand }
func (StopGame) Tag() Action         { return ActionStopGame }
func (FailRound) Tag() Action        { return ActionFailRound }
func (SetAnte) Tag() Action          { return ActionSetAnte }
func (ClientVersion) Tag() Action    { return ActionVersion }
func (SetLocation) Tag() Action      { return ActionSetLocation }
func (NewRound) Tag() Action         { return ActionNewRound }
func (Skip) Tag() Action             { return ActionSkip }

func (Username) clientMessage()         {}
func (CreateLobby) clientMessage()      {}
func (JoinLobby) clientMessage()        {}
func (LeaveLobby) clientMessage()       {}
func (LobbyInfoRequest) clientMessage() {}
func (KeepAlive) clientMessage()        {}
func (StartGameRequest) clientMessage() {}
func (ReadyBlind) clientMessage()       {}
func (UnreadyBlind) clientMessage()     {}
func (PlayHand) clientMessage()         {}
func (StopGame) clientMessage()         {}
func (LobbyOptions) clientMessage()     {}
func (FailRound) clientMessage()        {}
func (SetAnte) clientMessage()          {}
func (ClientVersion) clientMessage()    {}
func (SetLocation) clientMessage()      {}
func (NewRound) clientMessage()         {}
func (Skip) clientMessage()             {}

func (SendPhantom) clientMessage()           {}
func (RemovePhantom) clientMessage()         {}
func (Asteroid) clientMessage()              {}
func (LetsGoGamblingNemesis) clientMessage() {}
func (EatPizza) clientMessage()              {}
func (SoldJoker) clientMessage()             {}
func (SpentLastShop) clientMessage()         {}
func (Magnet) clientMessage()                {}
func (MagnetResponse) clientMessage()        {}

type envelope struct {
	Action Action `json:"action"`
}

// Decode parses one tagged record. Unknown tags yield ErrUnknownAction so the
// caller can drop them; anything else that cannot be shaped yields ErrMalformed.
func Decode(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Action == "" {
		return nil, fmt.Errorf("%w: missing action", ErrMalformed)
	}

	switch env.Action {
	case ActionUsername:
		return decodeAs[Username](data)
	case ActionCreateLobby:
		return decodeAs[CreateLobby](data)
	case ActionJoinLobby:
		return decodeAs[JoinLobby](data)
	case ActionLeaveLobby:
		return LeaveLobby{}, nil
	case ActionLobbyInfo:
		return LobbyInfoRequest{}, nil
	case ActionKeepAlive:
		return KeepAlive{}, nil
	case ActionStartGame:
		return StartGameRequest{}, nil
	case ActionReadyBlind:
		return ReadyBlind{}, nil
	case ActionUnreadyBlind:
		return UnreadyBlind{}, nil
	case ActionPlayHand:
		return decodeAs[PlayHand](data)
	case ActionStopGame:
		return StopGame{}, nil
	case ActionLobbyOptions:
		return decodeOptions(data)
	case ActionFailRound:
		return FailRound{}, nil
	case ActionSetAnte:
		return decodeAs[SetAnte](data)
	case ActionVersion:
		return decodeAs[ClientVersion](data)
	case ActionSetLocation:
		return decodeAs[SetLocation](data)
	case ActionNewRound:
		return NewRound{}, nil
	case ActionSkip:
		return decodeAs[Skip](data)
	case ActionSendPhantom:
		return decodeAs[SendPhantom](data)
	case ActionRemovePhantom:
		return decodeAs[RemovePhantom](data)
	case ActionAsteroid:
		return Asteroid{}, nil
	case ActionLetsGoGamblingNemesis:
		return LetsGoGamblingNemesis{}, nil
	case ActionEatPizza:
		return decodeAs[EatPizza](data)
	case ActionSoldJoker:
		return SoldJoker{}, nil
	case ActionSpentLastShop:
		return decodeAs[SpentLastShop](data)
	case ActionMagnet:
		return Magnet{}, nil
	case ActionMagnetResponse:
		return decodeAs[MagnetResponse](data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
}

func decodeAs[T ClientMessage](data []byte) (ClientMessage, error) {
	var msg T
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, msg.Tag(), err)
	}
	return msg, nil
}

// decodeOptions flattens every non-tag field into a string map. Strings are
// taken verbatim; other JSON values keep their literal text ("true", "4").
func decodeOptions(data []byte) (ClientMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: lobbyOptions: %v", ErrMalformed, err)
	}
	opts := make(LobbyOptions, len(fields))
	for k, raw := range fields {
		if k == "action" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			opts[k] = s
			continue
		}
		opts[k] = strings.TrimSpace(string(raw))
	}
	return opts, nil
}
