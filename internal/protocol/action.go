// Package protocol defines the tagged JSON records exchanged between game
// clients and the relay. Every record is a JSON object whose "action" field
// names its kind.
package protocol

import "errors"

// Action is the discriminant tag of a message.
type Action string

// Client to server (and forwarded) tags.
const (
	ActionUsername              Action = "username"
	ActionCreateLobby           Action = "createLobby"
	ActionJoinLobby             Action = "joinLobby"
	ActionLeaveLobby            Action = "leaveLobby"
	ActionLobbyInfo             Action = "lobbyInfo"
	ActionKeepAlive             Action = "keepAlive"
	ActionStartGame             Action = "startGame"
	ActionReadyBlind            Action = "readyBlind"
	ActionUnreadyBlind          Action = "unreadyBlind"
	ActionPlayHand              Action = "playHand"
	ActionStopGame              Action = "stopGame"
	ActionLobbyOptions          Action = "lobbyOptions"
	ActionFailRound             Action = "failRound"
	ActionSetAnte               Action = "setAnte"
	ActionVersion               Action = "version"
	ActionSetLocation           Action = "setLocation"
	ActionNewRound              Action = "newRound"
	ActionSkip                  Action = "skip"
	ActionSendPhantom           Action = "sendPhantom"
	ActionRemovePhantom         Action = "removePhantom"
	ActionAsteroid              Action = "asteroid"
	ActionLetsGoGamblingNemesis Action = "letsGoGamblingNemesis"
	ActionEatPizza              Action = "eatPizza"
	ActionSoldJoker             Action = "soldJoker"
	ActionSpentLastShop         Action = "spentLastShop"
	ActionMagnet                Action = "magnet"
	ActionMagnetResponse        Action = "magnetResponse"
)

// Server to client only tags.
const (
	ActionConnected    Action = "connected"
	ActionError        Action = "error"
	ActionJoinedLobby  Action = "joinedLobby"
	ActionStartBlind   Action = "startBlind"
	ActionWinGame      Action = "winGame"
	ActionLoseGame     Action = "loseGame"
	ActionPlayerInfo   Action = "playerInfo"
	ActionEnemyInfo    Action = "enemyInfo"
	ActionEndPvP       Action = "endPvP"
	ActionSpeedrun     Action = "speedrun"
	ActionKeepAliveAck Action = "keepAliveAck"
)

var (
	// ErrMalformed is returned for payloads that are not a tagged JSON object
	// or whose fields do not match the tag's shape.
	ErrMalformed = errors.New("malformed message")

	// ErrUnknownAction is returned for well-formed records with a tag the
	// relay does not handle.
	ErrUnknownAction = errors.New("unknown action")
)

// Message is any record that can be put on the wire.
type Message interface {
	Tag() Action
}
