package main

import "encoding/json"

// Client -> Server message types
const (
	MsgCreateRoom    = "createRoom"
	MsgJoinRoom      = "joinRoom"
	MsgListRooms     = "listRooms"
	MsgPlayerList    = "requestPlayerList"
	MsgStartGame     = "startGame"
	MsgStartTraining = "startTraining"
	MsgPlayerUpdate  = "playerUpdate"
	MsgShoot         = "shoot"
	MsgPlayerHit     = "playerHit"
	MsgPlantBomb     = "plantBomb"
	MsgDefuseBomb    = "defuseBomb"
	MsgSwitchTeam    = "switchTeam"
	MsgBuyWeapon     = "buyWeapon"
	MsgLeaveRoom     = "leaveRoom"
	MsgRegister      = "register"
	MsgLogin         = "login"
	MsgAuth          = "auth"
)

// Server -> Client message types
const (
	MsgMe            = "me"
	MsgRoomCreated   = "roomCreated"
	MsgRoomJoined    = "roomJoined"
	MsgRoomFull      = "roomFull"
	MsgRooms         = "rooms"
	MsgUpdatePlayers = "updatePlayers"
	MsgRoundStart    = "roundStart"
	MsgGameState     = "gameStateUpdate" // msgpack binary
	MsgPlayerMoved   = "playerMoved"
	MsgPlayerShot    = "playerShot"
	MsgShootRejected = "shootRejected"
	MsgPlayerDied    = "playerDied"
	MsgRespawned     = "playerRespawned"
	MsgRoundEnd      = "roundEnd"
	MsgGameEnd       = "gameEnd"
	MsgBombPlanted   = "bombPlanted"
	MsgBombDefused   = "bombDefused"
	MsgTeamSwitched  = "teamSwitched"
	MsgMoneyUpdated  = "moneyUpdated"
	MsgLeaderboard   = "leaderboardUpdate"
	MsgDisconnected  = "playerDisconnected"
	MsgError         = "error"
	MsgRegistered    = "registered"
	MsgLoggedIn      = "loggedIn"
	MsgAuthed        = "authed"
)

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages — json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// CreateRoomMsg requests a new room
type CreateRoomMsg struct {
	Mode       string `json:"mode"`
	RoundLimit int    `json:"roundLimit,omitempty"`
	KillLimit  int    `json:"killLimit,omitempty"`
	BotCount   int    `json:"botCount,omitempty"`
}

// JoinRoomMsg requests membership in an existing room
type JoinRoomMsg struct {
	RoomID string `json:"roomId"`
}

// RoomMsg targets an existing room with no further payload
type RoomMsg struct {
	RoomID string `json:"roomId"`
}

// RoomReply answers createRoom/joinRoom
type RoomReply struct {
	RoomID string `json:"roomId"`
	Host   string `json:"host"`
	Mode   string `json:"mode"`
}

// RoomInfo is one entry in the room list
type RoomInfo struct {
	RoomID  string `json:"roomId"`
	Mode    string `json:"mode"`
	Players int    `json:"players"`
}

// PlayerUpdateMsg carries a client-reported transform
type PlayerUpdateMsg struct {
	RoomID      string `json:"roomId"`
	Position    Vec3   `json:"position"`
	Orientation Vec3   `json:"rotation"`
}

// PlayerMovedMsg is rebroadcast to the rest of the room
type PlayerMovedMsg struct {
	Identity    string `json:"username"`
	Position    Vec3   `json:"position"`
	Orientation Vec3   `json:"rotation"`
}

// ShootMsg is a fire request; the server enforces only the fire interval
type ShootMsg struct {
	RoomID   string `json:"roomId"`
	Point    Vec3   `json:"point"`
	WeaponID string `json:"weaponId"`
}

// PlayerShotMsg is rebroadcast on an accepted shot
type PlayerShotMsg struct {
	Identity string `json:"username"`
	Point    Vec3   `json:"point"`
	WeaponID string `json:"weaponId"`
}

// ShootRejectedMsg carries the rejection reason back to the shooter
type ShootRejectedMsg struct {
	Reason string `json:"reason"`
}

// PlayerHitMsg reports a claimed hit. Damage is client-trusted by design;
// the server applies it without recomputing geometry.
type PlayerHitMsg struct {
	RoomID string `json:"roomId"`
	Target string `json:"targetUsername"`
	Damage int    `json:"damage"`
	Killer string `json:"killerUsername"`
}

// PlayerDiedMsg is broadcast on a death
type PlayerDiedMsg struct {
	Identity string `json:"username"`
	Killer   string `json:"killer"`
}

// RespawnedMsg is broadcast when a deathmatch respawn fires
type RespawnedMsg struct {
	Identity string `json:"username"`
	Position Vec3   `json:"position"`
}

// PlantBombMsg arms the objective at a position
type PlantBombMsg struct {
	RoomID   string `json:"roomId"`
	Position Vec3   `json:"position"`
}

// BombMsg is broadcast on plant/defuse
type BombMsg struct {
	Identity string `json:"username"`
	Position Vec3   `json:"position,omitempty"`
}

// TeamSwitchedMsg is broadcast after a team change
type TeamSwitchedMsg struct {
	Identity string `json:"username"`
	Team     string `json:"team"`
}

// BuyWeaponMsg requests a purchase
type BuyWeaponMsg struct {
	RoomID   string `json:"roomId"`
	WeaponID string `json:"weaponId"`
}

// MoneyUpdatedMsg answers a successful purchase or grant
type MoneyUpdatedMsg struct {
	Money  int    `json:"money"`
	Weapon string `json:"weapon,omitempty"`
}

// LeaderboardEntryMsg is one row of the in-match standings
type LeaderboardEntryMsg struct {
	Identity string `json:"username"`
	Kills    int    `json:"kills"`
	Team     string `json:"team"`
}

// RoundStartMsg announces a new round with the full authoritative state
type RoundStartMsg struct {
	Round   int                     `json:"round"`
	Score   Score                   `json:"score"`
	Mode    string                  `json:"mode"`
	Players map[string]*PlayerState `json:"players"`
}

// RoundEndMsg announces a resolved round; empty winner is a draw
type RoundEndMsg struct {
	Winner string `json:"winner"`
	Reason string `json:"reason"`
	Score  Score  `json:"score"`
}

// GameEndMsg announces the final outcome
type GameEndMsg struct {
	Winner string `json:"winner"`
	Reason string `json:"reason"`
	Score  Score  `json:"score"`
}

// DisconnectedMsg is broadcast when a member leaves mid-game
type DisconnectedMsg struct {
	Identity string `json:"username"`
}

// ErrorMsg carries a rejection reason to the originating caller only
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// GameSnapshot is the msgpack-encoded state broadcast
type GameSnapshot struct {
	Round   int                     `msgpack:"round"`
	Score   Score                   `msgpack:"score"`
	Players map[string]*PlayerState `msgpack:"players"`
	Bomb    *Bomb                   `msgpack:"bomb,omitempty"`
}

// RegisterMsg creates an account
type RegisterMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginMsg authenticates with credentials
type LoginMsg struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthMsg authenticates with a previously issued token
type AuthMsg struct {
	Token string `json:"token"`
}

// AuthReply answers register/login/auth
type AuthReply struct {
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}
