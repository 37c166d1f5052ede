package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// ---------- helpers ----------

// startTestServer spins up an httptest.Server with a Hub (accounts
// disabled) and returns the server, its WebSocket URL, and a cleanup func.
func startTestServer(t *testing.T) (*httptest.Server, string, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte("<html>test</html>"), 0o644)
	jsDir := filepath.Join(tmpDir, "js")
	os.MkdirAll(jsDir, 0o755)
	os.WriteFile(filepath.Join(jsDir, "main.js"), []byte("// test"), 0o644)

	hub := NewHub(nil)
	go hub.Run()

	mux := SetupRoutes(hub, tmpDir)
	srv := httptest.NewServer(mux)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	return srv, wsURL, func() {
		srv.Close()
	}
}

// dialWS opens a WebSocket connection with the given identity.
func dialWS(t *testing.T, wsURL, username string) *websocket.Conn {
	t.Helper()
	u := wsURL
	if username != "" {
		u += "?username=" + username
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	return conn
}

// readEnvelope reads one message from the WebSocket. Binary messages are
// msgpack-encoded game snapshots.
func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read WS: %v", err)
	}
	if msgType == websocket.BinaryMessage {
		var snap GameSnapshot
		if err := msgpack.Unmarshal(raw, &snap); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		return Envelope{T: MsgGameState, Data: snap}
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return env
}

// waitFor reads messages until one of the wanted type arrives.
func waitFor(t *testing.T, conn *websocket.Conn, msgType string) Envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		env := readEnvelope(t, conn)
		if env.T == msgType {
			return env
		}
	}
	t.Fatalf("did not receive %s in time", msgType)
	return Envelope{}
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	raw, _ := json.Marshal(Envelope{T: msgType, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// dataMap extracts the Data field as map[string]interface{}.
func dataMap(t *testing.T, env Envelope) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(env.Data)
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	return m
}

// createRoom creates a room over the WebSocket and returns its ID.
func createRoom(t *testing.T, conn *websocket.Conn, mode string) string {
	t.Helper()
	sendMsg(t, conn, MsgCreateRoom, CreateRoomMsg{Mode: mode})
	env := waitFor(t, conn, MsgRoomCreated)
	return dataMap(t, env)["roomId"].(string)
}

// startedPair creates a two-player skirmish room and starts the game.
// Alice hosts (teamA, first in join order), Bob joins (teamB).
func startedPair(t *testing.T, wsURL string) (c1, c2 *websocket.Conn, roomID string) {
	t.Helper()
	c1 = dialWS(t, wsURL, "Alice")
	c2 = dialWS(t, wsURL, "Bob")

	roomID = createRoom(t, c1, string(ModeSkirmish))
	sendMsg(t, c2, MsgJoinRoom, JoinRoomMsg{RoomID: roomID})
	waitFor(t, c2, MsgRoomJoined)

	sendMsg(t, c1, MsgStartGame, RoomMsg{RoomID: roomID})
	waitFor(t, c1, MsgRoundStart)
	waitFor(t, c2, MsgRoundStart)
	return c1, c2, roomID
}

// ---------- handshake ----------

func TestHandshakeSendsIdentity(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL, "Alice")
	defer c.Close()

	me := waitFor(t, c, MsgMe)
	if dataMap(t, me)["username"] != "Alice" {
		t.Errorf("expected username Alice, got %v", dataMap(t, me)["username"])
	}
}

func TestHandshakeAssignsGuestName(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL, "")
	defer c.Close()

	me := waitFor(t, c, MsgMe)
	name, _ := dataMap(t, me)["username"].(string)
	if !strings.HasPrefix(name, "Guest_") {
		t.Errorf("expected a generated guest name, got %q", name)
	}
}

// ---------- room lifecycle over WS ----------

func TestCreateAndJoinRoom(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL, "Alice")
	defer c1.Close()
	roomID := createRoom(t, c1, string(ModeSkirmish))

	c2 := dialWS(t, wsURL, "Bob")
	defer c2.Close()
	sendMsg(t, c2, MsgJoinRoom, JoinRoomMsg{RoomID: roomID})

	joined := waitFor(t, c2, MsgRoomJoined)
	d := dataMap(t, joined)
	if d["roomId"] != roomID {
		t.Errorf("expected roomId %s, got %v", roomID, d["roomId"])
	}
	if d["host"] != "Alice" {
		t.Errorf("expected host Alice, got %v", d["host"])
	}

	// The host also received a roster at creation time; wait for the
	// refreshed one that includes the new member.
	deadline := time.Now().Add(3 * time.Second)
	for {
		roster := waitFor(t, c1, MsgUpdatePlayers)
		raw, _ := json.Marshal(roster.Data)
		if strings.Contains(string(raw), "Bob") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("roster never included Bob, last %s", raw)
		}
	}
}

func TestJoinMissingRoomOverWS(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL, "Lost")
	defer c.Close()

	sendMsg(t, c, MsgJoinRoom, JoinRoomMsg{RoomID: GenerateRoomID()})
	waitFor(t, c, MsgError)
}

func TestListRoomsOverWS(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL, "Alice")
	defer c.Close()

	sendMsg(t, c, MsgListRooms, nil)
	env := waitFor(t, c, MsgRooms)
	raw, _ := json.Marshal(env.Data)
	var rooms []RoomInfo
	json.Unmarshal(raw, &rooms)
	if len(rooms) != 0 {
		t.Fatalf("expected 0 rooms, got %d", len(rooms))
	}

	roomID := createRoom(t, c, string(ModeDeathmatch))
	sendMsg(t, c, MsgListRooms, nil)
	env = waitFor(t, c, MsgRooms)
	raw, _ = json.Marshal(env.Data)
	json.Unmarshal(raw, &rooms)
	if len(rooms) != 1 || rooms[0].RoomID != roomID || rooms[0].Mode != string(ModeDeathmatch) {
		t.Errorf("unexpected room list %+v", rooms)
	}
}

func TestLeaveRoomTearsDownEmptyRoom(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL, "Alice")
	defer c.Close()
	createRoom(t, c, string(ModeSkirmish))

	sendMsg(t, c, MsgLeaveRoom, nil)
	sendMsg(t, c, MsgListRooms, nil)
	env := waitFor(t, c, MsgRooms)
	raw, _ := json.Marshal(env.Data)
	var rooms []RoomInfo
	json.Unmarshal(raw, &rooms)
	if len(rooms) != 0 {
		t.Errorf("room should be torn down after the last human left, got %+v", rooms)
	}
}

// ---------- match flow ----------

func TestStartGameBroadcastsRoundStart(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL, "Alice")
	defer c1.Close()
	c2 := dialWS(t, wsURL, "Bob")
	defer c2.Close()

	roomID := createRoom(t, c1, string(ModeSkirmish))
	sendMsg(t, c2, MsgJoinRoom, JoinRoomMsg{RoomID: roomID})
	waitFor(t, c2, MsgRoomJoined)

	sendMsg(t, c1, MsgStartGame, RoomMsg{RoomID: roomID})
	start := waitFor(t, c2, MsgRoundStart)
	d := dataMap(t, start)
	if d["round"].(float64) != 1 {
		t.Errorf("expected round 1, got %v", d["round"])
	}
	players, _ := d["players"].(map[string]interface{})
	if _, ok := players["Alice"]; !ok {
		t.Error("roundStart must carry the full player table")
	}
	if _, ok := players["Bob"]; !ok {
		t.Error("roundStart must carry the full player table")
	}
}

func TestNonHostCannotStart(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1 := dialWS(t, wsURL, "Alice")
	defer c1.Close()
	c2 := dialWS(t, wsURL, "Bob")
	defer c2.Close()

	roomID := createRoom(t, c1, string(ModeSkirmish))
	sendMsg(t, c2, MsgJoinRoom, JoinRoomMsg{RoomID: roomID})
	waitFor(t, c2, MsgRoomJoined)

	sendMsg(t, c2, MsgStartGame, RoomMsg{RoomID: roomID})
	env := waitFor(t, c2, MsgError)
	if dataMap(t, env)["msg"] != "not_host" {
		t.Errorf("expected not_host, got %v", dataMap(t, env)["msg"])
	}
}

func TestPlayerUpdateRebroadcast(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1, c2, roomID := startedPair(t, wsURL)
	defer c1.Close()
	defer c2.Close()

	sendMsg(t, c1, MsgPlayerUpdate, PlayerUpdateMsg{
		RoomID:   roomID,
		Position: Vec3{X: 10, Z: -4},
	})

	moved := waitFor(t, c2, MsgPlayerMoved)
	d := dataMap(t, moved)
	if d["username"] != "Alice" {
		t.Errorf("expected Alice's transform, got %v", d["username"])
	}
	pos, _ := d["position"].(map[string]interface{})
	if pos["x"].(float64) != 10 {
		t.Errorf("expected x=10, got %v", pos["x"])
	}
}

func TestShootBroadcastAndCooldown(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1, c2, roomID := startedPair(t, wsURL)
	defer c1.Close()
	defer c2.Close()

	shot := ShootMsg{RoomID: roomID, WeaponID: "classic", Point: Vec3{X: 1}}
	sendMsg(t, c1, MsgShoot, shot)
	sendMsg(t, c1, MsgShoot, shot)

	env := waitFor(t, c2, MsgPlayerShot)
	if dataMap(t, env)["username"] != "Alice" {
		t.Errorf("expected Alice's shot, got %v", dataMap(t, env)["username"])
	}
	rej := waitFor(t, c1, MsgShootRejected)
	if dataMap(t, rej)["reason"] != "cooldown" {
		t.Errorf("expected cooldown rejection, got %v", dataMap(t, rej)["reason"])
	}
}

func TestHitKillsAndResolvesRound(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1, c2, roomID := startedPair(t, wsURL)
	defer c1.Close()
	defer c2.Close()

	// Bob (teamB) reports a lethal hit on Alice (teamA)
	sendMsg(t, c2, MsgPlayerHit, PlayerHitMsg{
		RoomID: roomID,
		Target: "Alice",
		Damage: 999,
		Killer: "Bob",
	})

	died := waitFor(t, c1, MsgPlayerDied)
	d := dataMap(t, died)
	if d["username"] != "Alice" || d["killer"] != "Bob" {
		t.Errorf("unexpected death broadcast %v", d)
	}

	end := waitFor(t, c2, MsgRoundEnd)
	de := dataMap(t, end)
	if de["winner"] != TeamB {
		t.Errorf("expected teamB round win, got %v", de["winner"])
	}
	score, _ := de["score"].(map[string]interface{})
	if score["teamB"].(float64) != 1 {
		t.Errorf("expected score teamB=1, got %v", score)
	}
}

func TestSnapshotBroadcastDecodes(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1, c2, roomID := startedPair(t, wsURL)
	defer c1.Close()
	defer c2.Close()

	sendMsg(t, c2, MsgPlayerHit, PlayerHitMsg{
		RoomID: roomID,
		Target: "Alice",
		Damage: 10,
		Killer: "Bob",
	})

	env := waitFor(t, c1, MsgGameState)
	snap := env.Data.(GameSnapshot)
	alice, ok := snap.Players["Alice"]
	if !ok {
		t.Fatal("snapshot must carry every player")
	}
	if alice.Health != PlayerMaxHealth-10 {
		t.Errorf("expected health %d in snapshot, got %d", PlayerMaxHealth-10, alice.Health)
	}
}

func TestBuyWeaponOverWS(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c1, c2, roomID := startedPair(t, wsURL)
	defer c1.Close()
	defer c2.Close()

	sendMsg(t, c1, MsgBuyWeapon, BuyWeaponMsg{RoomID: roomID, WeaponID: "ghost"})
	env := waitFor(t, c1, MsgMoneyUpdated)
	d := dataMap(t, env)
	if d["weapon"] != "ghost" {
		t.Errorf("expected ghost equipped, got %v", d["weapon"])
	}
	if d["money"].(float64) != float64(StartMoney-WeaponByID["ghost"].Price) {
		t.Errorf("unexpected balance %v", d["money"])
	}
}

func TestTrainingModeStartsImmediately(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL, "Alice")
	defer c.Close()

	sendMsg(t, c, MsgStartTraining, nil)
	waitFor(t, c, MsgRoomCreated)
	start := waitFor(t, c, MsgRoundStart)
	d := dataMap(t, start)
	if d["mode"] != string(ModeTraining) {
		t.Errorf("expected training mode, got %v", d["mode"])
	}
	players, _ := d["players"].(map[string]interface{})
	if len(players) != 2 {
		t.Errorf("training must pit the player against one bot, got %d players", len(players))
	}
}

func TestRegisterDisabledWithoutDatabase(t *testing.T) {
	_, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL, "Alice")
	defer c.Close()

	sendMsg(t, c, MsgRegister, RegisterMsg{Username: "alice", Password: "secret1"})
	env := waitFor(t, c, MsgError)
	if dataMap(t, env)["msg"] != "accounts disabled" {
		t.Errorf("expected accounts disabled, got %v", dataMap(t, env)["msg"])
	}
}

// ---------- HTTP surface ----------

func TestSPARoutingRoot(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("GET / status = %d, want 200", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("expected Cache-Control: no-cache, got %q", cc)
	}
}

func TestSPARoutingRoomPath(t *testing.T) {
	srv, _, cleanup := startTestServer(t)
	defer cleanup()

	resp, err := http.Get(srv.URL + "/" + GenerateRoomID())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("room path status = %d, want 200", resp.StatusCode)
	}
	buf := make([]byte, 100)
	n, _ := resp.Body.Read(buf)
	if !strings.Contains(string(buf[:n]), "<html>") {
		t.Error("room path should serve index.html")
	}
}

func TestInviteQRCode(t *testing.T) {
	srv, wsURL, cleanup := startTestServer(t)
	defer cleanup()

	c := dialWS(t, wsURL, "Alice")
	defer c.Close()
	roomID := createRoom(t, c, string(ModeSkirmish))

	resp, err := http.Get(srv.URL + "/invite?room=" + roomID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Errorf("invite status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}

	missing, err := http.Get(srv.URL + "/invite?room=" + GenerateRoomID())
	if err != nil {
		t.Fatal(err)
	}
	defer missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing room invite status = %d, want 404", missing.StatusCode)
	}
}

// ---------- util ----------

func TestGenerateIDLength(t *testing.T) {
	if id := GenerateID(4); len(id) != 8 {
		t.Errorf("expected 8 hex chars, got %q", id)
	}
}

func TestGenerateRoomIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRoomID()
		if seen[id] {
			t.Fatalf("duplicate room id %s", id)
		}
		seen[id] = true
	}
}

func TestClampInt(t *testing.T) {
	tests := []struct {
		v, min, max, want int
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{15, 0, 10, 10},
	}
	for _, tt := range tests {
		if got := ClampInt(tt.v, tt.min, tt.max); got != tt.want {
			t.Errorf("ClampInt(%d, %d, %d) = %d, want %d", tt.v, tt.min, tt.max, got, tt.want)
		}
	}
}

func TestGroundDistanceIgnoresHeight(t *testing.T) {
	a := Vec3{X: 0, Y: 50, Z: 0}
	b := Vec3{X: 3, Y: 0, Z: 4}
	if d := GroundDistance(a, b); d != 5 {
		t.Errorf("GroundDistance = %f, want 5", d)
	}
	if d := Distance(Vec3{}, Vec3{X: 0, Y: 3, Z: 4}); d != 5 {
		t.Errorf("Distance = %f, want 5", d)
	}
}
