package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xuri/excelize/v2"

	"learnearn/internal/app"
	"learnearn/internal/clock"
	"learnearn/internal/content"
	"learnearn/internal/infra/memory"
	"learnearn/internal/random"
	"learnearn/internal/ranking"
	"learnearn/internal/wallet"
)

const testAddress = "0x1234567890123456789012345678901234567890"

func newTestServer(t *testing.T, checks map[string]Checker) *httptest.Server {
	t.Helper()
	clk := clock.NewManual(time.Unix(1_700_000_000, 0))
	table := content.Builtin()
	sim := wallet.NewSimulated(clk, random.NewSequence(0.4), 0)
	service := app.NewGameService(
		memory.NewPlayerStore(),
		memory.NewCategoryRepository(table, time.Minute),
		ranking.NewRecordStore(memory.NewRecordStorage(), "", nil),
		wallet.NewSession(sim, "0x1234567890123456789012345678901234567890", nil),
		app.Options{Scheduler: clk, Random: random.NewSequence(0.99), Languages: table.Languages()},
	)
	server := httptest.NewServer(NewRouter(service, RouterOptions{Checks: checks, Avatars: table.Avatars(), Facts: table}))
	t.Cleanup(server.Close)
	return server
}

func TestWebSocketQuizFlow(t *testing.T) {
	server := newTestServer(t, nil)

	u := "ws" + server.URL[len("http"):] + "/ws?avatar=avatar-1&address=" + testAddress
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect connected event first.
	_, payload := readNext(conn, t, "connected")
	if payload["address"] != testAddress {
		t.Fatalf("expected connected address %s, got %v", testAddress, payload["address"])
	}
	readNext(conn, t, "leaderboard")

	send(t, conn, "startQuiz", map[string]any{"category": "English"})
	_, payload = readNext(conn, t, "session")
	if payload["type"] != "question" || payload["category"] != "English" {
		t.Fatalf("expected first question, got %v", payload)
	}
	prompt := payload["question"].(map[string]any)["prompt"].(string)

	send(t, conn, "answer", map[string]any{"option": correctOption(t, prompt)})
	_, payload = readNext(conn, t, "session")
	if payload["type"] != "answered" {
		t.Fatalf("expected answered event, got %v", payload)
	}
	answer := payload["answer"].(map[string]any)
	if answer["correct"] != true || answer["tokensEarned"].(float64) != 10 {
		t.Fatalf("unexpected answer %v", answer)
	}

	send(t, conn, "account", nil)
	_, payload = readNext(conn, t, "account")
	if payload["balance"].(float64) != 10 {
		t.Fatalf("expected balance 10, got %v", payload["balance"])
	}
}

func TestWebSocketWalletFlow(t *testing.T) {
	server := newTestServer(t, nil)

	u := "ws" + server.URL[len("http"):] + "/ws?avatar=avatar-2"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readNext(conn, t, "connected")
	readNext(conn, t, "leaderboard")

	send(t, conn, "deposit", map[string]any{"amount": 25})
	_, payload := readNext(conn, t, "wallet")
	if payload["status"] != "pending" {
		t.Fatalf("expected pending first, got %v", payload)
	}
	_, payload = readNext(conn, t, "wallet")
	if payload["status"] != "settled" || payload["amount"].(float64) != 25 {
		t.Fatalf("expected settled deposit, got %v", payload)
	}
	_, payload = readNext(conn, t, "account")
	if payload["balance"].(float64) != 25 || payload["balanceCelo"] != "0.2500" {
		t.Fatalf("unexpected account %v", payload)
	}

	send(t, conn, "send", map[string]any{"to": testAddress, "amount": 100})
	_, payload = readNext(conn, t, "wallet")
	if payload["status"] != "failed" {
		t.Fatalf("expected failed send, got %v", payload)
	}

	send(t, conn, "bogus", nil)
	readNext(conn, t, "error")
}

func TestWebSocketRequiresAvatar(t *testing.T) {
	server := newTestServer(t, nil)

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHTTPAPI(t *testing.T) {
	server := newTestServer(t, map[string]Checker{
		"ok":   CheckFunc(func(context.Context) error { return nil }),
		"down": CheckFunc(func(context.Context) error { return errors.New("unreachable") }),
	})

	var categories []string
	getJSON(t, server.URL+"/api/categories", http.StatusOK, &categories)
	if len(categories) != 9 {
		t.Fatalf("expected 9 categories, got %v", categories)
	}

	var leaderboard []map[string]any
	getJSON(t, server.URL+"/api/leaderboard?address="+testAddress, http.StatusOK, &leaderboard)
	if len(leaderboard) != 0 {
		t.Fatalf("expected empty leaderboard, got %v", leaderboard)
	}

	var health map[string]map[string]string
	getJSON(t, server.URL+"/healthz", http.StatusServiceUnavailable, &health)
	if health["ok"]["status"] != "ok" || health["down"]["status"] != "error" {
		t.Fatalf("unexpected health %v", health)
	}

	var notFound map[string]string
	getJSON(t, server.URL+"/api/players/"+testAddress, http.StatusNotFound, &notFound)

	resp, err := http.Get(server.URL + "/api/leaderboard.xlsx")
	if err != nil {
		t.Fatalf("get xlsx: %v", err)
	}
	defer resp.Body.Close()
	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
}

func TestFactsEndpoint(t *testing.T) {
	server := newTestServer(t, nil)

	var facts []map[string]string
	getJSON(t, server.URL+"/api/categories/Xitsonga/facts", http.StatusOK, &facts)
	if len(facts) != 5 || facts[0]["title"] != "Cross-Border Reach" || facts[0]["text"] == "" {
		t.Fatalf("unexpected facts %v", facts)
	}

	var notFound map[string]string
	getJSON(t, server.URL+"/api/categories/Klingon/facts", http.StatusNotFound, &notFound)
}

func TestPlayerLookupIgnoresAddressCase(t *testing.T) {
	server := newTestServer(t, nil)

	const lower = "0xabcdef0123456789abcdef0123456789abcdef01"
	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws?avatar=avatar-1&address="+lower, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_, payload := readNext(conn, t, "connected")
	stored := payload["address"].(string)
	readNext(conn, t, "leaderboard")

	for _, addr := range []string{lower, "0x" + strings.ToUpper(lower[2:]), stored} {
		var account map[string]any
		getJSON(t, server.URL+"/api/players/"+addr, http.StatusOK, &account)
		if account["address"] != stored {
			t.Fatalf("expected account %s for %s, got %v", stored, addr, account["address"])
		}

		var board []map[string]any
		getJSON(t, server.URL+"/api/leaderboard?address="+addr, http.StatusOK, &board)
		if len(board) != 1 || board[0]["isUser"] != true {
			t.Fatalf("expected own entry flagged for %s, got %v", addr, board)
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, msg.Payload)
	}
	payload := map[string]any{}
	_ = json.Unmarshal(msg.Payload, &payload)
	return msg.Type, payload
}

func getJSON(t *testing.T, url string, status int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != status {
		t.Fatalf("get %s: expected %d, got %d", url, status, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

func correctOption(t *testing.T, prompt string) int {
	t.Helper()
	english, err := content.Builtin().LoadCategory(context.Background(), "English")
	if err != nil {
		t.Fatalf("load english: %v", err)
	}
	for _, q := range english.Questions {
		if q.Prompt == prompt {
			return q.Correct
		}
	}
	t.Fatalf("prompt %q not in English table", prompt)
	return 0
}
