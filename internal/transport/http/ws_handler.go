package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"learnearn/internal/app"
	"learnearn/internal/domain"
	"learnearn/internal/wallet"
)

type WSHandler struct {
	service  *app.GameService
	logger   *slog.Logger
	refresh  time.Duration
	upgrader websocket.Upgrader
}

// NewWSHandler serves the game protocol. The leaderboard is pushed every refresh
// while a client is connected; a non-positive refresh disables the push.
func NewWSHandler(service *app.GameService, logger *slog.Logger, refresh time.Duration) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		refresh: refresh,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startQuizPayload struct {
	Category string `json:"category"`
}

type optionPayload struct {
	Option *int `json:"option"`
}

type amountPayload struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

type connectedPayload struct {
	Address    string             `json:"address"`
	Categories []string           `json:"categories"`
	Account    app.AccountSummary `json:"account"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// conn owns the outbound queue of one socket.
type conn struct {
	send   chan outboundMessage[any]
	closed chan struct{}
}

// push enqueues a message unless the connection is closing. It is called from
// session listeners and must not touch the game service.
func (c *conn) push(typ string, payload any) {
	select {
	case c.send <- outboundMessage[any]{Type: typ, Payload: payload}:
	case <-c.closed:
	}
}

func (c *conn) fail(err error) {
	c.push("error", errorPayload{Message: err.Error()})
}

// ServeWS upgrades HTTP requests to websockets and wires them into the game use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	avatar := r.URL.Query().Get("avatar")
	address := r.URL.Query().Get("address")
	if avatar == "" {
		http.Error(w, "missing avatar", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	player, err := h.service.Connect(ctx, avatar, address)
	if err != nil {
		_ = ws.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	address = player.Address()
	logger := h.logger.With("address", address)

	c := &conn{
		send:   make(chan outboundMessage[any], 64),
		closed: make(chan struct{}),
	}
	writerDone := make(chan struct{})
	var workers sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := ws.WriteJSON(msg); err != nil {
				logger.Warn("ws write error", "error", err)
				// keep draining so producers never block on a dead socket
				for range c.send {
				}
				return
			}
		}
	}()

	if h.refresh > 0 {
		workers.Add(1)
		go func() {
			defer workers.Done()
			ticker := time.NewTicker(h.refresh)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					c.push("leaderboard", h.service.Leaderboard(ctx, address))
				case <-c.closed:
					return
				}
			}
		}()
	}

	listener := func(ev domain.SessionEvent) { c.push("session", ev) }

	c.push("connected", connectedPayload{
		Address:    address,
		Categories: h.service.Categories(),
		Account:    player.Account().Summary(),
	})
	c.push("leaderboard", h.service.Leaderboard(ctx, address))

	for {
		var in inboundMessage
		if err := ws.ReadJSON(&in); err != nil {
			break
		}
		if err := h.dispatch(ctx, c, address, in, listener, &workers); err != nil {
			c.fail(err)
		}
	}

	close(c.closed)
	cancel()
	h.service.Disconnect(address)
	workers.Wait()
	close(c.send)
	<-writerDone
	logger.Info("player disconnected")
}

var errUnsupported = errors.New("unsupported message type")

func (h *WSHandler) dispatch(ctx context.Context, c *conn, address string, in inboundMessage, listener domain.SessionListener, workers *sync.WaitGroup) error {
	switch in.Type {
	case "startQuiz":
		var p startQuizPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		_, err := h.service.StartQuiz(ctx, address, p.Category, listener)
		return err
	case "answer":
		option, err := decodeOption(in.Payload)
		if err != nil {
			return err
		}
		_, _, err = h.service.AnswerQuiz(address, option)
		return err
	case "startBattle":
		_, err := h.service.StartBattle(ctx, address, listener)
		return err
	case "battleAnswer":
		option, err := decodeOption(in.Payload)
		if err != nil {
			return err
		}
		_, _, err = h.service.AnswerBattle(address, option)
		return err
	case "claim":
		_, _, err := h.service.ClaimBattle(address)
		if err == nil {
			h.pushAccount(c, address)
		}
		return err
	case "leave":
		h.service.Leave(address)
		return nil
	case "deposit", "send", "withdraw":
		var p amountPayload
		if in.Type != "withdraw" {
			if err := decode(in.Payload, &p); err != nil {
				return err
			}
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			h.runWallet(ctx, c, address, in.Type, p)
		}()
		return nil
	case "account":
		h.pushAccount(c, address)
		return nil
	case "leaderboard":
		c.push("leaderboard", h.service.Leaderboard(ctx, address))
		return nil
	default:
		return errUnsupported
	}
}

func (h *WSHandler) runWallet(ctx context.Context, c *conn, address, kind string, p amountPayload) {
	notify := func(r wallet.Result) { c.push("wallet", r) }

	var (
		res wallet.Result
		err error
	)
	switch kind {
	case "deposit":
		res, err = h.service.Deposit(ctx, address, p.Amount, notify)
	case "send":
		res, err = h.service.Send(ctx, address, p.To, p.Amount, notify)
	default:
		res, err = h.service.Withdraw(ctx, address, notify)
	}
	if err != nil {
		c.fail(err)
		return
	}
	c.push("wallet", res)
	if res.Status == wallet.Settled {
		h.pushAccount(c, address)
	}
}

func (h *WSHandler) pushAccount(c *conn, address string) {
	summary, err := h.service.Account(address)
	if err != nil {
		c.fail(err)
		return
	}
	c.push("account", summary)
}

var errInvalidPayload = errors.New("invalid payload")

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errInvalidPayload
	}
	return nil
}

func decodeOption(raw json.RawMessage) (int, error) {
	var p optionPayload
	if err := decode(raw, &p); err != nil {
		return 0, err
	}
	if p.Option == nil {
		return 0, errInvalidPayload
	}
	return *p.Option, nil
}
