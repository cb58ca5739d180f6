package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"team-pulse/internal/message"
	"team-pulse/internal/middleware"
	"team-pulse/internal/pipeline"
	"team-pulse/internal/presence"
	"team-pulse/internal/realtime"
	"team-pulse/internal/typing"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for now (Dev mode)
	},
}

// Gateway exposes the realtime pipeline to clients: the websocket stream plus
// the REST surface for presence, typing, and messages.
type Gateway struct {
	presence *presence.Store
	typing   *typing.Tracker
	mux      *realtime.Mux
	pipe     *pipeline.Service
	msgs     *message.Repository
}

func New(pres *presence.Store, track *typing.Tracker, mux *realtime.Mux, pipe *pipeline.Service, msgs *message.Repository) *Gateway {
	return &Gateway{presence: pres, typing: track, mux: mux, pipe: pipe, msgs: msgs}
}

func identity(r *http.Request) (string, string, bool) {
	userID, ok := r.Context().Value(middleware.UserKey).(string)
	username, ok2 := r.Context().Value(middleware.UsernameKey).(string)
	return userID, username, ok && ok2
}

// ServeWS upgrades the connection, marks the user online, and starts the
// pumps. Every connection is subscribed to the global scope; direct scopes
// are opened by subscribe control messages as conversations open.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, username, ok := identity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	client := &Client{
		userID:   userID,
		username: username,
		conn:     conn,
		send:     make(chan []byte, 256),
		done:     make(chan struct{}),
		gw:       g,
		subs:     map[realtime.Scope]*realtime.Subscription{},
	}

	g.presence.SetOnline(userID)
	client.subscribe(realtime.Global)

	go client.writePump()
	go client.readPump()
}

func (g *Gateway) ListPresence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, g.presence.ListAll())
}

func (g *Gateway) SetStatus(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		CustomStatus string `json:"custom_status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := g.presence.SetCustomStatus(userID, req.CustomStatus); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := g.presence.Heartbeat(userID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) ListTyping(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	peer := r.URL.Query().Get("peer")
	scope := realtime.Global
	if peer != "" {
		scope = realtime.Direct(userID, peer)
	}
	signals := g.typing.ListActive(func(sig typing.Signal) bool {
		if sig.RecipientID == "" {
			return scope == realtime.Global
		}
		return realtime.Direct(sig.UserID, sig.RecipientID) == scope
	})
	writeJSON(w, signals)
}

func (g *Gateway) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, username, ok := identity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var msg message.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg.SenderID = userID
	msg.SenderName = username

	if err := g.pipe.Send(r.Context(), &msg); err != nil {
		if errors.Is(err, pipeline.ErrInvalidSender) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, &msg)
}

// GetHistory loads recent history for one conversation; the client calls this
// on reconnect to recover anything missed while disconnected.
func (g *Gateway) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	peer := r.URL.Query().Get("peer")

	var msgs []*message.Message
	var err error
	if peer == "" {
		msgs, err = g.msgs.ListBroadcast(r.Context(), 50)
	} else {
		msgs, err = g.msgs.ListConversation(r.Context(), userID, peer, 50)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, msgs)
}

func (g *Gateway) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _, ok := identity(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return
	}
	if err := g.msgs.MarkRead(r.Context(), id, userID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
