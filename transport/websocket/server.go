package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rivalgrid/tictactoe-arena/internal/usecase"
)

const (
	actionSeekMatch      = "seek-match"
	actionMakeMove       = "make-move"
	actionSendMessage    = "send-message"
	actionRequestRematch = "request-rematch"

	eventOnlineCount          = "online-count"
	eventWaiting              = "waiting"
	eventMatchFound           = "match-found"
	eventMatchStarted         = "match-started"
	eventGameState            = "game-state"
	eventGameOver             = "game-over"
	eventRematchStarted       = "rematch-started"
	eventReceiveMessage       = "receive-message"
	eventOpponentDisconnected = "opponent-disconnected"
)

type arena interface {
	SeekMatch(connID string) (*usecase.MatchResult, error)
	MakeMove(ctx context.Context, connID, roomID string, cell int) (*usecase.MoveOutcome, error)
	Rematch(connID, roomID string) (*usecase.RematchOutcome, error)
	MemberSymbol(connID, roomID string) (string, error)
	Members(roomID string) ([2]usecase.Member, error)
	Disconnect(connID string) *usecase.Dissolution
}

// client is one live connection. Writes are serialized per connection;
// gorilla permits a single concurrent writer.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (that *client) write(msg *Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

type Server struct {
	logger   *slog.Logger
	arena    arena
	upgrader websocket.Upgrader

	handlers map[string]func(ctx context.Context, connID string, payload json.RawMessage) error

	clientsMutex sync.RWMutex
	clients      map[string]*client
}

func New(logger *slog.Logger, arena arena) *Server {
	server := &Server{
		logger: logger,
		arena:  arena,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		handlers: make(map[string]func(context.Context, string, json.RawMessage) error),
		clients:  make(map[string]*client),
	}

	server.handlers[actionSeekMatch] = server.handleSeekMatch
	server.handlers[actionMakeMove] = server.handleMakeMove
	server.handlers[actionSendMessage] = server.handleSendMessage
	server.handlers[actionRequestRematch] = server.handleRequestRematch

	return server
}

// Start - starts the WebSocket server and blocks until ctx is canceled
// or the listener fails.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.ServeWS(ctx, w, r)
	})

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// ServeWS - upgrades the connection and runs its read loop until the
// client goes away.
func (that *Server) ServeWS(ctx context.Context, writer http.ResponseWriter, req *http.Request) {
	log := that.logger.With("method", "ServeWS")

	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	connID := uuid.NewString()
	cl := &client{id: connID, conn: conn}

	that.clientsMutex.Lock()
	that.clients[connID] = cl
	that.clientsMutex.Unlock()

	log.Info("WebSocket connection established", "connID", connID)

	that.broadcastOnlineCount()

	defer func() {
		that.clientsMutex.Lock()
		delete(that.clients, connID)
		that.clientsMutex.Unlock()

		_ = conn.Close()

		that.handleDisconnect(connID)
	}()

	that.readLoop(ctx, cl)
}

// readLoop - processes messages from one client. Handlers run on this
// goroutine, so a single connection never interleaves its own events.
func (that *Server) readLoop(ctx context.Context, cl *client) {
	log := that.logger.With("method", "readLoop", "connID", cl.id)

	for {
		var message Message
		if err := cl.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("connection closed unexpectedly", "error", err)
			}

			return
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			continue
		}

		if err := handler(ctx, cl.id, message.Payload); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// handleDisconnect - cleans up whatever the connection occupied and
// tells the surviving room member, if any, that its opponent is gone.
func (that *Server) handleDisconnect(connID string) {
	log := that.logger.With("method", "handleDisconnect", "connID", connID)

	dissolution := that.arena.Disconnect(connID)

	if dissolution.PeerID != "" {
		if err := that.sendToClient(dissolution.PeerID, eventOpponentDisconnected, nil); err != nil {
			log.Error("failed to notify surviving member", "peerID", dissolution.PeerID, "error", err)
		}
	}

	that.broadcastOnlineCount()

	log.Info("connection cleaned up", "wasQueued", dissolution.WasQueued, "roomID", dissolution.RoomID)
}

func (that *Server) sendToClient(connID, action string, payload any) error {
	that.clientsMutex.RLock()
	cl, ok := that.clients[connID]
	that.clientsMutex.RUnlock()

	if !ok {
		return fmt.Errorf("no connection for %s", connID)
	}

	return cl.write(newMessage(action, payload))
}

// broadcastOnlineCount - sends the current connection count to every
// live client, on each connect and disconnect.
func (that *Server) broadcastOnlineCount() {
	log := that.logger.With("method", "broadcastOnlineCount")

	that.clientsMutex.RLock()
	count := len(that.clients)
	clients := make([]*client, 0, count)
	for _, cl := range that.clients {
		clients = append(clients, cl)
	}
	that.clientsMutex.RUnlock()

	msg := newMessage(eventOnlineCount, count)

	for _, cl := range clients {
		if err := cl.write(msg); err != nil {
			log.Error("failed to send online count", "connID", cl.id, "error", err)
		}
	}
}

func newMessage(action string, payload any) *Message {
	msg := &Message{Action: action}

	if payload == nil {
		return msg
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		// payloads are our own types; a marshal failure is a bug
		panic(fmt.Errorf("failed to marshal %s payload: %w", action, err))
	}

	msg.Payload = raw

	return msg
}
