package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rivalgrid/tictactoe-arena/internal/apperror"
	"github.com/rivalgrid/tictactoe-arena/internal/entity"
)

type statsRepo interface {
	RecordResult(ctx context.Context, result string) error
}

type locationKind int

const (
	locQueue locationKind = iota + 1
	locRoom
)

// location is the single source of truth for where a connection
// currently lives: the waiting queue or exactly one room, never both.
type location struct {
	kind   locationKind
	roomID string
}

// Member identifies one room occupant for the transport layer.
type Member struct {
	ID     string
	Symbol string
}

// MatchResult is the outcome of a seek-match call.
type MatchResult struct {
	// Already is set when the connection was queued before the call;
	// the repeated request is a no-op and nothing should be emitted.
	Already bool
	// Waiting is set when the connection entered the queue but no
	// opponent is available yet.
	Waiting bool

	RoomID  string
	Members [2]Member
	State   *entity.GameState
}

// MoveOutcome is the state to broadcast after an accepted move.
type MoveOutcome struct {
	RoomID  string
	Members [2]Member
	State   *entity.GameState
	// Result is the winner symbol, entity.ResultDraw, or "" while the
	// game is still open.
	Result string
}

// RematchOutcome reports whether a rematch vote completed the pair.
type RematchOutcome struct {
	Started bool
	RoomID  string
	Members [2]Member
	State   *entity.GameState
}

// Dissolution describes the cleanup performed for a lost connection.
type Dissolution struct {
	WasQueued bool
	RoomID    string
	// PeerID is the surviving member to notify, empty if the
	// connection was not in a room.
	PeerID string
}

// Arena owns the matchmaking queue, the room table and the
// connection-location map. Every operation runs under one mutex from
// start to finish, so no two seek calls interleave, a connection is
// never paired twice, and a move or disconnect is handled to
// completion before the next event touches shared state.
type Arena struct {
	logger *slog.Logger
	stats  statsRepo

	mu        sync.Mutex
	queue     []string
	rooms     map[string]*entity.Room
	locations map[string]location
}

func NewArena(logger *slog.Logger, stats statsRepo) *Arena {
	return &Arena{
		logger:    logger,
		stats:     stats,
		rooms:     make(map[string]*entity.Room),
		locations: make(map[string]location),
	}
}

// SeekMatch enqueues the connection and pairs the two oldest waiting
// entries into a room, first-queued taking X.
func (that *Arena) SeekMatch(connID string) (*MatchResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if loc, ok := that.locations[connID]; ok {
		if loc.kind == locRoom {
			return nil, fmt.Errorf("%w: %s", apperror.ErrAlreadyInRoom, loc.roomID)
		}

		return &MatchResult{Already: true}, nil
	}

	that.queue = append(that.queue, connID)
	that.locations[connID] = location{kind: locQueue}

	if len(that.queue) < 2 {
		return &MatchResult{Waiting: true}, nil
	}

	firstID, secondID := that.queue[0], that.queue[1]
	that.queue = that.queue[2:]

	roomID := fmt.Sprintf("room-%s-%s", firstID, secondID)
	room := entity.NewRoom(roomID, firstID, secondID)

	that.rooms[roomID] = room
	that.locations[firstID] = location{kind: locRoom, roomID: roomID}
	that.locations[secondID] = location{kind: locRoom, roomID: roomID}

	that.logger.Info("room created", "roomID", roomID)

	return &MatchResult{
		RoomID:  roomID,
		Members: roomMembers(room),
		State:   room.Snapshot(),
	}, nil
}

// MakeMove applies a move on behalf of connID and reports the state to
// broadcast. Guard failures surface as sentinel errors; the room is
// untouched on any of them.
func (that *Arena) MakeMove(ctx context.Context, connID, roomID string, cell int) (*MoveOutcome, error) {
	that.mu.Lock()

	room, ok := that.rooms[roomID]
	if !ok {
		that.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	member, ok := room.Member(connID)
	if !ok {
		that.mu.Unlock()
		return nil, fmt.Errorf("%w: room %s", apperror.ErrNotRoomMember, roomID)
	}

	result, err := room.ApplyMove(member.Symbol, cell)
	if err != nil {
		that.mu.Unlock()
		return nil, fmt.Errorf("failed to apply move: %w", err)
	}

	outcome := &MoveOutcome{
		RoomID:  roomID,
		Members: roomMembers(room),
		State:   room.Snapshot(),
		Result:  result,
	}

	that.mu.Unlock()

	if result != "" {
		that.recordResult(ctx, result)
	}

	return outcome, nil
}

// Rematch registers a rematch vote. A duplicate vote is a no-op; once
// both members have voted the board and turn reset while score and
// streak carry over.
func (that *Arena) Rematch(connID, roomID string) (*RematchOutcome, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	if _, ok = room.Member(connID); !ok {
		return nil, fmt.Errorf("%w: room %s", apperror.ErrNotRoomMember, roomID)
	}

	if !room.VoteRematch(connID) {
		return &RematchOutcome{RoomID: roomID}, nil
	}

	that.logger.Info("rematch started", "roomID", roomID)

	return &RematchOutcome{
		Started: true,
		RoomID:  roomID,
		Members: roomMembers(room),
		State:   room.Snapshot(),
	}, nil
}

// MemberSymbol resolves the symbol connID plays in the room, for the
// chat relay.
func (that *Arena) MemberSymbol(connID, roomID string) (string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return "", fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	member, ok := room.Member(connID)
	if !ok {
		return "", fmt.Errorf("%w: room %s", apperror.ErrNotRoomMember, roomID)
	}

	return member.Symbol, nil
}

// Members lists the occupants of a room.
func (that *Arena) Members(roomID string) ([2]Member, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	room, ok := that.rooms[roomID]
	if !ok {
		return [2]Member{}, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, roomID)
	}

	return roomMembers(room), nil
}

// Disconnect removes a lost connection from whichever of the queue or
// the room table it occupies. A room is destroyed, never degraded: the
// surviving member is reported so the transport can notify it, and
// score, streak and board are discarded with the room.
func (that *Arena) Disconnect(connID string) *Dissolution {
	that.mu.Lock()
	defer that.mu.Unlock()

	loc, ok := that.locations[connID]
	if !ok {
		return &Dissolution{}
	}

	delete(that.locations, connID)

	if loc.kind == locQueue {
		for i, queued := range that.queue {
			if queued == connID {
				that.queue = append(that.queue[:i], that.queue[i+1:]...)
				break
			}
		}

		return &Dissolution{WasQueued: true}
	}

	room, ok := that.rooms[loc.roomID]
	if !ok {
		return &Dissolution{}
	}

	delete(that.rooms, loc.roomID)

	dissolution := &Dissolution{RoomID: loc.roomID}

	if peer, ok := room.Opponent(connID); ok {
		delete(that.locations, peer.ID)
		dissolution.PeerID = peer.ID
	}

	that.logger.Info("room dissolved", "roomID", loc.roomID)

	return dissolution
}

// recordResult is best-effort: a statistics failure must never affect
// gameplay.
func (that *Arena) recordResult(ctx context.Context, result string) {
	if that.stats == nil {
		return
	}

	if err := that.stats.RecordResult(ctx, result); err != nil {
		that.logger.Error("failed to record game result", "result", result, "error", err)
	}
}

func roomMembers(room *entity.Room) [2]Member {
	var members [2]Member
	for i, player := range room.Players {
		members[i] = Member{ID: player.ID, Symbol: player.Symbol}
	}

	return members
}
