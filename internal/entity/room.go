package entity

import (
	"errors"
	"fmt"

	"github.com/rivalgrid/tictactoe-arena/internal/apperror"
)

const (
	PlayerX = "X"
	PlayerO = "O"

	// ResultDraw marks a finished game without a winner.
	ResultDraw = "draw"

	EmptyCell = ""
)

var (
	ErrInvalidCell = errors.New("invalid cell index")

	WinCombos = [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
)

// Room is the authoritative state of one two-player match.
// It is mutated only through ApplyMove, VoteRematch and ResetForRematch;
// callers are responsible for serializing access.
type Room struct {
	ID           string          `json:"id"`
	Players      []*Player       `json:"players"`
	Board        [9]string       `json:"board"`
	Turn         string          `json:"turn"`
	Score        map[string]int  `json:"score"`
	Streak       map[string]int  `json:"streak"`
	RematchVotes map[string]bool `json:"-"`
	Finished     bool            `json:"-"`
}

// GameState is the snapshot broadcast to both members after every
// move, room creation and rematch.
type GameState struct {
	Board  [9]string      `json:"board"`
	Turn   string         `json:"turn"`
	Score  map[string]int `json:"score"`
	Streak map[string]int `json:"streak"`
}

// NewRoom creates a room for the two given connections.
// The first connection gets X and the opening turn, the second gets O.
func NewRoom(id, firstID, secondID string) *Room {
	return &Room{
		ID: id,
		Players: []*Player{
			{ID: firstID, Symbol: PlayerX},
			{ID: secondID, Symbol: PlayerO},
		},
		Turn:         PlayerX,
		Score:        map[string]int{PlayerX: 0, PlayerO: 0},
		Streak:       map[string]int{PlayerX: 0, PlayerO: 0},
		RematchVotes: make(map[string]bool),
	}
}

// Member returns the room member with the given connection id.
func (that *Room) Member(connID string) (*Player, bool) {
	for _, player := range that.Players {
		if player.ID == connID {
			return player, true
		}
	}

	return nil, false
}

// Opponent returns the other member of the room.
func (that *Room) Opponent(connID string) (*Player, bool) {
	for _, player := range that.Players {
		if player.ID != connID {
			return player, true
		}
	}

	return nil, false
}

// DetermineResult evaluates the board: a symbol if one of the eight
// triples is uniform and non-empty, ResultDraw if the board is full
// without one, an empty string while the game is still open.
func (that *Room) DetermineResult() string {
	for _, combo := range WinCombos {
		a, b, c := that.Board[combo[0]], that.Board[combo[1]], that.Board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	for _, cell := range that.Board {
		if cell == EmptyCell {
			return ""
		}
	}

	return ResultDraw
}

// ApplyMove places symbol on cell and returns the result of the game
// after the move: a winner symbol, ResultDraw, or "" while open.
// Guards fail with sentinel errors and leave the room untouched.
func (that *Room) ApplyMove(symbol string, cell int) (string, error) {
	if cell < 0 || cell >= len(that.Board) {
		return "", fmt.Errorf("%w: cell %d", ErrInvalidCell, cell)
	}

	if that.Finished {
		return "", apperror.ErrGameFinished
	}

	if that.Turn != symbol {
		return "", apperror.ErrNotYourTurn
	}

	if that.Board[cell] != EmptyCell {
		return "", apperror.ErrCellOccupied
	}

	that.Board[cell] = symbol

	if that.Turn == PlayerX {
		that.Turn = PlayerO
	} else {
		that.Turn = PlayerX
	}

	result := that.DetermineResult()

	switch result {
	case PlayerX, PlayerO:
		that.Score[result]++
		that.Streak[result]++
		that.Streak[otherSymbol(result)] = 0
		that.Finished = true
	case ResultDraw:
		that.Streak[PlayerX] = 0
		that.Streak[PlayerO] = 0
		that.Finished = true
	}

	return result, nil
}

// VoteRematch registers a rematch vote for the current finished game.
// A repeated vote is a no-op. Once both members have voted the board
// and turn reset while score and streak carry over; it reports whether
// the rematch actually started.
func (that *Room) VoteRematch(connID string) bool {
	if that.RematchVotes[connID] {
		return false
	}

	that.RematchVotes[connID] = true

	if len(that.RematchVotes) < len(that.Players) {
		return false
	}

	that.ResetForRematch()

	return true
}

// ResetForRematch clears the board, returns the opening turn to X and
// wipes the rematch votes. Score and streak are intentionally kept.
func (that *Room) ResetForRematch() {
	that.Board = [9]string{}
	that.Turn = PlayerX
	that.Finished = false
	that.RematchVotes = make(map[string]bool)
}

// Snapshot copies the state broadcast to clients, detached from the
// live room so it can be marshaled after the lock is released.
func (that *Room) Snapshot() *GameState {
	state := &GameState{
		Board:  that.Board,
		Turn:   that.Turn,
		Score:  make(map[string]int, len(that.Score)),
		Streak: make(map[string]int, len(that.Streak)),
	}

	for symbol, wins := range that.Score {
		state.Score[symbol] = wins
	}

	for symbol, wins := range that.Streak {
		state.Streak[symbol] = wins
	}

	return state
}

func otherSymbol(symbol string) string {
	if symbol == PlayerX {
		return PlayerO
	}

	return PlayerX
}
