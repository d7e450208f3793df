package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rivalgrid/tictactoe-arena/internal/usecase"
)

// handleSeekMatch - enqueues the caller; once a second seeker arrives the
// pair is told about its new room. Each member learns only its own symbol.
func (that *Server) handleSeekMatch(_ context.Context, connID string, _ json.RawMessage) error {
	log := that.logger.With("method", "handleSeekMatch", "connID", connID)

	result, err := that.arena.SeekMatch(connID)
	if err != nil {
		// a seeker already in a room is ignored, not answered
		log.Debug("dropping seek-match", "error", err)
		return nil
	}

	if result.Already {
		return nil
	}

	if result.Waiting {
		return that.sendToClient(connID, eventWaiting, nil)
	}

	for _, member := range result.Members {
		if err = that.sendToClient(member.ID, eventMatchFound, MatchFoundPayload{
			RoomID: result.RoomID,
			Symbol: member.Symbol,
		}); err != nil {
			return fmt.Errorf("failed to send match-found: %w", err)
		}

		if err = that.sendToClient(member.ID, eventMatchStarted, nil); err != nil {
			return fmt.Errorf("failed to send match-started: %w", err)
		}

		if err = that.sendToClient(member.ID, eventGameState, result.State); err != nil {
			return fmt.Errorf("failed to send game-state: %w", err)
		}
	}

	log.Info("match created", "roomID", result.RoomID)

	return nil
}

// handleMakeMove - applies a move and broadcasts the new state. The
// state reflecting a result is always emitted before the game-over
// signal, so observers never see a terminal announcement with stale
// scores.
func (that *Server) handleMakeMove(ctx context.Context, connID string, payload json.RawMessage) error {
	log := that.logger.With("method", "handleMakeMove", "connID", connID)

	var payloadReq MovePayload
	if err := json.Unmarshal(payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	outcome, err := that.arena.MakeMove(ctx, connID, payloadReq.RoomID, payloadReq.Index)
	if err != nil {
		// stale, out-of-turn and occupied-cell moves are dropped
		log.Debug("dropping move", "roomID", payloadReq.RoomID, "index", payloadReq.Index, "error", err)
		return nil
	}

	that.broadcastToMembers(outcome.Members, eventGameState, outcome.State)

	if outcome.Result != "" {
		that.broadcastToMembers(outcome.Members, eventGameOver, GameOverPayload{Winner: outcome.Result})
		log.Info("game finished", "roomID", outcome.RoomID, "result", outcome.Result)
	}

	return nil
}

// handleSendMessage - relays a chat line to both room members. The
// sender symbol comes from membership, never from the payload.
func (that *Server) handleSendMessage(_ context.Context, connID string, payload json.RawMessage) error {
	log := that.logger.With("method", "handleSendMessage", "connID", connID)

	var payloadReq ChatPayload
	if err := json.Unmarshal(payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	symbol, err := that.arena.MemberSymbol(connID, payloadReq.RoomID)
	if err != nil {
		log.Debug("dropping message", "roomID", payloadReq.RoomID, "error", err)
		return nil
	}

	members, err := that.arena.Members(payloadReq.RoomID)
	if err != nil {
		log.Debug("dropping message", "roomID", payloadReq.RoomID, "error", err)
		return nil
	}

	that.broadcastToMembers(members, eventReceiveMessage, ChatMessagePayload{
		Sender: symbol,
		Text:   payloadReq.Text,
	})

	return nil
}

// handleRequestRematch - registers a rematch vote; once both members
// have voted the fresh state follows the rematch-started signal.
func (that *Server) handleRequestRematch(_ context.Context, connID string, payload json.RawMessage) error {
	log := that.logger.With("method", "handleRequestRematch", "connID", connID)

	var payloadReq RematchPayload
	if err := json.Unmarshal(payload, &payloadReq); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	outcome, err := that.arena.Rematch(connID, payloadReq.RoomID)
	if err != nil {
		log.Debug("dropping rematch vote", "roomID", payloadReq.RoomID, "error", err)
		return nil
	}

	if !outcome.Started {
		return nil
	}

	that.broadcastToMembers(outcome.Members, eventRematchStarted, nil)
	that.broadcastToMembers(outcome.Members, eventGameState, outcome.State)

	log.Info("rematch started", "roomID", outcome.RoomID)

	return nil
}

func (that *Server) broadcastToMembers(members [2]usecase.Member, action string, payload any) {
	log := that.logger.With("method", "broadcastToMembers")

	for _, member := range members {
		if err := that.sendToClient(member.ID, action, payload); err != nil {
			log.Error("failed to send room update", "connID", member.ID, "action", action, "error", err)
		}
	}
}
