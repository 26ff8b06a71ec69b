package api

import (
	"net/http"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/memory"
	"github.com/rcliao/companion-state/internal/model"
)

// MemoryRequest is the body of POST /v1/memory.
type MemoryRequest struct {
	Action      string `json:"action"`
	UserID      int64  `json:"userId"`
	CompanionID int64  `json:"companionId"`
	MemoryID    string `json:"memoryId"`
	Query       string `json:"query"`
	Limit       int    `json:"limit"`
}

// MemoryActions are the supported memory actions.
const MemoryActions = "access, consolidate, health, search"

func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	var req MemoryRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx := r.Context()

	switch req.Action {
	case "access":
		fact, err := s.memory.Access(ctx, req.MemoryID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"memory": fact})

	case "consolidate":
		res, err := s.memory.Consolidate(ctx, req.UserID, req.CompanionID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"result": res})

	case "health":
		report, err := s.memory.Health(ctx, req.UserID, req.CompanionID)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"health": report})

	case "search":
		if req.Query == "" {
			s.fail(w, r, apperr.Required("query"))
			return
		}
		results, err := s.memory.Search(ctx, memory.SearchParams{
			Query:       req.Query,
			UserID:      req.UserID,
			CompanionID: req.CompanionID,
			Limit:       req.Limit,
		})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respond(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})

	default:
		s.fail(w, r, apperr.Validation("action", "unknown action %q (supported: %s)", req.Action, MemoryActions))
	}
}

// RememberRequest is the body of POST /v1/memory/facts.
type RememberRequest struct {
	UserID      int64          `json:"userId"`
	CompanionID int64          `json:"companionId"`
	Type        model.FactType `json:"type"`
	Text        string         `json:"text"`
}

func (s *Server) handleRemember(w http.ResponseWriter, r *http.Request) {
	var req RememberRequest
	if !s.decode(w, r, &req) {
		return
	}
	fact, err := s.memory.Remember(r.Context(), model.Pair{UserID: req.UserID, CompanionID: req.CompanionID}, req.Type, req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusCreated, map[string]any{"memory": fact})
}
