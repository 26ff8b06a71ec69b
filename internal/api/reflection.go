package api

import (
	"net/http"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/model"
	"github.com/rcliao/companion-state/internal/reflection"
)

// ReflectionRequest is the body of POST /v1/reflection.
type ReflectionRequest struct {
	Action         string               `json:"action"`
	UserID         int64                `json:"userId"`
	CharacterID    int64                `json:"characterId"`
	Type           model.ReflectionType `json:"type"`
	Messages       []model.Message      `json:"messages"`
	EmotionalState model.EmotionalState `json:"emotionalState"`
}

// ReflectionActions are the supported reflection actions.
const ReflectionActions = "process, trigger"

func (s *Server) handleReflection(w http.ResponseWriter, r *http.Request) {
	var req ReflectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	p := model.Pair{UserID: req.UserID, CompanionID: req.CharacterID}

	var (
		res *reflection.Result
		err error
	)
	switch req.Action {
	case "process":
		res, err = s.reflector.Process(r.Context(), reflection.ProcessRequest{
			Pair:     p,
			Messages: req.Messages,
			State:    req.EmotionalState,
		})
	case "trigger":
		res, err = s.reflector.Trigger(r.Context(), reflection.TriggerRequest{
			Pair:     p,
			Type:     req.Type,
			Messages: req.Messages,
			State:    req.EmotionalState,
		})
	default:
		err = apperr.Validation("action", "unknown action %q (supported: %s)", req.Action, ReflectionActions)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, res)
}

func (s *Server) handleTraits(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, s.reflector.Traits())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, err := pairParams(r, "characterId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	refs, err := s.reflector.History(r.Context(), p.UserID, p.CompanionID, parseIntParam(r, "limit", reflection.DefaultHistoryLimit))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"reflections": refs, "count": len(refs)})
}

func (s *Server) handleDreams(w http.ResponseWriter, r *http.Request) {
	p, err := pairParams(r, "characterId")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dreams, err := s.reflector.Dreams(r.Context(), p.UserID, p.CompanionID, parseIntParam(r, "limit", reflection.DefaultHistoryLimit))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"dreams": dreams, "count": len(dreams)})
}
