package api

import (
	"net/http"

	"github.com/rcliao/companion-state/internal/model"
)

// InteractionRequest is the body of POST /v1/relationship/interaction.
type InteractionRequest struct {
	model.Pair
	model.InteractionEvent
}

func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req InteractionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := requirePair(req.Pair, "companionId"); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, err := s.tracker.RecordInteraction(r.Context(), req.Pair, req.InteractionEvent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	lvl, err := s.tracker.CurrentLevel(r.Context(), req.Pair)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"relationship": rec, "level": lvl})
}

// queryPair reads and requires userId and companionId.
func (s *Server) queryPair(w http.ResponseWriter, r *http.Request) (model.Pair, bool) {
	p, err := pairParams(r, "companionId")
	if err == nil {
		err = requirePair(p, "companionId")
	}
	if err != nil {
		s.fail(w, r, err)
		return p, false
	}
	return p, true
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.queryPair(w, r)
	if !ok {
		return
	}
	lvl, err := s.tracker.CurrentLevel(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]any{"level": lvl})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, ok := s.queryPair(w, r)
	if !ok {
		return
	}
	prog, err := s.tracker.ProgressToNext(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, prog)
}

// ToneRequest is the body of POST /v1/relationship/tone.
type ToneRequest struct {
	model.Pair
	Text string `json:"text"`
}

func (s *Server) handleTone(w http.ResponseWriter, r *http.Request) {
	var req ToneRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := requirePair(req.Pair, "companionId"); err != nil {
		s.fail(w, r, err)
		return
	}
	text, err := s.tracker.ToneModify(r.Context(), req.Pair, req.Text)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleGreeting(w http.ResponseWriter, r *http.Request) {
	p, ok := s.queryPair(w, r)
	if !ok {
		return
	}
	text, err := s.tracker.Greeting(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"text": text})
}

func (s *Server) handleClosing(w http.ResponseWriter, r *http.Request) {
	p, ok := s.queryPair(w, r)
	if !ok {
		return
	}
	text, err := s.tracker.Closing(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"text": text})
}
