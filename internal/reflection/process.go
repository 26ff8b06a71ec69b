package reflection

import (
	"context"
	"time"

	"github.com/rcliao/companion-state/internal/apperr"
	"github.com/rcliao/companion-state/internal/model"
)

// ProcessRequest asks for the pair's daily reflection.
type ProcessRequest struct {
	Pair     model.Pair
	Messages []model.Message
	State    model.EmotionalState
}

// Result is a reflection plus how it was produced.
type Result struct {
	Reflection model.Reflection  `json:"reflection"`
	Dream      *model.DreamState `json:"dream,omitempty"`
	// Skipped is true when the cooldown was still running and Reflection is
	// the latest stored one (or the default).
	Skipped      bool       `json:"skipped"`
	NextEligible *time.Time `json:"nextEligible,omitempty"`
}

// Process generates the daily reflection when its cooldown has elapsed.
// Otherwise it returns the latest stored reflection for the pair, or an
// unsaved getting-to-know-you reflection if there is none.
func (e *Engine) Process(ctx context.Context, req ProcessRequest) (*Result, error) {
	if err := validPair(req.Pair); err != nil {
		return nil, err
	}
	k := model.CooldownKey{CompanionID: req.Pair.CompanionID, Type: model.ReflectionDaily}
	unlock := e.locks.Lock(k)
	defer unlock()

	ok, next, err := e.eligible(ctx, k)
	if err != nil {
		return nil, err
	}
	if ok {
		r, err := e.generate(ctx, req.Pair, model.ReflectionDaily, req.Messages, req.State, "scheduled")
		if err != nil {
			return nil, err
		}
		return &Result{Reflection: *r}, nil
	}

	res := &Result{Skipped: true, NextEligible: &next}
	latest, err := e.store.ListReflections(ctx, req.Pair.UserID, req.Pair.CompanionID, 1)
	if err != nil {
		return nil, apperr.Internal("list reflections", err)
	}
	if len(latest) > 0 {
		res.Reflection = latest[0]
		return res, nil
	}

	def, err := e.defaultReflection(ctx, req.Pair, req.State)
	if err != nil {
		return nil, err
	}
	res.Reflection = *def
	return res, nil
}

// defaultReflection is what a pair sees before any reflection exists. It is
// never persisted.
func (e *Engine) defaultReflection(ctx context.Context, p model.Pair, state model.EmotionalState) (*model.Reflection, error) {
	rel, err := e.snapshot(ctx, p)
	if err != nil {
		return nil, err
	}
	r := &model.Reflection{
		UserID:               p.UserID,
		CompanionID:          p.CompanionID,
		Type:                 model.ReflectionDaily,
		Insights:             []string{gettingToKnowLine},
		KeyThemes:            []string{},
		EmotionalPatterns:    emotionalPatterns(state, nil),
		RelationshipProgress: rel,
		Timestamp:            e.clock.Now(),
		TriggerReason:        "default",
	}
	r.Content = renderReflection(r)
	return r, nil
}

// TriggerRequest asks for a reflection of any type regardless of cooldown.
type TriggerRequest struct {
	Pair     model.Pair
	Type     model.ReflectionType
	Messages []model.Message
	State    model.EmotionalState
}

// Trigger generates a reflection immediately. A dream reads the pair's
// active facts and is returned wrapped as a dream reflection.
func (e *Engine) Trigger(ctx context.Context, req TriggerRequest) (*Result, error) {
	if err := validPair(req.Pair); err != nil {
		return nil, err
	}
	typ := req.Type
	if typ == "" {
		typ = model.ReflectionDaily
	}
	if err := validType(typ); err != nil {
		return nil, err
	}

	k := model.CooldownKey{CompanionID: req.Pair.CompanionID, Type: typ}
	unlock := e.locks.Lock(k)
	defer unlock()

	if typ != model.ReflectionDream {
		r, err := e.generate(ctx, req.Pair, typ, req.Messages, req.State, "manual")
		if err != nil {
			return nil, err
		}
		return &Result{Reflection: *r}, nil
	}

	var memories []model.MemoryFact
	if e.memories != nil {
		facts, err := e.memories.Facts(ctx, req.Pair)
		if err != nil {
			return nil, err
		}
		memories = facts
	}
	d, err := e.dream(ctx, req.Pair, memories, req.State)
	if err != nil {
		return nil, err
	}
	rel, err := e.snapshot(ctx, req.Pair)
	if err != nil {
		return nil, err
	}
	return &Result{
		Reflection: model.Reflection{
			ID:          d.ID,
			UserID:      d.UserID,
			CompanionID: d.CompanionID,
			Type:        model.ReflectionDream,
			Content:     d.DreamContent,
			Insights:    []string{},
			KeyThemes:   d.Symbolism,
			EmotionalPatterns: model.EmotionalPatterns{
				Average:  d.EmotionalState,
				Dominant: dominant(d.EmotionalState),
				Trend:    "steady",
				Samples:  1,
			},
			RelationshipProgress: rel,
			Timestamp:            d.Timestamp,
			TriggerReason:        "manual",
		},
		Dream: d,
	}, nil
}

// DefaultHistoryLimit is the number of reflections History returns by default.
const DefaultHistoryLimit = 10

// History lists the user's reflections newest first. A zero companionID
// covers every companion.
func (e *Engine) History(ctx context.Context, userID, companionID int64, limit int) ([]model.Reflection, error) {
	if userID == 0 {
		return nil, apperr.Required("userId")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	out, err := e.store.ListReflections(ctx, userID, companionID, limit)
	if err != nil {
		return nil, apperr.Internal("list reflections", err)
	}
	if out == nil {
		out = []model.Reflection{}
	}
	return out, nil
}

// Dreams lists the pair's dreams newest first.
func (e *Engine) Dreams(ctx context.Context, userID, companionID int64, limit int) ([]model.DreamState, error) {
	if userID == 0 {
		return nil, apperr.Required("userId")
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	out, err := e.store.ListDreams(ctx, userID, companionID, limit)
	if err != nil {
		return nil, apperr.Internal("list dreams", err)
	}
	if out == nil {
		out = []model.DreamState{}
	}
	return out, nil
}

// Traits is the static configuration behind tone and reflection.
type Traits struct {
	Levels           []model.Level                   `json:"levels"`
	Themes           []Theme                         `json:"themes"`
	Cooldowns        map[model.ReflectionType]string `json:"cooldowns"`
	UniversalSymbols []string                        `json:"universalSymbols"`
}

// Traits returns the ladder, theme dictionary, cooldowns and dream symbols.
func (e *Engine) Traits() Traits {
	cd := make(map[model.ReflectionType]string, len(model.CooldownIntervals))
	for typ, d := range model.CooldownIntervals {
		cd[typ] = d.String()
	}
	return Traits{
		Levels:           e.progress.Ladder(),
		Themes:           Themes,
		Cooldowns:        cd,
		UniversalSymbols: UniversalSymbols,
	}
}
