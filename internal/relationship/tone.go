package relationship

import (
	"context"
	"regexp"

	"github.com/rcliao/companion-state/internal/model"
)

// Emoticons is the fixed set the playfulness rule appends from.
var Emoticons = []string{"😊", "😄", "✨"}

// Tone gates.
const (
	affectionGate   = 0.5
	playfulnessGate = 0.6
	playfulChance   = 0.3
	warmthGate      = 0.7
)

var (
	youWord    = regexp.MustCompile(`(?i)\byou\b`)
	warmWords  = regexp.MustCompile(`\b(good|nice|fine)\b`)
	warmLexeme = map[string]string{
		"good": "wonderful",
		"nice": "lovely",
		"fine": "great",
	}
)

// ToneModify rewrites text according to the pair's current level. Rules run
// in a fixed order (affection, playfulness, warmth) and draw from the RNG
// only once their threshold is passed.
func (t *Tracker) ToneModify(ctx context.Context, p model.Pair, text string) (string, error) {
	level, err := t.CurrentLevel(ctx, p)
	if err != nil {
		return "", err
	}
	return applyTone(level, text, t.rng.Float64, t.rng.IntN), nil
}

func applyTone(level model.Level, text string, draw func() float64, pick func(int) int) string {
	tone := level.Tone

	if tone.Affection > affectionGate && draw() < tone.Affection {
		if terms := level.Lexicon.AffectionateTerms; len(terms) > 0 {
			term := terms[pick(len(terms))]
			text = youWord.ReplaceAllStringFunc(text, func(you string) string {
				return term + " " + you
			})
		}
	}

	if tone.Playfulness > playfulnessGate && draw() < playfulChance {
		text += " " + Emoticons[pick(len(Emoticons))]
	}

	if tone.Warmth > warmthGate {
		text = warmWords.ReplaceAllStringFunc(text, func(w string) string {
			return warmLexeme[w]
		})
	}

	return text
}

// Greeting returns a greeting from the current level's lexicon.
func (t *Tracker) Greeting(ctx context.Context, p model.Pair) (string, error) {
	level, err := t.CurrentLevel(ctx, p)
	if err != nil {
		return "", err
	}
	return t.pick(level.Lexicon.Greetings), nil
}

// Closing returns a closing from the current level's lexicon.
func (t *Tracker) Closing(ctx context.Context, p model.Pair) (string, error) {
	level, err := t.CurrentLevel(ctx, p)
	if err != nil {
		return "", err
	}
	return t.pick(level.Lexicon.Closings), nil
}

func (t *Tracker) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[t.rng.IntN(len(options))]
}
