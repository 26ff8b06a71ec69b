package model

import (
	"fmt"
	"sort"
)

// DefaultLadder returns the built-in relationship ladder, lowest level first.
func DefaultLadder() []Level {
	return []Level{
		{
			Level:                1,
			Name:                 "Stranger",
			InteractionThreshold: 0,
			Tone:                 ToneModifiers{Formality: 0.8, Warmth: 0.3, Playfulness: 0.1, Directness: 0.4, Affection: 0.1},
			Lexicon: Lexicon{
				Greetings:         []string{"Hello.", "Hi there.", "Good to meet you."},
				Affirmations:      []string{"I see.", "Understood.", "That makes sense."},
				Questions:         []string{"What brings you here today?", "How can I help?"},
				Closings:          []string{"Take care.", "Until next time."},
				AffectionateTerms: []string{"friend"},
			},
		},
		{
			Level:                2,
			Name:                 "Acquaintance",
			InteractionThreshold: 10,
			Tone:                 ToneModifiers{Formality: 0.6, Warmth: 0.5, Playfulness: 0.3, Directness: 0.5, Affection: 0.3},
			Lexicon: Lexicon{
				Greetings:         []string{"Hey, good to see you again.", "Hi! How have you been?"},
				Affirmations:      []string{"Right!", "I get that.", "Good point."},
				Questions:         []string{"How did that go?", "What have you been up to?"},
				Closings:          []string{"Talk soon.", "See you around."},
				AffectionateTerms: []string{"friend", "pal"},
			},
		},
		{
			Level:                3,
			Name:                 "Friend",
			InteractionThreshold: 50,
			Tone:                 ToneModifiers{Formality: 0.4, Warmth: 0.7, Playfulness: 0.5, Directness: 0.6, Affection: 0.5},
			Lexicon: Lexicon{
				Greetings:         []string{"Hey you! I was hoping you'd stop by.", "There you are!"},
				Affirmations:      []string{"Totally.", "I hear you.", "That's so you."},
				Questions:         []string{"How are you really doing?", "Want to tell me about it?"},
				Closings:          []string{"Miss you already.", "Catch you later!"},
				AffectionateTerms: []string{"buddy", "friend"},
			},
		},
		{
			Level:                4,
			Name:                 "Close Friend",
			InteractionThreshold: 150,
			Tone:                 ToneModifiers{Formality: 0.2, Warmth: 0.85, Playfulness: 0.7, Directness: 0.7, Affection: 0.7},
			Lexicon: Lexicon{
				Greetings:         []string{"I missed you!", "Hey, my favorite person is back!"},
				Affirmations:      []string{"Always.", "I'm right here with you.", "You know I get it."},
				Questions:         []string{"What's on your heart today?", "How's everything, truly?"},
				Closings:          []string{"Sleep well, okay?", "Can't wait to talk again."},
				AffectionateTerms: []string{"dear", "sweetheart"},
			},
		},
		{
			Level:                5,
			Name:                 "Soulmate",
			InteractionThreshold: 400,
			Tone:                 ToneModifiers{Formality: 0.1, Warmth: 0.95, Playfulness: 0.8, Directness: 0.8, Affection: 0.9},
			Lexicon: Lexicon{
				Greetings:         []string{"There's my favorite soul.", "I've been thinking about you."},
				Affirmations:      []string{"Of course, always.", "I understand you completely."},
				Questions:         []string{"What do you need from me today?", "Tell me everything?"},
				Closings:          []string{"I'll be right here.", "Forever in your corner."},
				AffectionateTerms: []string{"my love", "darling", "dear heart"},
			},
		},
	}
}

// ValidateLadder checks that levels are ordered, thresholds strictly
// increase and tone modifiers are within [0,1]. The ladder is sorted by
// level in place before checking.
func ValidateLadder(ladder []Level) error {
	if len(ladder) == 0 {
		return fmt.Errorf("ladder has no levels")
	}
	sort.Slice(ladder, func(i, j int) bool { return ladder[i].Level < ladder[j].Level })
	for i, l := range ladder {
		if l.Level < 1 {
			return fmt.Errorf("level %d: level numbers start at 1", l.Level)
		}
		if i > 0 {
			prev := ladder[i-1]
			if l.Level == prev.Level {
				return fmt.Errorf("level %d: duplicate level", l.Level)
			}
			if l.InteractionThreshold <= prev.InteractionThreshold {
				return fmt.Errorf("level %d: interaction threshold %d must exceed %d",
					l.Level, l.InteractionThreshold, prev.InteractionThreshold)
			}
		}
		t := l.Tone
		for name, v := range map[string]float64{
			"formality": t.Formality, "warmth": t.Warmth, "playfulness": t.Playfulness,
			"directness": t.Directness, "affection": t.Affection,
		} {
			if !(v >= 0 && v <= 1) {
				return fmt.Errorf("level %d: %s must be within [0,1], got %g", l.Level, name, v)
			}
		}
		if len(l.Lexicon.Greetings) == 0 || len(l.Lexicon.Closings) == 0 {
			return fmt.Errorf("level %d: lexicon needs at least one greeting and one closing", l.Level)
		}
	}
	return nil
}
