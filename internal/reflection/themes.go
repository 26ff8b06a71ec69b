package reflection

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/rcliao/companion-state/internal/model"
)

// Theme is one keyword dictionary category.
type Theme struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// Themes is the keyword dictionary, in reporting order.
var Themes = []Theme{
	{Name: "career", Keywords: []string{
		"job", "jobs", "work", "working", "career", "boss", "office", "promotion",
		"interview", "colleague", "colleagues", "coworker", "salary", "meeting", "deadline",
	}},
	{Name: "relationships", Keywords: []string{
		"friend", "friends", "family", "partner", "girlfriend", "boyfriend", "wife",
		"husband", "mom", "dad", "mother", "father", "sister", "brother", "relationship", "date",
	}},
	{Name: "emotions", Keywords: []string{
		"feel", "feeling", "feelings", "happy", "sad", "angry", "anxious", "anxiety",
		"stress", "stressed", "lonely", "excited", "worried", "scared", "upset",
	}},
	{Name: "learning", Keywords: []string{
		"learn", "learning", "study", "studying", "class", "course", "book", "books",
		"read", "reading", "school", "skill", "practice", "university", "lesson",
	}},
	{Name: "aspirations", Keywords: []string{
		"dream", "dreams", "goal", "goals", "hope", "plan", "plans", "future",
		"someday", "wish", "ambition", "want to", "going to",
	}},
}

// ExtractThemes returns the names of the themes whose keywords occur in
// text, in dictionary order. Single-word keywords match whole words only;
// multi-word keywords match as phrases.
func ExtractThemes(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	words := make(map[string]bool, len(fields))
	for _, w := range fields {
		words[w] = true
	}
	normalized := " " + strings.Join(fields, " ") + " "

	var out []string
	for _, th := range Themes {
		for _, kw := range th.Keywords {
			var hit bool
			if strings.Contains(kw, " ") {
				hit = strings.Contains(normalized, " "+kw+" ")
			} else {
				hit = words[kw]
			}
			if hit {
				out = append(out, th.Name)
				break
			}
		}
	}
	return out
}

func conversationText(sample []model.Message) string {
	parts := make([]string, 0, len(sample))
	for _, m := range sample {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n")
}

func isUser(m model.Message) bool {
	return m.Role == "" || m.Role == "user"
}

// Insight thresholds.
const (
	longConversation  = 20
	activeExchange    = 5
	detailedWords     = 20
	terseWords        = 5
	curiousQuestions  = 3
	gettingToKnowLine = "We're just getting to know each other."
)

// deriveInsights summarizes a conversation sample. An empty sample yields
// the single getting-to-know-you insight.
func deriveInsights(sample []model.Message, themes []string) []string {
	if len(sample) == 0 {
		return []string{gettingToKnowLine}
	}

	var insights []string
	switch n := len(sample); {
	case n >= longConversation:
		insights = append(insights, fmt.Sprintf("We had a long, lively conversation of %d messages.", n))
	case n >= activeExchange:
		insights = append(insights, fmt.Sprintf("We exchanged %d messages.", n))
	default:
		insights = append(insights, "We shared a brief exchange.")
	}

	var userMsgs, words, questions int
	for _, m := range sample {
		if !isUser(m) {
			continue
		}
		userMsgs++
		words += len(strings.Fields(m.Content))
		if strings.Contains(m.Content, "?") {
			questions++
		}
	}
	if userMsgs > 0 {
		avg := float64(words) / float64(userMsgs)
		switch {
		case avg >= detailedWords:
			insights = append(insights, "They opened up with long, detailed messages.")
		case avg < terseWords:
			insights = append(insights, "Their messages were short and to the point.")
		}
	}
	if questions >= curiousQuestions {
		insights = append(insights, fmt.Sprintf("They asked %d questions; curiosity is carrying our talks.", questions))
	}
	if len(themes) > 0 {
		insights = append(insights, fmt.Sprintf("Our conversation kept returning to %s.", themes[0]))
	}
	return insights
}

// trendDelta is the energy change that counts as a trend.
const trendDelta = 0.1

// emotionalPatterns averages the current state with every sampled state.
// The trend compares current energy with the earliest sampled energy.
func emotionalPatterns(current model.EmotionalState, sample []model.Message) model.EmotionalPatterns {
	states := []model.EmotionalState{}
	for _, m := range sample {
		if m.Emotion != nil {
			states = append(states, *m.Emotion)
		}
	}

	trend := "steady"
	if len(states) > 0 {
		switch d := current.Energy - states[0].Energy; {
		case d > trendDelta:
			trend = "rising"
		case d < -trendDelta:
			trend = "falling"
		}
	}

	states = append(states, current)
	var avg model.EmotionalState
	for _, s := range states {
		avg.Happiness += s.Happiness
		avg.Energy += s.Energy
		avg.Curiosity += s.Curiosity
		avg.Empathy += s.Empathy
		avg.Playfulness += s.Playfulness
	}
	n := float64(len(states))
	avg.Happiness /= n
	avg.Energy /= n
	avg.Curiosity /= n
	avg.Empathy /= n
	avg.Playfulness /= n

	return model.EmotionalPatterns{
		Average:  avg,
		Dominant: dominant(avg),
		Trend:    trend,
		Samples:  len(states),
	}
}

// dominant names the strongest emotion. Ties go to the earlier field.
func dominant(s model.EmotionalState) string {
	best, name := s.Happiness, "happiness"
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"energy", s.Energy},
		{"curiosity", s.Curiosity},
		{"empathy", s.Empathy},
		{"playfulness", s.Playfulness},
	} {
		if c.v > best {
			best, name = c.v, c.name
		}
	}
	return name
}
