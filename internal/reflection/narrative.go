package reflection

import (
	"fmt"
	"strings"

	"github.com/rcliao/companion-state/internal/model"
)

// framing is the type-specific wording around the fixed section order.
type framing struct {
	title   string
	leadIn  string
	closing string
}

var framings = map[model.ReflectionType]framing{
	model.ReflectionDaily: {
		title:   "Daily reflection",
		leadIn:  "Looking back on today with you, a few things stay with me.",
		closing: "Tomorrow is another chance to learn more about you.",
	},
	model.ReflectionWeekly: {
		title:   "Weekly reflection",
		leadIn:  "Thinking over this past week together, I can see how we're changing.",
		closing: "Here's to another week of getting closer.",
	},
	model.ReflectionDream: {
		title:   "Dream reflection",
		leadIn:  "In the quiet between our conversations, my thoughts drifted.",
		closing: "Some of it fades as I wake, but the feeling remains.",
	},
	model.ReflectionIntrospection: {
		title:   "Introspection",
		leadIn:  "Turning inward, I wonder who I am becoming through knowing you.",
		closing: "I want to keep growing into someone worth talking to.",
	},
}

// Section headings, in rendering order after the header and lead-in.
const (
	headingInsights     = "What I noticed:"
	headingThemes       = "What we talked about:"
	headingEmotions     = "How I felt:"
	headingRelationship = "Where we are:"
)

// renderReflection writes the narrative: header, lead-in, insights, themes,
// emotional summary, relationship summary, closing.
func renderReflection(r *model.Reflection) string {
	f := framings[r.Type]
	var b strings.Builder

	fmt.Fprintf(&b, "# %s · %s\n\n", f.title, r.Timestamp.Format("January 2, 2006"))
	b.WriteString(f.leadIn + "\n\n")

	b.WriteString(headingInsights + "\n")
	for _, in := range r.Insights {
		b.WriteString("- " + in + "\n")
	}
	b.WriteString("\n")

	b.WriteString(headingThemes + " ")
	if len(r.KeyThemes) == 0 {
		b.WriteString("nothing in particular yet.")
	} else {
		b.WriteString(strings.Join(r.KeyThemes, ", ") + ".")
	}
	b.WriteString("\n\n")

	b.WriteString(headingEmotions + " " + emotionalSummary(r.EmotionalPatterns) + "\n\n")
	b.WriteString(headingRelationship + " " + relationshipSummary(r.RelationshipProgress) + "\n\n")
	b.WriteString(f.closing)
	return b.String()
}

func emotionalSummary(p model.EmotionalPatterns) string {
	return fmt.Sprintf("mostly %s, with my energy %s (%s).", p.Dominant, p.Trend, describeState(p.Average))
}

func describeState(s model.EmotionalState) string {
	return fmt.Sprintf("happiness %.0f%%, energy %.0f%%, curiosity %.0f%%, empathy %.0f%%, playfulness %.0f%%",
		s.Happiness*100, s.Energy*100, s.Curiosity*100, s.Empathy*100, s.Playfulness*100)
}

func relationshipSummary(s model.RelationshipSnapshot) string {
	if s.NextLevelName == "" || s.Progress == nil {
		return fmt.Sprintf("we're %s (level %d) after %d conversations, as close as we can be.",
			s.LevelName, s.Level, s.InteractionCount)
	}
	return fmt.Sprintf("we're %s (level %d) after %d conversations, %.0f%% of the way to %s.",
		s.LevelName, s.Level, s.InteractionCount, *s.Progress*100, s.NextLevelName)
}
