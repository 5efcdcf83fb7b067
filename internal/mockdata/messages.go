package mockdata

import (
	"math/rand"
	"strings"
)

var nudgeTemplates = []string{
	"Another {app} reel? Your real-life dog misses you!",
	"You've been on {app} for 30 minutes: that's half a chapter in a book!",
	"If you were doing pushups instead of scrolling, you'd have done 120 by now.",
	"Fun fact: This time on {app} could have made you $5 on a side hustle.",
	"Every scroll pushes a notification from someone who actually loves you further down.",
	"Your future self called. They're disappointed about this {app} session.",
	"In the time you've spent here, you could have cooked a delicious meal.",
	"Plot twist: The real content was the life happening around you all along.",
}

// NudgeMessages returns every time-check message for app.
func NudgeMessages(app string) []string {
	out := make([]string, len(nudgeTemplates))
	for i, tmpl := range nudgeTemplates {
		out[i] = render(tmpl, app)
	}
	return out
}

// Nudge returns a random time-check message for app.
func Nudge(rng *rand.Rand, app string) string {
	return render(nudgeTemplates[rng.Intn(len(nudgeTemplates))], app)
}

func render(tmpl, app string) string {
	return strings.ReplaceAll(tmpl, "{app}", app)
}
