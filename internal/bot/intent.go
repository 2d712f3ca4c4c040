// Package bot turns inbound chat events into referral outcomes. It knows
// nothing about Telegram message formats or button captions.
package bot

import "strings"

// Intent is the closed set of things a participant can ask for.
type Intent int

const (
	IntentNone Intent = iota
	IntentStart
	IntentGetLink
	IntentMyStats
	IntentTop
	IntentSubscribe
)

var intentNames = map[Intent]string{
	IntentNone:      "none",
	IntentStart:     "start",
	IntentGetLink:   "link",
	IntentMyStats:   "stats",
	IntentTop:       "top",
	IntentSubscribe: "subscribe",
}

var commandIntents = map[string]Intent{
	"start":     IntentStart,
	"link":      IntentGetLink,
	"ref":       IntentGetLink,
	"stats":     IntentMyStats,
	"me":        IntentMyStats,
	"top":       IntentTop,
	"top10":     IntentTop,
	"subscribe": IntentSubscribe,
	"channel":   IntentSubscribe,
}

func (i Intent) String() string {
	if s, ok := intentNames[i]; ok {
		return s
	}
	return "none"
}

// Gated reports whether the intent requires channel membership.
func (i Intent) Gated() bool {
	switch i {
	case IntentGetLink, IntentMyStats, IntentTop:
		return true
	default:
		return false
	}
}

// ParseIntent maps a command token ("/top", "top@growbot", "TOP") to an
// intent. Anything unrecognized is IntentNone.
func ParseIntent(command string) Intent {
	c := strings.ToLower(strings.TrimSpace(command))
	c = strings.TrimPrefix(c, "/")
	if at := strings.IndexByte(c, '@'); at >= 0 {
		c = c[:at]
	}
	if fields := strings.Fields(c); len(fields) > 0 {
		c = fields[0]
	}
	if in, ok := commandIntents[c]; ok {
		return in
	}
	return IntentNone
}
