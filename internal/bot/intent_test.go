package bot

import "testing"

func TestParseIntent(t *testing.T) {
	tests := []struct {
		in   string
		want Intent
	}{
		{in: "/start", want: IntentStart},
		{in: "start", want: IntentStart},
		{in: "/START ref_12", want: IntentStart},
		{in: "/top@growbot", want: IntentTop},
		{in: "top10", want: IntentTop},
		{in: " /link ", want: IntentGetLink},
		{in: "stats", want: IntentMyStats},
		{in: "/subscribe", want: IntentSubscribe},
		{in: "", want: IntentNone},
		{in: "Ali Valiyev", want: IntentNone},
		{in: "/unknown", want: IntentNone},
	}
	for _, tc := range tests {
		if got := ParseIntent(tc.in); got != tc.want {
			t.Fatalf("ParseIntent(%q) = %s want %s", tc.in, got, tc.want)
		}
	}
}

func TestIntentGated(t *testing.T) {
	gated := []Intent{IntentGetLink, IntentMyStats, IntentTop}
	for _, in := range gated {
		if !in.Gated() {
			t.Fatalf("%s must be gated", in)
		}
	}
	for _, in := range []Intent{IntentNone, IntentStart, IntentSubscribe} {
		if in.Gated() {
			t.Fatalf("%s must not be gated", in)
		}
	}
}
