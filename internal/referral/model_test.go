package referral

import "testing"

func TestValidDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "Ali", want: false},
		{in: "Ali Valiyev", want: true},
		{in: "  Ali   Valiyev  ", want: true},
		{in: "", want: false},
		{in: "   ", want: false},
		{in: "Ali\tValiyev", want: true},
		{in: "Ali Valiyev o'g'li", want: true},
	}
	for _, tc := range tests {
		if got := ValidDisplayName(tc.in); got != tc.want {
			t.Fatalf("ValidDisplayName(%q) = %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestEncodeLink(t *testing.T) {
	got := EncodeLink(12345, "@growbot")
	want := "https://t.me/growbot?start=ref_12345"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if again := EncodeLink(12345, "growbot"); again != got {
		t.Fatalf("link not stable: %q vs %q", again, got)
	}
}

func TestParseStartParameter(t *testing.T) {
	valid := map[string]int64{
		"ref_1":           1,
		"ref_987654321":   987654321,
		" ref_42 ":        42,
		StartParameter(7): 7,
	}
	for in, want := range valid {
		got, ok := ParseStartParameter(in)
		if !ok || got != want {
			t.Fatalf("ParseStartParameter(%q) = %d,%v want %d", in, got, ok, want)
		}
	}

	invalid := []string{"", "ref_", "ref_abc", "ref_-5", "ref_0", "REF_5", "5", "ref_5x", "ref_+5", "ref_99999999999999999999"}
	for _, in := range invalid {
		if _, ok := ParseStartParameter(in); ok {
			t.Fatalf("expected %q to be rejected", in)
		}
	}
}

func TestNormalizeTopN(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: 0, want: DefaultTopN},
		{in: -3, want: DefaultTopN},
		{in: 5, want: 5},
		{in: MaxTopN + 1, want: MaxTopN},
	}
	for _, tc := range tests {
		if got := normalizeTopN(tc.in); got != tc.want {
			t.Fatalf("normalizeTopN(%d) = %d want %d", tc.in, got, tc.want)
		}
	}
}

func TestMembershipEligible(t *testing.T) {
	if !MembershipMember.Eligible() {
		t.Fatalf("member must be eligible")
	}
	if MembershipNotMember.Eligible() || MembershipUnknown.Eligible() {
		t.Fatalf("only members are eligible")
	}
}
