package duration

import (
	"testing"
	"time"
)

var refNow = time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

func TestParseRelative(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantOk  bool
	}{
		{"30s", 30, true},
		{"5m", 300, true},
		{"2h", 7200, true},
		{"24h", 86400, true},
		{"0s", 0, false},
		{"-5s", 0, false},
		{"25h", 0, false},
		{"5", 0, false},
		{"5x", 0, false},
		{"", 0, false},
		{"   ", 0, false},
	}
	for _, c := range cases {
		got, ok := Parse(c.in, refNow)
		if ok != c.wantOk || (ok && got != c.want) {
			t.Errorf("Parse(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.wantOk)
		}
	}
}

func TestParseClockLaterToday(t *testing.T) {
	secs, ok := Parse("13:00", refNow)
	if !ok {
		t.Fatalf("Parse(13:00) not ok")
	}
	if secs != 3600 {
		t.Errorf("Parse(13:00) from 12:00 = %d, want 3600", secs)
	}
}

func TestParseClockRollsOverToTomorrow(t *testing.T) {
	secs, ok := Parse("11:00", refNow)
	if !ok {
		t.Fatalf("Parse(11:00) not ok")
	}
	want := 23 * 3600
	if secs != want {
		t.Errorf("Parse(11:00) from 12:00 = %d, want %d (tomorrow rollover)", secs, want)
	}
}

func TestParseClockInvalidRange(t *testing.T) {
	for _, in := range []string{"24:00", "12:60", "-1:00", "ab:cd", "12:5:6"} {
		if _, ok := Parse(in, refNow); ok {
			t.Errorf("Parse(%q) = ok, want invalid", in)
		}
	}
}

func TestParseTrimsWhitespace(t *testing.T) {
	got, ok := Parse("  10s  ", refNow)
	if !ok || got != 10 {
		t.Errorf("Parse(\"  10s  \") = (%d, %v), want (10, true)", got, ok)
	}
}
