package domain

import (
	"testing"
	"time"
)

func TestNormalizeCardID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hello", "hello"},
		{"  hello ", "hello"},
		{"  Greet-Bonjour\t", "greet-bonjour"},
		{"", ""},
		{"   ", ""},
		{"déjà", "déjà"},
	}
	for _, c := range cases {
		if got := NormalizeCardID(c.in); got != c.want {
			t.Errorf("NormalizeCardID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRatingValidity(t *testing.T) {
	for r := Fail; r <= Easy; r++ {
		if !r.IsValid() {
			t.Errorf("expected %d to be valid", int(r))
		}
	}
	for _, r := range []Rating{-1, 5, 100} {
		if r.IsValid() {
			t.Errorf("expected %d to be invalid", int(r))
		}
	}
}

func TestRatingPassing(t *testing.T) {
	if Fail.Passing() || Hard.Passing() {
		t.Error("ratings below Good must not pass")
	}
	if !Good.Passing() || !Great.Passing() || !Easy.Passing() {
		t.Error("Good and above must pass")
	}
}

func TestRatingString(t *testing.T) {
	if got := Good.String(); got != "Good" {
		t.Errorf("Good.String() = %q", got)
	}
	if got := Rating(7).String(); got != "Rating(7)" {
		t.Errorf("Rating(7).String() = %q", got)
	}
}

func TestScheduleDue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := Schedule{DueAt: now}
	if !s.Due(now) {
		t.Error("a schedule due exactly now is due")
	}
	if s.Due(now.Add(-time.Second)) {
		t.Error("a future schedule is not due")
	}
	if !s.Due(now.Add(time.Second)) {
		t.Error("a past schedule is due")
	}
}
