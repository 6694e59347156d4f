package wintitle

import "testing"

func TestSuggestPrefersAccountHints(t *testing.T) {
	got := Suggest([]string{"Settings", "Chats – @alice", "About"})
	if got != "Chats – @alice" {
		t.Fatalf("want hint title, got %q", got)
	}
}

func TestSuggestPhoneNumberHint(t *testing.T) {
	got := Suggest([]string{"Main", "+84123456789 – online"})
	if got != "+84123456789 – online" {
		t.Fatalf("want phone title, got %q", got)
	}
}

func TestSuggestFallsBackToFirstTitle(t *testing.T) {
	if got := Suggest([]string{"Main Window", "Other"}); got != "Main Window" {
		t.Fatalf("want first title, got %q", got)
	}
}

func TestSuggestEmpty(t *testing.T) {
	if got := Suggest(nil); got != "" {
		t.Fatalf("want empty, got %q", got)
	}
}

func TestNoopTitler(t *testing.T) {
	titles, err := Noop{}.TitlesByPID(123)
	if err != nil || titles != nil {
		t.Fatalf("noop must be silent: %v, %v", titles, err)
	}
}
