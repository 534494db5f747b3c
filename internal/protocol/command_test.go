package protocol

import "testing"

func TestCommand_BuildLegacy(t *testing.T) {
	c := &Command{
		Weekday:         5,
		HHMM:            "2324",
		InstantAmperage: 20,
		OfflineAmperage: 16,
		CommandCode:     6,
		Counter:         1,
		Dialect:         DialectLegacy,
	}

	want := "CMD52324A20M16C006S001!5RE$"
	if got := c.Build(); got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestCommand_BuildModern(t *testing.T) {
	c := &Command{
		Weekday:         5,
		HHMM:            "2324",
		InstantAmperage: 20,
		OfflineAmperage: 16,
		CommandCode:     6,
		Counter:         1,
		Dialect:         DialectModern,
	}

	want := "CMD52324A0020M016C006S001!YUK$"
	if got := c.Build(); got != want {
		t.Errorf("Build() = %q, want %q", got, want)
	}
}

func TestCommand_RoundTrip(t *testing.T) {
	for _, in := range []string{
		"CMD52324A20M16C006S001!5RE$",
		"CMD52324A0020M016C006S001!YUK$",
	} {
		c, err := ParseCommand(in)
		if err != nil {
			t.Fatalf("ParseCommand(%q): %v", in, err)
		}
		if got := c.Build(); got != in {
			t.Errorf("round trip: Build(Parse(%q)) = %q", in, got)
		}
	}
}

func TestNextCounter_Wrap(t *testing.T) {
	if got := NextCounter(999); got != 1 {
		t.Errorf("NextCounter(999) = %d, want 1", got)
	}
	if got := NextCounter(1); got != 2 {
		t.Errorf("NextCounter(1) = %d, want 2", got)
	}
}
