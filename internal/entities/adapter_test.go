package entities

import "testing"

func TestParseOnOff(t *testing.T) {
	cases := map[string]bool{"on": true, "ON": true, "true": true, "1": true, "off": false, "FALSE": false, "0": false}
	for in, want := range cases {
		got, err := parseOnOff(in)
		if err != nil {
			t.Fatalf("parseOnOff(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseOnOff(%q) = %v, want %v", in, got, want)
		}
	}

	if _, err := parseOnOff("maybe"); err == nil {
		t.Error("expected error for unrecognized switch value")
	}
}

func TestBoolToOnOff(t *testing.T) {
	if boolToOnOff(true) != "ON" || boolToOnOff(false) != "OFF" {
		t.Error("boolToOnOff mismatch")
	}
}

func TestRenderValue(t *testing.T) {
	if renderValue("PluggedIn") != "PluggedIn" {
		t.Error("string passthrough failed")
	}
	if renderValue(241.4) != "241.4" {
		t.Errorf("float render = %q", renderValue(241.4))
	}
	if renderValue(40) != "40" {
		t.Errorf("int render = %q", renderValue(40))
	}
}

func TestPersistedSensors(t *testing.T) {
	if !persistedSensors["current_rating"] || !persistedSensors["current_max_offline"] {
		t.Error("expected current_rating and current_max_offline to be persisted")
	}
	if persistedSensors["current"] {
		t.Error("current should not be in the persisted set")
	}
}
