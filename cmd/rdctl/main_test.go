package main

import (
	"slices"
	"testing"

	"RDS/internal/control"
)

func TestParseCommands(t *testing.T) {
	got, err := parseCommands([]string{"set-feed", "0.055", "reset", "set-steps-per-frame", "8", "start"})
	if err != nil {
		t.Fatal(err)
	}
	want := []control.Command{control.SetFeed(0.055), control.Reset(), control.SetStepsPerFrame(8), control.Start()}
	if !slices.Equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	for _, bad := range [][]string{{"set-kill"}, {"launch"}, {"set-timestep", "fast"}} {
		if _, err := parseCommands(bad); err == nil {
			t.Errorf("parseCommands(%q) accepted", bad)
		}
	}
}
