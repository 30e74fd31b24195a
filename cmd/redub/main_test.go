package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommandWiresSubcommands(t *testing.T) {
	root := newRootCommand()
	want := map[string]bool{
		"run": false, "bless": false, "phases": false,
		"status": false, "history": false, "config": false,
	}
	for _, cmd := range root.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s missing", name)
		}
	}
}

func TestPhasesCommandListsAllNine(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"phases"})
	if err := root.Execute(); err != nil {
		t.Fatalf("phases command failed: %v", err)
	}
	text := out.String()
	for _, name := range []string{"demux", "separate", "recognize", "subtitle", "translate", "align", "synthesize", "mix", "burn"} {
		if !strings.Contains(text, name) {
			t.Errorf("phase %s missing from listing:\n%s", name, text)
		}
	}
}

func TestRunCommandRequiresVideoArgument(t *testing.T) {
	root := newRootCommand()
	root.SetOut(new(bytes.Buffer))
	root.SetErr(new(bytes.Buffer))
	root.SetArgs([]string{"run"})
	if err := root.Execute(); err == nil {
		t.Fatal("expected argument error")
	}
}
