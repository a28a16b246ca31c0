package main

import (
	"testing"

	"github.com/jessevdk/go-flags"
)

func TestAllForwardsCollectFlags(t *testing.T) {
	var cmd allCommand
	args := []string{"--cls-code", "02", "--workers", "4", "--mode", "insert-ignore", "--no-excel"}
	if _, err := flags.ParseArgs(&cmd, args); err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	cmd.forward()

	got := cmd.collect
	if got.ClsCode != "02" || got.Workers != 4 || got.Mode != "insert-ignore" || !got.NoExcel {
		t.Errorf("collect flags = %+v", got)
	}
}

func TestAllDefaults(t *testing.T) {
	var cmd allCommand
	if _, err := flags.ParseArgs(&cmd, nil); err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	cmd.forward()

	got := cmd.collect
	if got.ClsCode != "" || got.Workers != 0 || got.Mode != "upsert" || got.NoExcel {
		t.Errorf("collect flags = %+v", got)
	}
}
