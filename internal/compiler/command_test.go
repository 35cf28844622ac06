package compiler

import (
	"reflect"
	"testing"

	"github.com/Snagnar/facto.github.io/internal/domain"
)

func TestBuildArgs_Defaults(t *testing.T) {
	args := BuildArgs("/tmp/main.facto", domain.CompileOptions{})
	if !reflect.DeepEqual(args, []string{"/tmp/main.facto"}) {
		t.Errorf("expected bare source path, got %v", args)
	}
}

func TestBuildArgs_AllOptions(t *testing.T) {
	args := BuildArgs("/tmp/main.facto", domain.CompileOptions{
		BlueprintName: "Iron Outpost",
		PowerPoles:    domain.PolesSubstation,
		NoOptimize:    true,
		JSONOutput:    true,
		LogLevel:      domain.LogWarning,
	})

	want := []string{
		"/tmp/main.facto",
		"--power-poles", "substation",
		"--name", "Iron Outpost",
		"--no-optimize",
		"--json",
		"--log-level", "warning",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("expected %v, got %v", want, args)
	}
}
