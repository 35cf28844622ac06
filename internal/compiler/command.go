package compiler

import "github.com/Snagnar/facto.github.io/internal/domain"

// BuildArgs translates validated compile options into factompile flags.
// The source path is always the first argument.
func BuildArgs(sourcePath string, opts domain.CompileOptions) []string {
	args := []string{sourcePath}

	if opts.PowerPoles != "" {
		args = append(args, "--power-poles", string(opts.PowerPoles))
	}
	if opts.BlueprintName != "" {
		args = append(args, "--name", opts.BlueprintName)
	}
	if opts.NoOptimize {
		args = append(args, "--no-optimize")
	}
	if opts.JSONOutput {
		args = append(args, "--json")
	}
	if opts.LogLevel != "" {
		args = append(args, "--log-level", string(opts.LogLevel))
	}

	return args
}
