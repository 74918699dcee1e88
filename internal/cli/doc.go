// Package cli wires together the Cobra command tree for the prpilot binary.
//
// It defines the root command and its subcommands (brief, config, models,
// version), maps flags onto configuration overrides, builds the model
// invoker and the GitHub client, runs the briefing pipeline, and turns the
// outcome into a deterministic exit code.
package cli
