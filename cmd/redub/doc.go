// Package main hosts the redub CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into
// pipeline runs, bless operations, and workspace inspection. It
// centralizes configuration resolution, credential checks, and logger
// setup so subcommands can focus on user experience; the pipeline itself
// lives in the internal packages.
package main
