// Package pipeline implements the incremental phase runner. Phases declare
// the artifact keys they require and provide; the runner resolves paths,
// fingerprints inputs, configuration, and outputs, decides run-versus-skip,
// and commits one manifest record per executed phase. The bless operation
// re-baselines a phase's output fingerprints so hand-edited authoritative
// documents persist across runs.
package pipeline
