// Package logging wires log/slog with a human-oriented console handler and
// a machine-oriented JSON handler, plus context helpers that attribute every
// record to the pipeline phase and episode being processed.
package logging
