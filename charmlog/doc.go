// Package charmlog owns the process-wide zerolog logger. Hook dispatch
// configures it once with a Sink so every line is mirrored into the Juju
// debug log; any other entry point gets a stderr-only logger on first use.
package charmlog
