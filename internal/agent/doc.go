// Package agent contains the core orchestrator that turns a block-letter
// build task into a scored dataset record. It renders the target mask,
// prompts one or two building agents for commands, replays the validated
// command streams in an offline world, and scores the resulting plane.
package agent
