// Package core defines the shared domain types for the conversational
// ordering pipeline: the session document, the stage state machine that
// drives agent handoffs, the per-session inventory search cache, the
// required-field table, and the tool context used to stage session
// mutations requested by model tool calls.
package core
