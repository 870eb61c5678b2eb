// Package engine routes chat turns through the agent pipeline. For each
// message it normalizes the request language, translates inbound text to
// English, loads or creates the session, dispatches to the agent owning the
// session's stage, applies the staged session mutations the turn produced,
// validates any requested handoff against the stage transition table, runs
// the one-time stage expansion on transition, translates the reply back and
// persists the session.
package engine
