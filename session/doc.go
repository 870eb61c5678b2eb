// Package session houses concrete implementations of the conversation
// session store. The Session struct itself lives in the core package so
// agents and the engine never depend on a storage backend.
//
// Two backends are provided: a process-local in-memory map for tests and
// single-instance deployments, and a Redis store for deployments where
// sessions must survive restarts. Both expire sessions after one day of
// inactivity.
package session
