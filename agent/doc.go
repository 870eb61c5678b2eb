// Package agent implements the three conversational specialists that walk a
// buyer through an order: product search and confirmation, transactional
// detail collection, and final address/industry selection with order
// placement.
//
// Each specialist follows the same turn shape: build a stage-specific
// instruction from session state, replay recent history, let the model call
// tools, execute the calls against a shared staged-update batch, then ask the
// model for a closing reply with the tool results in context. The staged
// batch is returned to the caller; nothing touches the session until the
// engine applies it.
package agent
