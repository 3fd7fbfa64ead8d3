// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// PersistEffect represents a database persistence operation.
type PersistEffect struct {
	Entity    string // e.g., "instruction", "deal"
	Operation string // e.g., "patch", "link_instruction"
	Data      any    // The entity data
}

func (e PersistEffect) EffectType() string { return "persist" }

// EnqueueEffect represents handing a task to the durable outbox.
// The payload is marshalled to JSON by the shell.
type EnqueueEffect struct {
	Kind           string
	InstructionRef string
	Payload        any
	DedupeKey      string // Optional - suppresses duplicates while a matching task is pending
}

func (e EnqueueEffect) EffectType() string { return "enqueue" }
