package domain

// EventKind tags a CompileEvent. Mirrors the compiler service's output
// types plus the queue position and terminal marker.
type EventKind string

const (
	EventLog       EventKind = "log"
	EventStatus    EventKind = "status"
	EventQueue     EventKind = "queue"
	EventBlueprint EventKind = "blueprint"
	EventError     EventKind = "error"
	EventEnd       EventKind = "end"
)

// CompileEvent is one element of a job's strictly ordered event sequence.
// Exactly one EventEnd terminates every sequence.
type CompileEvent struct {
	Kind     EventKind `json:"type"`
	Message  string    `json:"message,omitempty"`
	Position *int      `json:"position,omitempty"`
}

func LogEvent(msg string) CompileEvent {
	return CompileEvent{Kind: EventLog, Message: msg}
}

func StatusEvent(msg string) CompileEvent {
	return CompileEvent{Kind: EventStatus, Message: msg}
}

func QueueEvent(position int) CompileEvent {
	return CompileEvent{Kind: EventQueue, Position: &position}
}

func BlueprintEvent(blueprint string) CompileEvent {
	return CompileEvent{Kind: EventBlueprint, Message: blueprint}
}

func ErrorEvent(msg string) CompileEvent {
	return CompileEvent{Kind: EventError, Message: msg}
}

func EndEvent() CompileEvent {
	return CompileEvent{Kind: EventEnd}
}
