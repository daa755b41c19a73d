package model

import "fmt"

// ValidationError reports a malformed flow, node or transition configuration.
// It surfaces synchronously at authoring time.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NotFoundError reports a missing flow, node, transition or context reference.
type NotFoundError struct {
	Kind string
	Id   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Id)
}

// ExecutionError is a fatal mid-run condition: unmatched transition, dead-end
// condition branch or exceeded step cap. It is absorbed by the interpreter,
// which records it on the context and sets status ERROR.
type ExecutionError struct {
	NodeId  string
	Event   string
	Message string
}

func (e ExecutionError) Error() string {
	if e.NodeId != "" {
		return fmt.Sprintf("execution error at node %s on event %s: %s", e.NodeId, e.Event, e.Message)
	}
	return fmt.Sprintf("execution error: %s", e.Message)
}
