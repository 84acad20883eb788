// Package events defines the engine events emitted on the event bus.
//
// Available event types:
//   - BackendEvent: backend attempt, failure and fallback information
//   - DispatchEvent: summary of a dispatcher pass
//   - SuggestionEvent: summary of an assistant pass
//   - DecisionEvent: human decision recorded against a suggestion
package events
