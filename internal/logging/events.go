package logging

// Event names, used as log messages so they can be grepped in session files.
const (
	EventSessionStart = "session.start"
	EventSessionEnd   = "session.end"

	EventRoutePrompt   = "router.prompt"
	EventCommand       = "router.command"
	EventTurnLimit     = "router.turn_limit"
	EventTurnComplete  = "router.complete"
	EventThreadCleared = "thread.cleared"

	EventModelRequest  = "model.request"
	EventModelResponse = "model.response"
	EventModelError    = "model.error"

	EventPermissionTransition = "permission.transition"
	EventPermissionGranted    = "permission.session_grant"
	EventPermissionTimeout    = "permission.timeout"

	EventToolStart    = "tool.start"
	EventToolComplete = "tool.complete"
	EventToolDenied   = "tool.denied"
	EventToolError    = "tool.error"

	EventCompressStart    = "memory.compress.start"
	EventCompressComplete = "memory.compress.complete"
	EventCompressFailed   = "memory.compress.failed"

	EventContextReload = "context.reload"
)
