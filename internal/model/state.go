package model

// Phase is the controller's position in the session state machine.
type Phase string

const (
	PhaseLoading        Phase = "loading"
	PhaseAnonymous      Phase = "anonymous"
	PhaseAuthenticating Phase = "authenticating"
	PhaseAuthenticated  Phase = "authenticated"
)

// State is the published controller state consumed by UIs.
type State struct {
	Phase         Phase
	Session       *Session
	Profile       *Profile
	Loading       bool
	Authenticated bool
	SyncError     string
}
