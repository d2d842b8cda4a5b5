package event

type Type string

const (
	TypeLoginSucceeded  Type = "auth.login.succeeded"
	TypeLoginFailed     Type = "auth.login.failed"
	TypeRegistered      Type = "auth.registered"
	TypeForgetRequested Type = "auth.forget.requested"
	TypeResetCompleted  Type = "auth.reset.completed"
	TypeResetRejected   Type = "auth.reset.rejected"
	TypeUserCreated     Type = "user.created"
	TypeUserUpdated     Type = "user.updated"
	TypeUserDeleted     Type = "user.deleted"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

type Event struct {
	ID         string `json:"id"`
	Type       Type   `json:"type"`
	Status     string `json:"status"`
	ActorID    int64  `json:"actor_id,omitempty"`
	ActorEmail string `json:"actor_email,omitempty"`
	ActorIP    string `json:"actor_ip,omitempty"`
	Resource   string `json:"resource,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  string `json:"timestamp"`
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
