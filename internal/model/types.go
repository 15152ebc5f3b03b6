package model

// Timestamps are unix milliseconds. Structured values (metadata, states,
// todos, message content) are decoded JSON; a corrupt stored value reads
// back as nil rather than failing the row.

type Session struct {
	ID                string
	Tag               string
	Namespace         string
	MachineID         *string
	CreatedAt         int64
	UpdatedAt         int64
	Metadata          any
	MetadataVersion   int64
	AgentState        any
	AgentStateVersion int64
	Todos             any
	TodosUpdatedAt    *int64
	Active            bool
	ActiveAt          *int64
	Seq               int64
}

type Machine struct {
	ID                 string
	Namespace          string
	CreatedAt          int64
	UpdatedAt          int64
	Metadata           any
	MetadataVersion    int64
	DaemonState        any
	DaemonStateVersion int64
	Active             bool
	ActiveAt           *int64
	Seq                int64
}

type Message struct {
	ID        string
	SessionID string
	Content   any
	CreatedAt int64
	Seq       int64
	LocalID   *string
}

type User struct {
	ID             int64
	Platform       string
	PlatformUserID string
	Namespace      string
	CreatedAt      int64
}

type PushSubscription struct {
	ID        int64
	Namespace string
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt int64
}
