package http

// APIResponse is the envelope for every JSON response.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PairRequest starts pairing an identity to the caller's push channel.
type PairRequest struct {
	Phone     string `json:"phone"`
	ChannelID string `json:"channelId"`
}

// PairResponse reports the normalized identity and whether a connected
// session already existed.
type PairResponse struct {
	Phone            string `json:"phone"`
	AlreadyConnected bool   `json:"alreadyConnected"`
}

// ExecuteRequest submits a script for looped execution against a session.
type ExecuteRequest struct {
	Phone     string `json:"phone"`
	Target    string `json:"target"`
	Script    string `json:"script"`
	Loop      int    `json:"loop"`
	DelayMs   int    `json:"delay"`
	ChannelID string `json:"channelId"`
}

// DisconnectRequest tears down an identity's session.
type DisconnectRequest struct {
	Phone string `json:"phone"`
}

// SessionInfo is one entry of the session listing.
type SessionInfo struct {
	Phone     string `json:"phone"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// HealthResponse reports process liveness.
type HealthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Sessions int    `json:"sessions"`
}
