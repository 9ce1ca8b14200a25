package domain

// Message is one entry of a visitor's history. Treat it as immutable once created.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// Turn is a re-tagged message as sent upstream in a context window.
type Turn struct {
	Role    TurnRole `json:"role"`
	Content string   `json:"content"`
}

// ChatContext carries opaque display values supplied by the caller.
type ChatContext struct {
	UserName   string `json:"userName,omitempty"`
	CourseName string `json:"courseName,omitempty"`
	PageURL    string `json:"pageUrl,omitempty"`
}

// ChatRequest advances a conversation by one turn.
type ChatRequest struct {
	Message string      `json:"message"`
	History []Turn      `json:"history"`
	Context ChatContext `json:"context"`
}

type ChatReply struct {
	Reply string `json:"reply"`
}
