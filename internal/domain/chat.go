package domain

import "time"

// ChatMetadata corresponde al hash de metadata de un chat persistido.
type ChatMetadata struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatRecord agrupa metadata y las listas de prompts/completions de un chat.
// Prompts[i] se empareja con Completions[i].
type ChatRecord struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Prompts     []string      `json:"prompts"`
	Completions []string      `json:"completions"`
	Metadata    *ChatMetadata `json:"metadata"`
}

type ChatSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}
