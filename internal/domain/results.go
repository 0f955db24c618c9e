package domain

// SubmitResult es la respuesta de Submit: exito con turn/chat, o fallo con mensaje.
type SubmitResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Reset     int64  `json:"reset"`
	TurnID    string `json:"turn_id,omitempty"`
	ChatID    string `json:"chat_id,omitempty"`
}

type HistoryResult struct {
	UIMessages []DisplayMessage `json:"ui_messages"`
	ChatID     string           `json:"chat_id"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

type ResetResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
