package domain

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message es una entrada del log de conversacion. ID es metadata de display y nunca se envia al modelo.
type Message struct {
	ID      string `json:"id,omitempty"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// DisplayMessage es la proyeccion lista para renderizar de un Message.
type DisplayMessage struct {
	ID         string `json:"id"`
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	HTML       string `json:"html"`
	AuthorName string `json:"author_name,omitempty"`
	ChatID     string `json:"chat_id"`
}
