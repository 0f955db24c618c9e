package conversation

import (
	"fmt"

	"streamchat/internal/domain"
	"streamchat/internal/render"
)

// EntryID arma el id de display de una entrada: "<role>-<turn>".
func EntryID(role domain.Role, turn int) string {
	return fmt.Sprintf("%s-%d", role, turn)
}

// NextTurn devuelve el indice del proximo turno: la cantidad de mensajes de usuario en el log.
func NextTurn(log []domain.Message) int {
	n := 0
	for _, m := range log {
		if m.Role == domain.RoleUser {
			n++
		}
	}
	return n
}

// ModelProjection reduce el log a lo que se envia al modelo (role, content, name).
func ModelProjection(log []domain.Message) []domain.Message {
	out := make([]domain.Message, 0, len(log))
	for _, m := range log {
		out = append(out, domain.Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	return out
}

// DisplayProjection mapea cada entrada del log a una entrada renderizable.
func DisplayProjection(log []domain.Message, chatID, authorName string) []domain.DisplayMessage {
	out := make([]domain.DisplayMessage, 0, len(log))
	for i, m := range log {
		id := m.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", m.Role, i)
		}
		dm := domain.DisplayMessage{
			ID:      id,
			Role:    m.Role,
			Content: m.Content,
			HTML:    render.Markdown(m.Content),
			ChatID:  chatID,
		}
		if m.Role == domain.RoleUser {
			dm.AuthorName = authorName
		}
		out = append(out, dm)
	}
	return out
}

// InterleaveTurns reconstruye el log a partir de prompts/completions persistidos, por indice de turno.
// Un prompt sin completion queda como turno de usuario colgante.
func InterleaveTurns(prompts, completions []string) []domain.Message {
	n := max(len(prompts), len(completions))
	out := make([]domain.Message, 0, len(prompts)+len(completions))
	for i := 0; i < n; i++ {
		if i < len(prompts) {
			out = append(out, domain.Message{
				ID:      EntryID(domain.RoleUser, i),
				Role:    domain.RoleUser,
				Content: prompts[i],
			})
		}
		if i < len(completions) {
			out = append(out, domain.Message{
				ID:      EntryID(domain.RoleAssistant, i),
				Role:    domain.RoleAssistant,
				Content: completions[i],
			})
		}
	}
	return out
}
