package domain

import "time"

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuthSession es la sesion autenticada resuelta por el proveedor de identidad.
type AuthSession struct {
	ID string `json:"id"`
}
