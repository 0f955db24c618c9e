package llm

import (
	"errors"
	"strings"
)

// ModelChoice es la enumeracion cerrada de modelos que puede pedir un caller.
type ModelChoice string

const (
	ModelFastGeneral      ModelChoice = "fast-general"
	ModelPremiumReasoning ModelChoice = "premium-reasoning"
)

// Nombres heredados de la UI original.
var modelAliases = map[string]ModelChoice{
	"chatgpt4": ModelFastGeneral,
	"claude3":  ModelPremiumReasoning,
}

var ErrNoModelBindings = errors.New("no model bindings configured")

// Binding asocia una opcion a un provider y a un modelo concreto.
type Binding struct {
	Choice   ModelChoice
	Model    string
	Provider Provider
}

// ModelHandle es el binding resuelto para un turno.
type ModelHandle struct {
	Choice   ModelChoice `json:"choice"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`

	backend Provider
}

// Registry resuelve nombres de modelo a bindings.
type Registry struct {
	bindings map[ModelChoice]Binding
	order    []ModelChoice
	def      ModelChoice
}

func NewRegistry(def ModelChoice, bindings ...Binding) (*Registry, error) {
	r := &Registry{
		bindings: make(map[ModelChoice]Binding, len(bindings)),
		def:      def,
	}
	for _, b := range bindings {
		if b.Provider == nil {
			continue
		}
		if _, dup := r.bindings[b.Choice]; !dup {
			r.order = append(r.order, b.Choice)
		}
		r.bindings[b.Choice] = b
	}
	if len(r.bindings) == 0 {
		return nil, ErrNoModelBindings
	}
	if _, ok := r.bindings[r.def]; !ok {
		r.def = r.order[0]
	}
	return r, nil
}

// ParseChoice normaliza un nombre de modelo. ok es false si no pertenece a la enumeracion.
func ParseChoice(name string) (ModelChoice, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := modelAliases[n]; ok {
		return alias, true
	}
	switch c := ModelChoice(n); c {
	case ModelFastGeneral, ModelPremiumReasoning:
		return c, true
	}
	return "", false
}

// Select nunca falla: nombres desconocidos o sin binding caen en el binding por defecto.
func (r *Registry) Select(name string) ModelHandle {
	choice, ok := ParseChoice(name)
	b, bound := r.bindings[choice]
	if !ok || !bound {
		b = r.bindings[r.def]
	}
	return ModelHandle{
		Choice:   b.Choice,
		Provider: b.Provider.Name(),
		Model:    b.Model,
		backend:  b.Provider,
	}
}

func (r *Registry) Default() ModelChoice {
	return r.def
}

// Choices devuelve las opciones configuradas en orden de registro.
func (r *Registry) Choices() []ModelChoice {
	out := make([]ModelChoice, len(r.order))
	copy(out, r.order)
	return out
}
