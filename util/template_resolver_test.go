package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveTemplate(t *testing.T) {
	variables := map[string]any{
		"nome":  "Maria",
		"idade": float64(20),
		"pedido": map[string]any{
			"numero": float64(42),
		},
	}

	require.Equal(t, "Olá Maria!", ResolveTemplate("Olá {$.variables.nome}!", variables))
	require.Equal(t, "Pedido 42 confirmado", ResolveTemplate("Pedido {$.variables.pedido.numero} confirmado", variables))
	require.Equal(t, "sem tokens", ResolveTemplate("sem tokens", variables))
	// non-$ tokens are left alone
	require.Equal(t, "literal {chave}", ResolveTemplate("literal {chave}", variables))
	// unresolvable paths keep the token rather than corrupting the text
	require.Equal(t, "x {$.variables.nada} y", ResolveTemplate("x {$.variables.nada} y", variables))
}

func TestResolveTemplateMap(t *testing.T) {
	variables := map[string]any{"nome": "Maria"}
	body := map[string]any{
		"cliente": "{$.variables.nome}",
		"nested":  map[string]any{"saudacao": "oi {$.variables.nome}"},
		"lista":   []any{"{$.variables.nome}", float64(1)},
		"fixo":    true,
	}
	resolved := ResolveTemplateMap(body, variables)
	require.Equal(t, "Maria", resolved["cliente"])
	require.Equal(t, "oi Maria", resolved["nested"].(map[string]any)["saudacao"])
	require.Equal(t, "Maria", resolved["lista"].([]any)[0])
	require.Equal(t, true, resolved["fixo"])
}

func TestResolveTemplateHeaders(t *testing.T) {
	headers := map[string]string{"X-Cliente": "{$.variables.nome}", "Accept": "application/json"}
	resolved := ResolveTemplateHeaders(headers, map[string]any{"nome": "Maria"})
	require.Equal(t, "Maria", resolved["X-Cliente"])
	require.Equal(t, "application/json", resolved["Accept"])
}
