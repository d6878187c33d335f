package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsQuote(t *testing.T) {
	quoted := []string{
		"",
		"sí",
		"Sí",
		"no",
		"Yes",
		"TRUE",
		"on",
		"null",
		"none",
		"~",
		"y",
		"n",
		" leading",
		"trailing ",
		"two words",
		"line\nbreak",
		"¿Funciona?",
		"valor: otro",
		"# comentario",
		"a,b",
		"[lista]",
		"{mapa}",
		"-guion",
		"?pregunta",
		"3",
		"3.14",
		"-2",
		"1e3",
		`with "quotes"`,
		"it's",
	}
	for _, s := range quoted {
		assert.True(t, NeedsQuote(s), "expected %q to need quoting", s)
	}

	plain := []string{
		"hello",
		"Revisar",
		"q1",
		"end_2",
		"snake_case_id",
		"CamelCase",
		"si",
		"nope",
		"yess",
		"3a",
	}
	for _, s := range plain {
		assert.False(t, NeedsQuote(s), "expected %q to stay bare", s)
	}
}

func TestMarshalQuoteEscapes(t *testing.T) {
	out := scalarString("línea\ncon\ttabs \"citas\"")
	assert.Equal(t, `"línea\ncon\ttabs \"citas\""`, out)
}
