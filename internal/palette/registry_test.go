package palette

import (
	"testing"

	"marginalia/internal/domain/models/annotation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_EmbeddedPalette(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	assert.Equal(t, []annotation.Color{"yellow", "green", "blue", "red", "purple"}, r.Names())
	assert.Equal(t, annotation.ColorBlue, r.Default(annotation.KindBookmark))
	assert.Equal(t, annotation.ColorYellow, r.Default(annotation.KindHighlight))
	assert.Equal(t, annotation.ColorGreen, r.Default(annotation.KindNote))
}

func TestRegistry_Class(t *testing.T) {
	r := MustRegistry()

	tests := []struct {
		color annotation.Color
		want  string
	}{
		{annotation.ColorYellow, "warning"},
		{annotation.ColorGreen, "success"},
		{annotation.ColorBlue, "primary"},
		{annotation.ColorRed, "danger"},
		{annotation.ColorPurple, "info"},
		{"orange", "warning"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, r.Class(tt.color), "color %s", tt.color)
	}
}

func TestRegistry_Valid(t *testing.T) {
	r := MustRegistry()

	assert.True(t, r.Valid(annotation.ColorPurple))
	assert.False(t, r.Valid("orange"))
	assert.False(t, r.Valid(""))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no colors",
			yaml: "colors: []\n",
		},
		{
			name: "missing default",
			yaml: "colors:\n  - name: red\n    class: danger\ndefaults:\n  bookmark: red\n  highlight: red\n",
		},
		{
			name: "default outside palette",
			yaml: "colors:\n  - name: red\n    class: danger\ndefaults:\n  bookmark: red\n  highlight: red\n  note: green\n",
		},
		{
			name: "duplicate color",
			yaml: "colors:\n  - name: red\n  - name: red\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}
