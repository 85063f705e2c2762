package annotate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Mode
		wantErr bool
	}{
		{"exact", "BoxCorner", BoxCorner, false},
		{"lower case", "heatmap", HeatMap, false},
		{"padded", "  Trace ", Trace, false},
		{"legacy ellipse spelling", "Ellips", Ellipse, false},
		{"short ellipse spelling", "Elips", Ellipse, false},
		{"round alias", "Round", RoundBox, false},
		{"unknown", "Sparkles", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModes(t *testing.T) {
	modes := Modes()
	require.Len(t, modes, 13)
	assert.Equal(t, BoxCorner, modes[0])

	for _, m := range modes {
		a, err := New(m)
		require.NoError(t, err, "mode %s", m)
		require.NoError(t, a.Close())
	}

	// Callers cannot mutate the registry order
	modes[0] = Dot
	assert.Equal(t, BoxCorner, Modes()[0])
}

func TestNext(t *testing.T) {
	assert.Equal(t, Box, Next(BoxCorner))
	assert.Equal(t, BoxCorner, Next(Dot))
	assert.Equal(t, BoxCorner, Next(Mode("bogus")))
}

func TestNew_Unknown(t *testing.T) {
	_, err := New(Mode("bogus"))
	assert.ErrorIs(t, err, ErrUnknownMode)
}
