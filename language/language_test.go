package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected Code
	}{
		{"ts", JavaScript},
		{"typescript", JavaScript},
		{"JavaScript", JavaScript},
		{"node", JavaScript},
		{"JS", JavaScript},
		{"py3", Python},
		{"Python", Python},
		{"java", Java},
		{"c++17", CPP},
		{"cplusplus", CPP},
		{"C++", CPP},
		{"cpp", CPP},
		{"c", C},
		{"  c99 ", C},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			code, err := Normalize(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, code)
		})
	}
}

func TestNormalizeAliasesAgree(t *testing.T) {
	for code, names := range Aliases() {
		for _, name := range names {
			got, err := Normalize(name)
			require.NoError(t, err, name)
			assert.Equal(t, code, got, name)
		}
	}
}

func TestNormalizeUnsupported(t *testing.T) {
	for _, input := range []string{"cobol", "", "rust", "c#"} {
		t.Run(input, func(t *testing.T) {
			_, err := Normalize(input)
			assert.ErrorIs(t, err, ErrNotSupported)
		})
	}
}

func TestSupportedAliases(t *testing.T) {
	all := SupportedAliases()
	assert.Contains(t, all, "ts")
	assert.Contains(t, all, "py3")
	assert.IsIncreasing(t, all)
}

func TestCompiled(t *testing.T) {
	assert.True(t, CPP.Compiled())
	assert.True(t, C.Compiled())
	assert.True(t, Java.Compiled())
	assert.False(t, Python.Compiled())
	assert.False(t, JavaScript.Compiled())
}
