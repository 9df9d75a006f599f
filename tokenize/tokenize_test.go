package tokenize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"hello", "world", "42"}, Words("Hello, World! 42"))
	assert.Equal(t, []string{"don", "t", "stop"}, Words("Don't stop"))
	assert.Empty(t, Words("  ...  "))
}

func TestTerms(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"drops stop words", "The cat is on the mat", []string{"cat", "mat"}},
		{"keeps order and duplicates", "vacation policy vacation", []string{"vacation", "policy", "vacation"}},
		{"only stop words", "the and of", []string{}},
		{"unicode letters", "Café crème", []string{"café", "crème"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Terms(tt.text))
		})
	}
}

func TestUniqueTerms(t *testing.T) {
	assert.Equal(t, []string{"vacation", "policy"}, UniqueTerms("vacation policy vacation"))
}

func TestBigrams(t *testing.T) {
	assert.Nil(t, Bigrams([]string{"one"}))
	assert.Equal(t, []string{"a b", "b c"}, Bigrams([]string{"a", "b", "c"}))
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.False(t, IsStopWord("vacation"))
}
