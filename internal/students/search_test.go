package students

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFoldName(t *testing.T) {
	cases := map[string]string{
		"Aïcha":         "aicha",
		"Bénédicte":     "benedicte",
		"  N'Guessan ":  "n'guessan",
		"FRANÇOIS Noël": "francois noel",
		"plain":         "plain",
	}
	for in, want := range cases {
		assert.Equal(t, want, FoldName(in), in)
	}
}
