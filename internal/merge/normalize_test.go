package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Rocky Balboa ", "Rocky Balboa"},
		{"Rocky   Balboa", "Rocky Balboa"},
		{"Rocky\tBalboa", "Rocky Balboa"},
		{"Rocky Balboa", "Rocky Balboa"},
		{"", ""},
		// Combining accent composes under NFC.
		{"José", "José"},
		{"  A  B   C  ", "A B C"},
		{"O'Neill-Ramírez", "O'Neill-Ramírez"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeName(c.in), "input %q", c.in)
	}
}

func TestNormalizeBillID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hb1", "HB 1"},
		{"HB 001", "HB 1"},
		{"HB  1", "HB 1"},
		{"HB\t1", "HB 1"},
		{"HB 1", "HB 1"},
		{"sjr 0012", "SJR 12"},
		{"HB1", "HB 1"},
		{" hb 1 ", "HB 1"},
		{"HB 10", "HB 10"},
		{"hb 100", "HB 100"},
		// Outside the letters-then-number shape: trim and uppercase only.
		{"prop 1a", "PROP 1A"},
		{"HB 1-A", "HB 1-A"},
		{"1234", "1234"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeBillID(c.in), "input %q", c.in)
	}
}
