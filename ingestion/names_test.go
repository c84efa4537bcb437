package ingestion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadNames(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		column   string
		expected []string
	}{
		{
			name: "product export",
			input: "PRODUCTID,PROPRIETARYNAME,NONPROPRIETARYNAME\n" +
				"1,Advil,ibuprofen\n" +
				"2, Tylenol ,acetaminophen\n" +
				"3,Advil,ibuprofen\n" +
				"4,,naproxen\n" +
				"5,\"Aleve, Liquid Gels\",naproxen\n",
			expected: []string{"Advil", "Tylenol", "Aleve, Liquid Gels"},
		},
		{
			name:     "custom column",
			input:    "PROPRIETARYNAME,NONPROPRIETARYNAME\nAdvil,ibuprofen\nMotrin,ibuprofen\n",
			column:   "NONPROPRIETARYNAME",
			expected: []string{"ibuprofen"},
		},
		{
			name:     "missing column falls back to first",
			input:    "0\nAdvil\nTylenol\nAdvil\n",
			expected: []string{"Advil", "Tylenol"},
		},
		{
			name:     "header matching ignores case and BOM",
			input:    "\ufeffid,proprietaryname\n1,Advil\n",
			expected: []string{"Advil"},
		},
		{
			name:     "short rows are ignored",
			input:    "ID,PROPRIETARYNAME\n1\n2,Advil\n",
			expected: []string{"Advil"},
		},
		{
			name:     "empty input",
			input:    "",
			expected: []string{},
		},
		{
			name:     "header only",
			input:    "PROPRIETARYNAME\n",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			names, err := ReadNames(strings.NewReader(tt.input), tt.column)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestWriteNames_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNames(&buf, "", []string{"Advil", "Aleve, Liquid Gels"}))

	names, err := ReadNames(&buf, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Advil", "Aleve, Liquid Gels"}, names)
}
