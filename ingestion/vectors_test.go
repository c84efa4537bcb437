package ingestion

import (
	"bytes"
	"strings"
	"testing"

	"github.com/poiesic/medimatch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadVectorCSV(t *testing.T) {
	input := "Advil,0.1,0.2,0.3\n" +
		"Lonely\n" +
		" Tylenol ,1, ,-2.5e-1\n" +
		"\"Aleve, Liquid Gels\",0,1,0\n"

	meds, err := ReadVectorCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, meds, 3)

	assert.Equal(t, "Advil", meds[0].Name)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, meds[0].Vector)
	assert.Equal(t, "Tylenol", meds[1].Name)
	assert.Equal(t, []float32{1, -0.25}, meds[1].Vector)
	assert.Equal(t, "Aleve, Liquid Gels", meds[2].Name)
	assert.Equal(t, core.IDFromContent("Advil"), meds[0].Id)
}

func TestReadVectorCSV_BadNumber(t *testing.T) {
	input := "Advil,0.1,0.2\nTylenol,0.3,abc\n"

	_, err := ReadVectorCSV(strings.NewReader(input))
	require.ErrorIs(t, err, ErrMalformedRow)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "abc")
}

func TestReadVectorCSV_Empty(t *testing.T) {
	meds, err := ReadVectorCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, meds)
}

func TestWriteVectorCSV_RoundTrip(t *testing.T) {
	meds := []core.Medication{
		{Name: "Advil", Vector: []float32{0.1, -0.2, 0.30000001}},
		{Name: "Aleve, Liquid Gels", Vector: []float32{1e-7, 2, 3}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteVectorCSV(&buf, meds))

	decoded, err := ReadVectorCSV(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range meds {
		assert.Equal(t, meds[i].Name, decoded[i].Name)
		assert.Equal(t, meds[i].Vector, decoded[i].Vector)
	}
}
