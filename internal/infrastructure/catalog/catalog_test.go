package catalog

import (
	"testing"

	"clinic-booking/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Embedded(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Len(t, c.Doctors, 5)
	assert.Zero(t, c.Skipped)
	for _, d := range c.Doctors {
		assert.Equal(t, entity.DoctorSourceBundled, d.Source)
		assert.True(t, d.IsActive)
		assert.True(t, d.Fee.IsPositive(), "fee for %s", d.Name)
	}
}

func TestDecode_SkipsMalformedEntries(t *testing.T) {
	data := []byte(`[
		{"id": "6c1f3a52-1b1e-4a8e-9a51-0f3c2d7b9a01", "name": "Dr. Good"},
		{"id": "not-a-uuid", "name": "Dr. Broken"},
		{"id": "6c1f3a52-1b1e-4a8e-9a51-0f3c2d7b9a02", "name": ""},
		{"id": "6c1f3a52-1b1e-4a8e-9a51-0f3c2d7b9a03", "name": "Dr. Also Good", "fee": "120000"}
	]`)

	c, err := Decode(data)
	require.NoError(t, err)

	require.Len(t, c.Doctors, 2)
	assert.Equal(t, 2, c.Skipped)
	assert.Equal(t, "Dr. Good", c.Doctors[0].Name)
	assert.Equal(t, "Dr. Also Good", c.Doctors[1].Name)
}

func TestDecode_RejectsNonArray(t *testing.T) {
	_, err := Decode([]byte(`{"id": "x"}`))
	assert.Error(t, err)
}
