package student

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/malla-ucn/malla-estudiante/internal/domain/shared"
)

func TestValidateRut(t *testing.T) {
	valid := []string{"12345678-9", "1234567-K", "12345678k", " 7654321-0 "}
	for _, rut := range valid {
		assert.NoError(t, ValidateRut(rut), rut)
	}

	invalid := []string{"", "123456-7", "123456789-0", "12.345.678-9", "abcdefgh-1"}
	for _, rut := range invalid {
		assert.ErrorIs(t, ValidateRut(rut), shared.ErrInvalidInput, rut)
	}
}

func TestStudent_Career(t *testing.T) {
	s := &Student{Rut: "12345678-9", Careers: []Career{
		{Code: "8606", Name: "Ingeniería Civil en Computación", Catalog: "201610"},
	}}

	c, ok := s.Career("8606")
	assert.True(t, ok)
	assert.Equal(t, "8606-201610", c.CatalogRef().String())
	assert.False(t, s.EnrolledIn("8266"))
	assert.Equal(t, "1234567K", NormalizeRut(" 1234567k "))
}

func TestRutFromEmail(t *testing.T) {
	rut, ok := RutFromEmail("12345678-k@alumnos.ucn.cl")
	assert.True(t, ok)
	assert.Equal(t, "12345678-K", rut)

	_, ok = RutFromEmail("ana.perez@alumnos.ucn.cl")
	assert.False(t, ok)
	_, ok = RutFromEmail("12345678-9")
	assert.False(t, ok, "no domain part")
}
