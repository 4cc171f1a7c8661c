package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/vejoias/internal/domain/order"
)

func TestAddressJSON(t *testing.T) {
	a := order.Address{
		ZipCode:  "01310-100",
		Street:   "Av. Paulista",
		Number:   "1000",
		District: "Bela Vista",
		City:     "São Paulo",
		State:    "SP",
	}

	b := encodeAddress(a)
	assert.NotContains(t, string(b), "complemento")

	got, err := decodeAddress(b)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestDecodeAddressSkipsUnknownFields(t *testing.T) {
	got, err := decodeAddress([]byte(`{"cep":"20040-002","referencia":{"x":1},"complemento":"apto 12","estado":"RJ"}`))
	require.NoError(t, err)
	assert.Equal(t, order.Address{ZipCode: "20040-002", Complement: "apto 12", State: "RJ"}, got)

	_, err = decodeAddress([]byte(`{"cep":12}`))
	require.Error(t, err)
}
