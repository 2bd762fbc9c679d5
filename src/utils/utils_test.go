package utils

import (
	"bytes"
	"encoding/hex"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey, _ = hex.DecodeString("6368616e676520746869732070617373776f726420746f206120736563726574")

func TestEncryptRoundTrip(t *testing.T) {
	sealed, err := EncryptMessage(testKey, "TKT-0123456789ABCDEF")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "TKT-")

	plain, err := DecryptMessage(testKey, sealed)
	require.NoError(t, err)
	assert.Equal(t, "TKT-0123456789ABCDEF", plain)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	_, err := DecryptMessage(testKey, "abcd")
	assert.Error(t, err)
	_, err = DecryptMessage(testKey, "not hex")
	assert.Error(t, err)
}

func TestScannedCode(t *testing.T) {
	sealed, err := TicketPayload(testKey, "TKT-0123456789ABCDEF")
	require.NoError(t, err)

	assert.Equal(t, "TKT-0123456789ABCDEF", ScannedCode(testKey, sealed))
	assert.Equal(t, "TKT-0123456789ABCDEF", ScannedCode(testKey, " TKT-0123456789ABCDEF "))
	assert.Equal(t, "TKT-X", ScannedCode(nil, "TKT-X"))

	plain, err := TicketPayload(nil, "TKT-X")
	require.NoError(t, err)
	assert.Equal(t, "TKT-X", plain)
}

func TestRenderTicketQR(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, RenderTicketQR(&buf, nil, "TKT-0123456789ABCDEF"))

	img, _, err := image.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)
}
