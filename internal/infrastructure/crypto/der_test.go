package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/pushgate/pkg/errors"
)

func seq(start byte, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = start + byte(i)
	}
	return b
}

func derSig(r, s []byte) []byte {
	body := append([]byte{0x02, byte(len(r))}, r...)
	body = append(body, 0x02, byte(len(s)))
	body = append(body, s...)
	return append([]byte{0x30, byte(len(body))}, body...)
}

func TestDERToRaw_FullWidth(t *testing.T) {
	r := seq(0x01, 32)
	s := seq(0x21, 32)

	raw, err := DERToRaw(derSig(r, s))
	require.NoError(t, err)
	assert.Equal(t, r, raw[:32])
	assert.Equal(t, s, raw[32:])
}

func TestDERToRaw_ShortValuesArePadded(t *testing.T) {
	r := seq(0x10, 31)
	s := seq(0x40, 31)

	raw, err := DERToRaw(derSig(r, s))
	require.NoError(t, err)

	assert.Equal(t, byte(0x00), raw[0])
	assert.Equal(t, r, raw[1:32])
	assert.Equal(t, byte(0x00), raw[32])
	assert.Equal(t, s, raw[33:])
}

func TestDERToRaw_SignPaddingIsStripped(t *testing.T) {
	r := append([]byte{0x00}, seq(0x80, 32)...)
	s := append([]byte{0x00}, seq(0x90, 32)...)

	raw, err := DERToRaw(derSig(r, s))
	require.NoError(t, err)
	assert.Equal(t, r[1:], raw[:32])
	assert.Equal(t, s[1:], raw[32:])
}

func TestDERToRaw_MixedWidths(t *testing.T) {
	r := append([]byte{0x00}, bytes.Repeat([]byte{0xff}, 32)...)
	s := []byte{0x7f}

	raw, err := DERToRaw(derSig(r, s))
	require.NoError(t, err)

	want := append(bytes.Repeat([]byte{0xff}, 32), bytes.Repeat([]byte{0x00}, 31)...)
	want = append(want, 0x7f)
	assert.Equal(t, want, raw[:])
}

func TestDERToRaw_Malformed(t *testing.T) {
	valid := derSig(seq(0x01, 32), seq(0x21, 32))

	tests := []struct {
		name string
		der  []byte
	}{
		{"empty", nil},
		{"too short", []byte{0x30, 0x06, 0x02, 0x01, 0x01, 0x02, 0x01}},
		{"not a sequence", append([]byte{0x31}, valid[1:]...)},
		{"r not an integer", func() []byte { b := bytes.Clone(valid); b[2] = 0x04; return b }()},
		{"s not an integer", func() []byte { b := bytes.Clone(valid); b[36] = 0x04; return b }()},
		{"r length overruns", func() []byte { b := bytes.Clone(valid); b[3] = 0x7f; return b }()},
		{"truncated s", valid[:len(valid)-5]},
		{"missing s", valid[:36]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := DERToRaw(tt.der)
				assert.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrSignatureFormat))
			})
		})
	}
}

// Signatures captured from a P-256 key over sha256("pushgate-golden"),
// covering a sign-padded r, a short s, and both integers sign-padded.
var goldenSignatures = []struct {
	name string
	der  string
	raw  string
}{
	{
		name: "r sign-padded",
		der:  "304502210095922dcd41638f70edc5490c88b09fe7aeb3c9e895593d481432153a0bac6b9302206bdcb6ad5483c9238520b6433f7d30276ef7a3be7e9ade711da01ace00a8a42d",
		raw:  "95922dcd41638f70edc5490c88b09fe7aeb3c9e895593d481432153a0bac6b936bdcb6ad5483c9238520b6433f7d30276ef7a3be7e9ade711da01ace00a8a42d",
	},
	{
		name: "s short",
		der:  "3043022026a8994abffba46c06213b88ca0b5b6ce6852bfde8bfb790451aa9fc9e5e8fa9021f763da77c6604e7dcfd53c8a5e99861087482be3e5b93a62eac45f89810b5c6",
		raw:  "26a8994abffba46c06213b88ca0b5b6ce6852bfde8bfb790451aa9fc9e5e8fa900763da77c6604e7dcfd53c8a5e99861087482be3e5b93a62eac45f89810b5c6",
	},
	{
		name: "both sign-padded",
		der:  "3046022100ff4760876d71119c07470586fe9db24dd714f4fcc8b512f5921e6befecfb1b9e022100c96668dc96111c7fe50020b76b715cb4a8766f505c3f4f5efb65331075794bf1",
		raw:  "ff4760876d71119c07470586fe9db24dd714f4fcc8b512f5921e6befecfb1b9ec96668dc96111c7fe50020b76b715cb4a8766f505c3f4f5efb65331075794bf1",
	},
}

const goldenPublicKey = "045c3d83c8b2f37d0cb52c8ea57f3613c46d5611051b014f7d44e8469a392502a8033dcff54354d92cdaa2bd4944ec11969ae1e9f452fd6a86ff29f329f4e961ef"

func TestDERToRaw_GoldenVectors(t *testing.T) {
	point, err := hex.DecodeString(goldenPublicKey)
	require.NoError(t, err)
	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(point[1:33]),
		Y:     new(big.Int).SetBytes(point[33:]),
	}
	digest := sha256.Sum256([]byte("pushgate-golden"))

	for _, tt := range goldenSignatures {
		t.Run(tt.name, func(t *testing.T) {
			der, err := hex.DecodeString(tt.der)
			require.NoError(t, err)
			require.True(t, ecdsa.VerifyASN1(pub, digest[:], der))

			raw, err := DERToRaw(der)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, hex.EncodeToString(raw[:]))

			r := new(big.Int).SetBytes(raw[:32])
			s := new(big.Int).SetBytes(raw[32:])
			assert.True(t, ecdsa.Verify(pub, digest[:], r, s))
		})
	}
}
