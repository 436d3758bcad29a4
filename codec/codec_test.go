package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBase64RoundTrip(t *testing.T) {
	cases := [][]byte{
		nil,
		[]byte("f"),
		[]byte("fo"),
		[]byte("foo"),
		[]byte("foob"),
		[]byte("fooba"),
		[]byte("foobar"),
		{0x00, 0xff, 0x10, 0x7f, 0x80},
	}
	for _, c := range cases {
		encoded := EncodeBase64(c)
		decoded, ok := DecodeBase64(encoded)
		require.True(t, ok)
		require.Equal(t, c, decoded)
	}
}

func TestBase64DecodeTolerant(t *testing.T) {
	decoded, ok := DecodeBase64("Zm9v\n\t")
	require.True(t, ok)
	require.Equal(t, []byte("foo"), decoded)

	_, ok = DecodeBase64("a")
	require.False(t, ok)
}

func TestMD5KnownVectors(t *testing.T) {
	require.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", hexDigest(MD5(nil)))
	require.Equal(t, "900150983cd24fb0d6963f7d28e17f72", hexDigest(MD5([]byte("abc"))))
}

func hexDigest(d [16]byte) string {
	const hexChars = "0123456789abcdef"
	out := make([]byte, 32)
	for i, b := range d {
		out[i*2] = hexChars[b>>4]
		out[i*2+1] = hexChars[b&0xF]
	}
	return string(out)
}

func TestPercentDecode(t *testing.T) {
	s, err := PercentDecode("a%20b%2Fc")
	require.NoError(t, err)
	require.Equal(t, "a b/c", s)

	_, err = PercentDecode("a%2")
	require.Error(t, err)

	_, err = PercentDecode("a%zz")
	require.Error(t, err)
}
