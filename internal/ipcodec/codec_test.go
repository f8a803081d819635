// File: internal/ipcodec/codec_test.go (complete file)

package ipcodec

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsV4(t *testing.T) {
	for _, s := range []string{"127.0.0.1", "1.1.1.1", "0.0.0.0", "255.255.255.255"} {
		assert.True(t, IsV4(s), s)
	}
	for _, s := range []string{"2001:db8::1", "1a2b::2", "fe00:0:0:1::92", "::ffff:1.2.3.4"} {
		assert.False(t, IsV4(s), s)
	}
}

func TestV4_KnownValues(t *testing.T) {
	cases := map[string]uint32{
		"127.0.0.1":       2130706433,
		"1.1.1.1":         16843009,
		"1.0.0.1":         16777217,
		"0.0.0.0":         0,
		"255.255.255.255": 4294967295,
		"2.134.213.2":     42390786,
		"135.58.24.17":    2268731409,
	}
	for s, want := range cases {
		got, err := ParseV4(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
		assert.Equal(t, s, FormatV4(want))
	}
}

func TestV4_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 2000; i++ {
		v := r.Uint32()
		got, err := ParseV4(FormatV4(v))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestParseV4_Invalid(t *testing.T) {
	for _, s := range []string{"", "1.2.3", "256.1.1.1", "a.b.c.d", "::1"} {
		_, err := ParseV4(s)
		assert.ErrorIs(t, err, ErrInvalidV4, s)
	}
}

func TestV6_KnownValues(t *testing.T) {
	cases := map[string][16]byte{
		"2001:db8::1":                  {0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1},
		"1111:2222:3333::1000:ffee:1":  {0x11, 0x11, 0x22, 0x22, 0x33, 0x33, 0, 0, 0, 0, 0x10, 0, 0xff, 0xee, 0, 0x01},
		"1:2:3::1023:0:22":             {0, 0x01, 0, 0x02, 0, 0x03, 0, 0, 0, 0, 0x10, 0x23, 0, 0, 0, 0x22},
		"ffee:0:0:1::1":                {0xff, 0xee, 0, 0, 0, 0, 0, 0x01, 0, 0, 0, 0, 0, 0, 0, 0x01},
		"1a2b::2":                      {0x1a, 0x2b, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x02},
		"fe00:0:0:1::92":               {0xfe, 0, 0, 0, 0, 0, 0, 0x01, 0, 0, 0, 0, 0, 0, 0, 0x92},
		"2001:db8:85a3::8a2e:370:7334": {0x20, 0x01, 0x0d, 0xb8, 0x85, 0xa3, 0, 0, 0, 0, 0x8a, 0x2e, 0x03, 0x70, 0x73, 0x34},
		"1010:1101::1010":              {0x10, 0x10, 0x11, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x10, 0x10},
	}
	for s, want := range cases {
		got, err := ParseV6(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
		assert.Equal(t, s, FormatV6(want))
	}
}

func TestFormatV6_Compression(t *testing.T) {
	cases := []struct {
		name string
		in   [16]byte
		want string
	}{
		{"all zero", [16]byte{}, "::"},
		{"loopback", [16]byte{15: 1}, "::1"},
		{"trailing run", [16]byte{0, 1}, "1::"},
		{"tie goes to earliest", [16]byte{0, 1, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 3, 0, 4}, "1::2:0:0:3:4"},
		{"single zero group stays", [16]byte{0, 1, 0, 0, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0, 7}, "1:0:2:3:4:5:6:7"},
		{"no zeros", [16]byte{0, 1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0, 7, 0, 8}, "1:2:3:4:5:6:7:8"},
		{"longer later run wins", [16]byte{0, 1, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 3}, "1:0:0:2::3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatV6(tc.in))
		})
	}
}

func TestFormatV6_NoDoubleColonWithoutZeroPair(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		var b [16]byte
		r.Read(b[:])
		// Force every odd group non-zero so no two consecutive zero groups exist.
		for g := 1; g < 8; g += 2 {
			b[2*g] |= 0x01
		}
		assert.NotContains(t, FormatV6(b), "::")
	}
}

func TestV6_RoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for i := 0; i < 2000; i++ {
		var b [16]byte
		r.Read(b[:])
		if i%3 == 0 {
			// Zero a random span to exercise compression.
			start := r.Intn(8)
			end := start + r.Intn(8-start) + 1
			for g := start; g < end; g++ {
				b[2*g], b[2*g+1] = 0, 0
			}
		}
		got, err := ParseV6(FormatV6(b))
		require.NoError(t, err)
		require.Equal(t, b, got)
	}
}

func TestParseV6_Invalid(t *testing.T) {
	for _, s := range []string{"", "1.1.1.1", "1:2:3", "fe80::1%eth0", "gggg::1", "1::2::3"} {
		_, err := ParseV6(s)
		assert.ErrorIs(t, err, ErrInvalidV6, s)
	}
}
