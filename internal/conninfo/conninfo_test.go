// File: internal/conninfo/conninfo_test.go (complete file)

package conninfo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baptistax/connscope/internal/ipcodec"
)

func sample() Snapshot {
	v6, _ := ipcodec.ParseV6("2001:db8::1")
	return Snapshot{
		ASNumber:       13335,
		ASOrgName:      "Cloudflare, Inc.",
		Country:        "US",
		CityRegion:     "Newark, NJ",
		Timezone:       "America/New_York",
		DatacenterCode: "EWR",
		Lat:            40.7357,
		Lng:            -74.1724,
		HTTP:           HTTP2,
		TLS:            TLS13,
		BotScore:       99,
		ServerAddr:     ipcodec.V6(v6),
	}
}

func TestDiff_IgnoresInternalFields(t *testing.T) {
	a := sample()
	b := sample()
	b.ReceivedAt = time.Now()
	b.Source = "check"

	assert.Empty(t, Diff(a, b))
	assert.True(t, Identical(a, b))
}

func TestDiff_ReportsChangedFields(t *testing.T) {
	a := sample()
	b := sample()
	b.DatacenterCode = "LHR"
	b.BotScore = 1

	assert.Equal(t, []string{"DatacenterCode", "BotScore"}, Diff(a, b))
}

func TestDiff_ServerAddrComparesKindThenValue(t *testing.T) {
	a := sample()
	b := sample()
	b.ServerAddr = ipcodec.V4(16843009)
	assert.Equal(t, []string{"ServerAddr"}, Diff(a, b))

	a.ServerAddr = ipcodec.V4(16843009)
	assert.Empty(t, Diff(a, b))

	b.ServerAddr = ipcodec.Addr{}
	assert.Equal(t, []string{"ServerAddr"}, Diff(a, b))
}

func TestInternalFields_AreSnapshotFields(t *testing.T) {
	for _, name := range InternalFields {
		_, ok := snapshotType.FieldByName(name)
		assert.True(t, ok, name)
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "H2/T1.3", Label(HTTP2, TLS13))
	assert.Equal(t, "H1.1/T1.2", Label(HTTP11, TLS12))
	assert.Equal(t, "H?/T?", Label(HTTPUnspecified, TLSUnspecified))
	assert.Equal(t, HTTP2, ParseHTTPVersion("HTTP/2.0"))
	assert.Equal(t, TLS13, ParseTLSVersion("TLSv1.3"))
	assert.Equal(t, TLSUnspecified, ParseTLSVersion("SSLv3"))
}

func TestMessage_WireRoundTrip(t *testing.T) {
	s := sample()
	h := HeaderInfo{DoNotTrack: true, GlobalPrivacyControl: true, Languages: "en-US,en;q=0.9"}

	got, err := DecodeMessage(EncodeMessage(Message{Info: &s, Headers: &h}))
	require.NoError(t, err)
	require.NotNil(t, got.Info)
	require.NotNil(t, got.Headers)
	assert.Equal(t, s, *got.Info)
	assert.Equal(t, h, *got.Headers)
}

func TestMessage_AbsentInfoIsSoftFailure(t *testing.T) {
	got, err := DecodeMessage(EncodeMessage(Message{}))
	require.NoError(t, err)
	assert.Nil(t, got.Info)
	assert.Nil(t, got.Headers)

	empty := Snapshot{}
	got, err = DecodeMessage(EncodeMessage(Message{Info: &empty}))
	require.NoError(t, err)
	assert.NotNil(t, got.Info, "an all-default record is still present")
}

func TestDecode_Malformed(t *testing.T) {
	_, err := DecodeMessage([]byte{0x0a, 0x05, 0x01})
	assert.ErrorIs(t, err, ErrMalformed)

	// Field 13 (server ipv6) with a 3 byte value.
	_, err = DecodeSnapshot([]byte{0x6a, 0x03, 1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_SkipsUnknownFields(t *testing.T) {
	b := EncodeSnapshot(sample())
	b = append(b, 0xf8, 0x01, 0x07) // field 31, varint 7
	got, err := DecodeSnapshot(b)
	require.NoError(t, err)
	assert.Equal(t, sample(), got)
}

func TestStored_WireRoundTrip(t *testing.T) {
	v6, _ := ipcodec.ParseV6("1010:1101::1010")
	in := Stored{
		Repr: Repr{
			Info:      sample(),
			Addresses: ipcodec.Set{V4: []uint32{16843009, 2130706433}, V6: [][16]byte{v6}},
		},
		DateMillis: 1700000000123,
		ID:         42,
	}

	got, err := DecodeStored(EncodeStored(in))
	require.NoError(t, err)
	assert.Equal(t, in, got)
	assert.Equal(t, int64(1700000000123), got.Time().UnixMilli())
}

func TestRequestInfo_WireRoundTrip(t *testing.T) {
	in := RequestInfo{
		Browser:       "Firefox 128",
		Headers:       HeaderInfo{HTTPSUpgrade: true, Languages: "de"},
		ServiceWorker: true,
	}
	got, err := DecodeRequestInfo(EncodeRequestInfo(in))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestIDsAndBlobs(t *testing.T) {
	ids, err := DecodeIDs(EncodeIDs([]uint64{0, 3, 300}))
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 3, 300}, ids)

	ids, err = DecodeIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	blobs, err := DecodeBlobs(EncodeBlobs([][]byte{{1}, {}, {0xff, 0xfe}}))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{{1}, {}, {0xff, 0xfe}}, blobs)
}

func TestSameIdentity(t *testing.T) {
	a := Repr{Info: sample(), Addresses: ipcodec.Set{V4: []uint32{1}}}
	b := Repr{Info: sample(), Addresses: ipcodec.Set{V4: []uint32{2}}}

	assert.True(t, SameIdentity(a, b, false), "address values ignored")
	assert.False(t, SameIdentity(a, b, true))

	b.Addresses.V4 = append(b.Addresses.V4, 3)
	assert.False(t, SameIdentity(a, b, false), "address counts always compared")
}

func TestBytesEncoding(t *testing.T) {
	assert.Equal(t, "AA==", EncodeBytes([]byte{0x00}))
	assert.Equal(t, "_w==", EncodeBytes([]byte{0xff}))
	assert.Equal(t, "ABAgQID_", EncodeBytes([]byte{0, 16, 32, 64, 128, 255}))
	assert.Equal(t, "aGk=", EncodeBytes([]byte("hi")))

	for _, s := range []string{"aGk=", "aGk"} {
		b, err := DecodeBytes(s)
		require.NoError(t, err)
		assert.Equal(t, []byte("hi"), b)
	}
}

func TestShareToken_RoundTrip(t *testing.T) {
	r := Repr{Info: sample(), Addresses: ipcodec.Set{V4: []uint32{16843009}}}
	tok := ShareToken(r)

	for _, in := range []string{tok, "conn=" + tok, "https://example.test/" + ShareFragment(r)} {
		got, err := ParseShareToken(in)
		require.NoError(t, err, in)
		assert.Equal(t, r, got)
	}

	_, err := ParseShareToken("!!notbase64")
	assert.ErrorIs(t, err, ErrMalformed)
}
