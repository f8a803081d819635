// File: internal/conninfo/wire.go (complete file)

package conninfo

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/baptistax/connscope/internal/ipcodec"
)

// Records use the protobuf wire format, so any protobuf decoder given the
// field numbers below can read them.

var ErrMalformed = errors.New("conninfo: malformed record")

const (
	snapASN        protowire.Number = 1
	snapASNName    protowire.Number = 2
	snapCountry    protowire.Number = 3
	snapCityRegion protowire.Number = 4
	snapTimezone   protowire.Number = 5
	snapColo       protowire.Number = 6
	snapLat        protowire.Number = 7
	snapLng        protowire.Number = 8
	snapHTTP       protowire.Number = 9
	snapTLS        protowire.Number = 10
	snapBot        protowire.Number = 11
	snapAddrV4     protowire.Number = 12
	snapAddrV6     protowire.Number = 13

	hdrDNT      protowire.Number = 1
	hdrGPC      protowire.Number = 2
	hdrUpgrade  protowire.Number = 3
	hdrLanguage protowire.Number = 4

	msgInfo    protowire.Number = 1
	msgHeaders protowire.Number = 2

	reqBrowser protowire.Number = 1
	reqHeaders protowire.Number = 2
	reqSW      protowire.Number = 3

	reprInfo protowire.Number = 1
	reprV4   protowire.Number = 2
	reprV6   protowire.Number = 3

	storedRepr protowire.Number = 1
	storedDate protowire.Number = 2
	storedID   protowire.Number = 3

	listItem protowire.Number = 1
)

// skip tells walk to step over a field the visitor does not handle.
const skip = -1

// field is the visitor for one decoded field. It returns how many bytes of v it
// consumed, or skip.
type field func(num protowire.Number, typ protowire.Type, v []byte) (int, error)

func walk(b []byte, fn field) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, err)
		}
		if m == skip {
			m = protowire.ConsumeFieldValue(num, typ, b)
		}
		if m < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrMalformed, num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendMessage(b []byte, num protowire.Number, m []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m)
}

func varint(typ protowire.Type, v []byte, dst *uint64) (int, error) {
	if typ != protowire.VarintType {
		return skip, nil
	}
	x, n := protowire.ConsumeVarint(v)
	*dst = x
	return n, nil
}

func str(typ protowire.Type, v []byte, dst *string) (int, error) {
	if typ != protowire.BytesType {
		return skip, nil
	}
	x, n := protowire.ConsumeString(v)
	*dst = x
	return n, nil
}

func raw(typ protowire.Type, v []byte, dst *[]byte) (int, error) {
	if typ != protowire.BytesType {
		return skip, nil
	}
	x, n := protowire.ConsumeBytes(v)
	*dst = x
	return n, nil
}

func double(typ protowire.Type, v []byte, dst *float64) (int, error) {
	if typ != protowire.Fixed64Type {
		return skip, nil
	}
	x, n := protowire.ConsumeFixed64(v)
	*dst = math.Float64frombits(x)
	return n, nil
}

func v6(b []byte) ([16]byte, error) {
	var a [16]byte
	if len(b) != len(a) {
		return a, fmt.Errorf("ipv6 value has %d bytes", len(b))
	}
	copy(a[:], b)
	return a, nil
}

func EncodeSnapshot(s Snapshot) []byte {
	var b []byte
	b = appendVarint(b, snapASN, uint64(s.ASNumber))
	b = appendString(b, snapASNName, s.ASOrgName)
	b = appendString(b, snapCountry, s.Country)
	b = appendString(b, snapCityRegion, s.CityRegion)
	b = appendString(b, snapTimezone, s.Timezone)
	b = appendString(b, snapColo, s.DatacenterCode)
	b = appendDouble(b, snapLat, s.Lat)
	b = appendDouble(b, snapLng, s.Lng)
	b = appendVarint(b, snapHTTP, uint64(s.HTTP))
	b = appendVarint(b, snapTLS, uint64(s.TLS))
	b = appendVarint(b, snapBot, uint64(s.BotScore))

	switch s.ServerAddr.Kind() {
	case ipcodec.KindV4:
		v, _ := s.ServerAddr.V4()
		b = protowire.AppendTag(b, snapAddrV4, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, v)
	case ipcodec.KindV6:
		v, _ := s.ServerAddr.V6()
		b = protowire.AppendTag(b, snapAddrV6, protowire.BytesType)
		b = protowire.AppendBytes(b, v[:])
	case ipcodec.KindNone:
	}
	return b
}

func DecodeSnapshot(b []byte) (Snapshot, error) {
	var s Snapshot
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		var u uint64
		switch num {
		case snapASN:
			n, err := varint(typ, v, &u)
			s.ASNumber = uint32(u)
			return n, err
		case snapASNName:
			return str(typ, v, &s.ASOrgName)
		case snapCountry:
			return str(typ, v, &s.Country)
		case snapCityRegion:
			return str(typ, v, &s.CityRegion)
		case snapTimezone:
			return str(typ, v, &s.Timezone)
		case snapColo:
			return str(typ, v, &s.DatacenterCode)
		case snapLat:
			return double(typ, v, &s.Lat)
		case snapLng:
			return double(typ, v, &s.Lng)
		case snapHTTP:
			n, err := varint(typ, v, &u)
			s.HTTP = HTTPVersion(u)
			return n, err
		case snapTLS:
			n, err := varint(typ, v, &u)
			s.TLS = TLSVersion(u)
			return n, err
		case snapBot:
			n, err := varint(typ, v, &u)
			s.BotScore = uint32(u)
			return n, err
		case snapAddrV4:
			if typ != protowire.Fixed32Type {
				return skip, nil
			}
			x, n := protowire.ConsumeFixed32(v)
			s.ServerAddr = ipcodec.V4(x)
			return n, nil
		case snapAddrV6:
			var r []byte
			n, err := raw(typ, v, &r)
			if n < 0 || err != nil {
				return n, err
			}
			a, err := v6(r)
			if err != nil {
				return n, err
			}
			s.ServerAddr = ipcodec.V6(a)
			return n, nil
		default:
			return skip, nil
		}
	})
	if err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func EncodeHeaderInfo(h HeaderInfo) []byte {
	var b []byte
	b = appendBool(b, hdrDNT, h.DoNotTrack)
	b = appendBool(b, hdrGPC, h.GlobalPrivacyControl)
	b = appendBool(b, hdrUpgrade, h.HTTPSUpgrade)
	b = appendString(b, hdrLanguage, h.Languages)
	return b
}

func DecodeHeaderInfo(b []byte) (HeaderInfo, error) {
	var h HeaderInfo
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		var u uint64
		switch num {
		case hdrDNT:
			n, err := varint(typ, v, &u)
			h.DoNotTrack = protowire.DecodeBool(u)
			return n, err
		case hdrGPC:
			n, err := varint(typ, v, &u)
			h.GlobalPrivacyControl = protowire.DecodeBool(u)
			return n, err
		case hdrUpgrade:
			n, err := varint(typ, v, &u)
			h.HTTPSUpgrade = protowire.DecodeBool(u)
			return n, err
		case hdrLanguage:
			return str(typ, v, &h.Languages)
		default:
			return skip, nil
		}
	})
	if err != nil {
		return HeaderInfo{}, err
	}
	return h, nil
}

func EncodeMessage(m Message) []byte {
	var b []byte
	if m.Info != nil {
		b = appendMessage(b, msgInfo, EncodeSnapshot(*m.Info))
	}
	if m.Headers != nil {
		b = appendMessage(b, msgHeaders, EncodeHeaderInfo(*m.Headers))
	}
	return b
}

func DecodeMessage(b []byte) (Message, error) {
	var m Message
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		var r []byte
		switch num {
		case msgInfo:
			n, err := raw(typ, v, &r)
			if n < 0 || err != nil || typ != protowire.BytesType {
				return n, err
			}
			s, err := DecodeSnapshot(r)
			if err != nil {
				return n, err
			}
			m.Info = &s
			return n, nil
		case msgHeaders:
			n, err := raw(typ, v, &r)
			if n < 0 || err != nil || typ != protowire.BytesType {
				return n, err
			}
			h, err := DecodeHeaderInfo(r)
			if err != nil {
				return n, err
			}
			m.Headers = &h
			return n, nil
		default:
			return skip, nil
		}
	})
	if err != nil {
		return Message{}, err
	}
	return m, nil
}

func EncodeRequestInfo(r RequestInfo) []byte {
	var b []byte
	b = appendString(b, reqBrowser, r.Browser)
	b = appendMessage(b, reqHeaders, EncodeHeaderInfo(r.Headers))
	b = appendBool(b, reqSW, r.ServiceWorker)
	return b
}

func DecodeRequestInfo(b []byte) (RequestInfo, error) {
	var r RequestInfo
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		var u uint64
		switch num {
		case reqBrowser:
			return str(typ, v, &r.Browser)
		case reqHeaders:
			var hb []byte
			n, err := raw(typ, v, &hb)
			if n < 0 || err != nil || typ != protowire.BytesType {
				return n, err
			}
			h, err := DecodeHeaderInfo(hb)
			r.Headers = h
			return n, err
		case reqSW:
			n, err := varint(typ, v, &u)
			r.ServiceWorker = protowire.DecodeBool(u)
			return n, err
		default:
			return skip, nil
		}
	})
	if err != nil {
		return RequestInfo{}, err
	}
	return r, nil
}

func EncodeRepr(r Repr) []byte {
	var b []byte
	b = appendMessage(b, reprInfo, EncodeSnapshot(r.Info))
	if len(r.Addresses.V4) > 0 {
		var packed []byte
		for _, v := range r.Addresses.V4 {
			packed = protowire.AppendFixed32(packed, v)
		}
		b = appendMessage(b, reprV4, packed)
	}
	for _, v := range r.Addresses.V6 {
		b = protowire.AppendTag(b, reprV6, protowire.BytesType)
		b = protowire.AppendBytes(b, v[:])
	}
	return b
}

func DecodeRepr(b []byte) (Repr, error) {
	var r Repr
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		var rb []byte
		switch num {
		case reprInfo:
			n, err := raw(typ, v, &rb)
			if n < 0 || err != nil || typ != protowire.BytesType {
				return n, err
			}
			s, err := DecodeSnapshot(rb)
			r.Info = s
			return n, err
		case reprV4:
			switch typ {
			case protowire.Fixed32Type:
				x, n := protowire.ConsumeFixed32(v)
				r.Addresses.V4 = append(r.Addresses.V4, x)
				return n, nil
			case protowire.BytesType:
				n, _ := raw(typ, v, &rb)
				if n < 0 {
					return n, nil
				}
				if len(rb)%4 != 0 {
					return n, fmt.Errorf("packed ipv4 list has %d bytes", len(rb))
				}
				for len(rb) > 0 {
					x, m := protowire.ConsumeFixed32(rb)
					r.Addresses.V4 = append(r.Addresses.V4, x)
					rb = rb[m:]
				}
				return n, nil
			default:
				return skip, nil
			}
		case reprV6:
			n, err := raw(typ, v, &rb)
			if n < 0 || err != nil || typ != protowire.BytesType {
				return n, err
			}
			a, err := v6(rb)
			if err != nil {
				return n, err
			}
			r.Addresses.V6 = append(r.Addresses.V6, a)
			return n, nil
		default:
			return skip, nil
		}
	})
	if err != nil {
		return Repr{}, err
	}
	return r, nil
}

func EncodeStored(s Stored) []byte {
	var b []byte
	b = appendMessage(b, storedRepr, EncodeRepr(s.Repr))
	b = appendVarint(b, storedDate, uint64(s.DateMillis))
	b = appendVarint(b, storedID, s.ID)
	return b
}

func DecodeStored(b []byte) (Stored, error) {
	var s Stored
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		var u uint64
		switch num {
		case storedRepr:
			var rb []byte
			n, err := raw(typ, v, &rb)
			if n < 0 || err != nil || typ != protowire.BytesType {
				return n, err
			}
			r, err := DecodeRepr(rb)
			s.Repr = r
			return n, err
		case storedDate:
			n, err := varint(typ, v, &u)
			s.DateMillis = int64(u)
			return n, err
		case storedID:
			return varint(typ, v, &s.ID)
		default:
			return skip, nil
		}
	})
	if err != nil {
		return Stored{}, err
	}
	return s, nil
}

// EncodeIDs packs an id list as repeated varints.
func EncodeIDs(ids []uint64) []byte {
	if len(ids) == 0 {
		return nil
	}
	var packed []byte
	for _, id := range ids {
		packed = protowire.AppendVarint(packed, id)
	}
	return appendMessage(nil, listItem, packed)
}

func DecodeIDs(b []byte) ([]uint64, error) {
	var ids []uint64
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != listItem {
			return skip, nil
		}
		switch typ {
		case protowire.VarintType:
			x, n := protowire.ConsumeVarint(v)
			ids = append(ids, x)
			return n, nil
		case protowire.BytesType:
			var pb []byte
			n, _ := raw(typ, v, &pb)
			for len(pb) > 0 {
				x, m := protowire.ConsumeVarint(pb)
				if m < 0 {
					return m, nil
				}
				ids = append(ids, x)
				pb = pb[m:]
			}
			return n, nil
		default:
			return skip, nil
		}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// EncodeBlobs frames a list of opaque records. Items are kept as-is so one
// undecodable record never hides its neighbours.
func EncodeBlobs(items [][]byte) []byte {
	var b []byte
	for _, it := range items {
		b = appendMessage(b, listItem, it)
	}
	return b
}

func DecodeBlobs(b []byte) ([][]byte, error) {
	var items [][]byte
	err := walk(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		if num != listItem {
			return skip, nil
		}
		var it []byte
		n, err := raw(typ, v, &it)
		if n >= 0 && err == nil && typ == protowire.BytesType {
			cp := make([]byte, len(it))
			copy(cp, it)
			items = append(items, cp)
		}
		return n, err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}
