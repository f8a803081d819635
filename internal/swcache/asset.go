// File: internal/swcache/asset.go (complete file)

package swcache

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
)

var errBadAsset = errors.New("swcache: malformed asset record")

// Asset is one cached response.
type Asset struct {
	Status int
	Header http.Header
	Body   []byte
}

func (a Asset) clone() Asset {
	out := Asset{Status: a.Status, Header: a.Header.Clone(), Body: append([]byte(nil), a.Body...)}
	if out.Header == nil {
		out.Header = http.Header{}
	}
	return out
}

// filterHeaders keeps only the allow-listed headers, case-insensitively.
func filterHeaders(h http.Header, keep []string) http.Header {
	out := http.Header{}
	for name, vals := range h {
		for _, k := range keep {
			if strings.EqualFold(name, k) {
				out[http.CanonicalHeaderKey(name)] = append([]string(nil), vals...)
				break
			}
		}
	}
	return out
}

const (
	assetStatus protowire.Number = 1
	assetHeader protowire.Number = 2
	assetBody   protowire.Number = 3

	headerName  protowire.Number = 1
	headerValue protowire.Number = 2
)

func encodeAsset(a Asset) []byte {
	var b []byte
	b = protowire.AppendTag(b, assetStatus, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(a.Status))
	for name, vals := range a.Header {
		for _, v := range vals {
			var hb []byte
			hb = protowire.AppendTag(hb, headerName, protowire.BytesType)
			hb = protowire.AppendString(hb, name)
			hb = protowire.AppendTag(hb, headerValue, protowire.BytesType)
			hb = protowire.AppendString(hb, v)
			b = protowire.AppendTag(b, assetHeader, protowire.BytesType)
			b = protowire.AppendBytes(b, hb)
		}
	}
	b = protowire.AppendTag(b, assetBody, protowire.BytesType)
	b = protowire.AppendBytes(b, a.Body)
	return b
}

func decodeAsset(b []byte) (Asset, error) {
	a := Asset{Header: http.Header{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Asset{}, fmt.Errorf("%w: %v", errBadAsset, protowire.ParseError(n))
		}
		b = b[n:]
		switch {
		case num == assetStatus && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Asset{}, fmt.Errorf("%w: status", errBadAsset)
			}
			a.Status = int(v)
			n = m
		case num == assetHeader && typ == protowire.BytesType:
			hb, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Asset{}, fmt.Errorf("%w: header", errBadAsset)
			}
			name, value, err := decodeHeader(hb)
			if err != nil {
				return Asset{}, err
			}
			a.Header.Add(name, value)
			n = m
		case num == assetBody && typ == protowire.BytesType:
			body, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Asset{}, fmt.Errorf("%w: body", errBadAsset)
			}
			a.Body = append([]byte(nil), body...)
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Asset{}, fmt.Errorf("%w: field %d", errBadAsset, num)
			}
		}
		b = b[n:]
	}
	return a, nil
}

func decodeHeader(b []byte) (name, value string, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", fmt.Errorf("%w: header tag", errBadAsset)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
		} else {
			var s string
			s, n = protowire.ConsumeString(b)
			switch num {
			case headerName:
				name = s
			case headerValue:
				value = s
			}
		}
		if n < 0 {
			return "", "", fmt.Errorf("%w: header field %d", errBadAsset, num)
		}
		b = b[n:]
	}
	return name, value, nil
}
