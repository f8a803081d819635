// File: internal/conninfo/snapshot.go (complete file)

package conninfo

import (
	"net/http"
	"reflect"
	"time"

	"github.com/baptistax/connscope/internal/ipcodec"
)

// Snapshot is one capture of connection metadata as reported by the metadata
// source. Values are treated as immutable once received.
type Snapshot struct {
	ASNumber       uint32
	ASOrgName      string
	Country        string
	CityRegion     string
	Timezone       string
	DatacenterCode string
	Lat            float64
	Lng            float64
	HTTP           HTTPVersion
	TLS            TLSVersion
	BotScore       uint32
	ServerAddr     ipcodec.Addr

	// Local bookkeeping, never encoded and never compared.
	ReceivedAt time.Time
	Source     string
}

// InternalFields names the Snapshot fields excluded from every structural
// comparison. Fields not listed here are compared.
var InternalFields = []string{"ReceivedAt", "Source"}

func isInternal(name string) bool {
	for _, f := range InternalFields {
		if f == name {
			return true
		}
	}
	return false
}

var (
	snapshotType = reflect.TypeOf(Snapshot{})
	addrType     = reflect.TypeOf(ipcodec.Addr{})
)

// Diff returns the names of the non-internal fields whose values differ, in
// declaration order. The server-observed address compares kind, then value.
func Diff(a, b Snapshot) []string {
	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)

	var out []string
	for i := 0; i < snapshotType.NumField(); i++ {
		f := snapshotType.Field(i)
		if isInternal(f.Name) {
			continue
		}
		fa, fb := va.Field(i), vb.Field(i)
		if f.Type == addrType {
			if !fa.Interface().(ipcodec.Addr).Equal(fb.Interface().(ipcodec.Addr)) {
				out = append(out, f.Name)
			}
			continue
		}
		if !fa.Equal(fb) {
			out = append(out, f.Name)
		}
	}
	return out
}

func Identical(a, b Snapshot) bool {
	return len(Diff(a, b)) == 0
}

// HeaderInfo carries the privacy-relevant request headers the metadata source
// echoed back.
type HeaderInfo struct {
	DoNotTrack           bool
	GlobalPrivacyControl bool
	HTTPSUpgrade         bool
	Languages            string
}

// Message is the metadata source response. A nil Info is a soft failure: the
// source answered but declined to describe the connection.
type Message struct {
	Info    *Snapshot
	Headers *HeaderInfo
}

// RequestInfo is embedded into the root document so a page can show request
// details without a round trip.
type RequestInfo struct {
	Browser       string
	Headers       HeaderInfo
	ServiceWorker bool
}

// Repr is a snapshot together with the addresses discovered alongside it.
type Repr struct {
	Info      Snapshot
	Addresses ipcodec.Set
}

// Stored is one persisted history record.
type Stored struct {
	Repr       Repr
	DateMillis int64
	ID         uint64
}

func (s Stored) Time() time.Time {
	return time.UnixMilli(s.DateMillis).UTC()
}

// SameIdentity compares metadata fields and address counts; when
// withAddresses is set the address values are compared position by position.
func SameIdentity(a, b Repr, withAddresses bool) bool {
	if len(a.Addresses.V4) != len(b.Addresses.V4) || len(a.Addresses.V6) != len(b.Addresses.V6) {
		return false
	}
	if !Identical(a.Info, b.Info) {
		return false
	}
	if withAddresses {
		return a.Addresses.Equal(b.Addresses)
	}
	return true
}

// HeadersFromRequest reads the header flags the same way the origin does:
// a flag is set only when its header is exactly "1".
func HeadersFromRequest(h http.Header) HeaderInfo {
	return HeaderInfo{
		DoNotTrack:           h.Get("DNT") == "1",
		GlobalPrivacyControl: h.Get("Sec-GPC") == "1",
		HTTPSUpgrade:         h.Get("Upgrade-Insecure-Requests") == "1",
		Languages:            h.Get("Accept-Language"),
	}
}
