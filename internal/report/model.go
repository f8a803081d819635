// File: internal/report/model.go (complete file)

package report

import (
	"fmt"
	"time"

	"github.com/baptistax/connscope/internal/conninfo"
	"github.com/baptistax/connscope/internal/history"
	"github.com/baptistax/connscope/internal/ipcodec"
)

// DateLayout is how entry names render their capture time.
const DateLayout = "2006-01-02 15:04:05"

type Connection struct {
	ServerAddr  string   `json:"server_addr,omitempty"`
	Addresses   []string `json:"addresses,omitempty"`
	ASN         uint32   `json:"asn,omitempty"`
	ASOrg       string   `json:"as_org,omitempty"`
	Country     string   `json:"country,omitempty"`
	CityRegion  string   `json:"city_region,omitempty"`
	Timezone    string   `json:"timezone,omitempty"`
	Datacenter  string   `json:"datacenter,omitempty"`
	Lat         float64  `json:"lat,omitempty"`
	Lng         float64  `json:"lng,omitempty"`
	Protocol    string   `json:"protocol"`
	BotScore    uint32   `json:"bot_score,omitempty"`
	ShareToken  string   `json:"share_token"`
	ReceivedUTC string   `json:"received_utc,omitempty"`
}

type Entry struct {
	ID         uint64     `json:"id"`
	TimeUTC    time.Time  `json:"time_utc"`
	Favorite   bool       `json:"favorite"`
	Name       string     `json:"name"`
	Connection Connection `json:"connection"`
}

func NewConnection(r conninfo.Repr) Connection {
	s := r.Info
	c := Connection{
		Addresses:  r.Addresses.Strings(),
		ASN:        s.ASNumber,
		ASOrg:      s.ASOrgName,
		Country:    s.Country,
		CityRegion: s.CityRegion,
		Timezone:   s.Timezone,
		Datacenter: s.DatacenterCode,
		Lat:        s.Lat,
		Lng:        s.Lng,
		Protocol:   conninfo.Label(s.HTTP, s.TLS),
		BotScore:   s.BotScore,
		ShareToken: conninfo.ShareToken(r),
	}
	if s.ServerAddr.IsValid() {
		c.ServerAddr = s.ServerAddr.String()
	}
	if !s.ReceivedAt.IsZero() {
		c.ReceivedUTC = s.ReceivedAt.UTC().Format(time.RFC3339)
	}
	return c
}

func NewEntry(e history.Entry) Entry {
	return Entry{
		ID:         e.ID,
		TimeUTC:    e.Time(),
		Favorite:   e.Favorite,
		Name:       Name(e.Stored),
		Connection: NewConnection(e.Repr),
	}
}

func NewEntries(es []history.Entry) []Entry {
	out := make([]Entry, 0, len(es))
	for _, e := range es {
		out = append(out, NewEntry(e))
	}
	return out
}

// Name is the one-line label of a history entry:
// "<date>: <address> @ <network>". The address is the server-observed one,
// else the first discovered v4, else the first v6, else the datacenter.
func Name(s conninfo.Stored) string {
	name := s.Time().Format(DateLayout) + ": "
	info := s.Repr.Info
	addrs := s.Repr.Addresses

	switch {
	case info.ServerAddr.IsValid():
		name += info.ServerAddr.String() + " @ "
	case len(addrs.V4) > 0:
		name += ipcodec.FormatV4(addrs.V4[0]) + " @ "
	case len(addrs.V6) > 0:
		name += ipcodec.FormatV6(addrs.V6[0]) + " @ "
	case info.DatacenterCode != "":
		name += "CF-" + info.DatacenterCode + " @ "
	}

	switch {
	case info.ASOrgName != "":
		name += info.ASOrgName
	case info.ASNumber != 0:
		name += fmt.Sprintf("ASN %d", info.ASNumber)
	}
	return name
}
