// File: internal/report/write.go (complete file)

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func WriteText(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}

func RenderBanner() string {
	var b strings.Builder
	b.WriteString("========================\n")
	b.WriteString("       connscope\n")
	b.WriteString("========================\n")
	return b.String()
}

func RenderConnection(c Connection) string {
	var b strings.Builder

	if c.ServerAddr != "" {
		b.WriteString("Address: " + c.ServerAddr + "\n")
	}
	if len(c.Addresses) > 0 {
		b.WriteString("Discovered: " + strings.Join(c.Addresses, ", ") + "\n")
	}
	if network := formatNetwork(c); network != "" {
		b.WriteString("Network: " + network + "\n")
	}
	if loc := formatLocation(c); loc != "" {
		b.WriteString("Location: " + loc + "\n")
	}
	if c.Datacenter != "" {
		b.WriteString("Datacenter: " + c.Datacenter + "\n")
	}
	b.WriteString("Protocol: " + c.Protocol + "\n")
	if c.BotScore != 0 {
		b.WriteString(fmt.Sprintf("Bot score: %d\n", c.BotScore))
	}
	b.WriteString("Share: " + c.ShareToken + "\n")

	return b.String()
}

func RenderEntries(es []Entry) string {
	if len(es) == 0 {
		return "No history yet.\n"
	}
	var b strings.Builder
	for _, e := range es {
		star := " "
		if e.Favorite {
			star = "*"
		}
		b.WriteString(fmt.Sprintf("%s %3d  %s\n", star, e.ID, e.Name))
	}
	return b.String()
}

func RenderEntry(e Entry) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Entry #%d%s\n", e.ID, favoriteSuffix(e.Favorite)))
	b.WriteString("Saved (UTC): " + e.TimeUTC.Format("2006-01-02T15:04:05Z") + "\n")
	b.WriteString(RenderConnection(e.Connection))
	return b.String()
}

func favoriteSuffix(f bool) string {
	if f {
		return " (favorite)"
	}
	return ""
}

func formatNetwork(c Connection) string {
	switch {
	case c.ASOrg != "" && c.ASN != 0:
		return fmt.Sprintf("%s (AS%d)", c.ASOrg, c.ASN)
	case c.ASOrg != "":
		return c.ASOrg
	case c.ASN != 0:
		return fmt.Sprintf("AS%d", c.ASN)
	}
	return ""
}

func formatLocation(c Connection) string {
	parts := []string{}
	if cc := strings.TrimSpace(c.Country); cc != "" {
		parts = append(parts, cc)
	}
	if city := strings.TrimSpace(c.CityRegion); city != "" {
		parts = append(parts, city)
	}
	loc := strings.Join(parts, ", ")
	if c.Timezone != "" {
		if loc != "" {
			loc += " "
		}
		loc += "[" + c.Timezone + "]"
	}
	return loc
}
