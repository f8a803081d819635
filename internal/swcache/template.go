// File: internal/swcache/template.go (complete file)

package swcache

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/baptistax/connscope/internal/conninfo"
)

// RequestInfo describes r the way the root document embeds it.
func RequestInfo(r *http.Request, browser func(string) string) conninfo.RequestInfo {
	info := conninfo.RequestInfo{
		Headers:       conninfo.HeadersFromRequest(r.Header),
		ServiceWorker: true,
	}
	if ua := r.Header.Get("User-Agent"); ua != "" && browser != nil {
		info.Browser = browser(ua)
	}
	return info
}

// render fills the root document's placeholders: the request info token
// and the icon and picture slots, which depend on what is cached.
func (c *Controller) render(r *http.Request, a Asset) Asset {
	a = a.clone()
	doc := string(a.Body)

	token := conninfo.EncodeBytes(conninfo.EncodeRequestInfo(RequestInfo(r, c.opt.Browser)))
	doc = strings.Replace(doc, "$REQINFO", token, 1)

	icon := `id="icon"`
	if c.has(faviconURL) {
		icon = `rel="icon" href="` + faviconURL + `"`
	}
	doc = strings.Replace(doc, "$ICON", icon, 1)

	pfp := `id="pfp"`
	if c.has(pfpURL) {
		pfp = `src="` + pfpURL + `"`
	}
	doc = strings.Replace(doc, "$PFP", pfp, 1)

	a.Body = []byte(doc)
	if a.Header.Get("Content-Length") != "" {
		a.Header.Set("Content-Length", strconv.Itoa(len(a.Body)))
	}
	return a
}

func (c *Controller) has(key string) bool {
	_, ok, err := c.opt.Assets.Get(key)
	return err == nil && ok
}
