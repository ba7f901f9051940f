package mchost

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"gitlab.bluewillows.net/root/mchostdns/pkg/provider"
)

// PageParser extracts identifiers from control panel pages.
// Markup changes on the panel side are absorbed by swapping the parser.
type PageParser interface {
	// ParseDomains reads the account landing page and returns the
	// domain -> order id registry.
	ParseDomains(body []byte) (Registry, error)

	// ParseZoneID reads an order administration page and returns the
	// DNS zone id it links to.
	ParseZoneID(body []byte) (int, error)
}

// HTMLParser understands the current panel markup:
// orders are <a class="sidelink" href=".../dnsOrder/.../<id>" title="<domain>">
// and zones are linked as /dnsZone/index/<id>.
type HTMLParser struct{}

// Ensure HTMLParser implements PageParser.
var _ PageParser = HTMLParser{}

var zoneIDPattern = regexp.MustCompile(`/dnsZone/index/(\d+)`)

const (
	sidelinkClass = "sidelink"
	orderMarker   = "dnsOrder"
)

// ParseDomains implements PageParser. Later anchors for the same domain win.
func (HTMLParser) ParseDomains(body []byte) (Registry, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing orders page: %w", provider.ErrDiscovery, err)
	}

	result := make(Registry)
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if domain, orderID, ok := orderFromAnchor(n); ok {
				result[domain] = orderID
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return result, nil
}

// orderFromAnchor extracts (domain, order id) from a sidelink anchor.
func orderFromAnchor(n *html.Node) (string, string, bool) {
	var href, title string
	var sidelink bool
	for _, attr := range n.Attr {
		switch attr.Key {
		case "href":
			href = attr.Val
		case "title":
			title = attr.Val
		case "class":
			for _, class := range strings.Fields(attr.Val) {
				if class == sidelinkClass {
					sidelink = true
				}
			}
		}
	}

	if !sidelink || href == "" || title == "" || !strings.Contains(href, orderMarker) {
		return "", "", false
	}

	segments := strings.Split(href, "/")
	orderID := segments[len(segments)-1]
	if orderID == "" {
		return "", "", false
	}

	return provider.NormalizeName(title), orderID, true
}

// ParseZoneID implements PageParser. The first zone link on the page wins.
func (HTMLParser) ParseZoneID(body []byte) (int, error) {
	match := zoneIDPattern.FindSubmatch(body)
	if match == nil {
		return 0, fmt.Errorf("%w: no zone link on order page", provider.ErrDiscovery)
	}
	if len(match[1]) == 0 {
		return 0, fmt.Errorf("%w: empty zone id", provider.ErrDiscovery)
	}

	id, err := strconv.Atoi(string(match[1]))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid zone id %q: %w", provider.ErrDiscovery, match[1], err)
	}

	return id, nil
}
