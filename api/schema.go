package api

import "encoding/json"

// Document is the JSON form of a design document.
// Node coordinates follow the plugin convention (x/y); REST exports that only
// carry absoluteBoundingBox are accepted by the ingest package as well.
type Document struct {
	// Name of the document.
	Name string `json:"name,omitempty"`
	// Root document node; its children are pages.
	Document Node `json:"document"`
	// CurrentPage is the ID of the active page (defaults to the first page).
	CurrentPage string `json:"currentPage,omitempty"`
	// Selection lists selected node IDs on the current page.
	Selection []string `json:"selection,omitempty"`
}

// Node is one scene node.
type Node struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name,omitempty"`
	Characters string     `json:"characters,omitempty"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Width      float64    `json:"width,omitempty"`
	Height     float64    `json:"height,omitempty"`
	FontName   *FontName  `json:"fontName,omitempty"`
	RangeFonts []FontName `json:"rangeFonts,omitempty"`
	Mixed      bool       `json:"mixedFont,omitempty"`
	Children   []Node     `json:"children,omitempty"`
}

// FontName mirrors the host font descriptor.
type FontName struct {
	Family string `json:"family"`
	Style  string `json:"style"`
}

// Message types exchanged between the UI and the core.
const (
	TypeUpdatePrices   = "update-prices"
	TypeExportPNG      = "export-png"
	TypePing           = "ping"
	TypeClose          = "close"
	TypeStatus         = "status"
	TypeUpdateComplete = "update-complete"
	TypeExportReady    = "export-ready"
	TypeExportFailed   = "export-failed"
	TypePong           = "pong"
)

// Inbound is a message from the UI. Data carries the product→price mapping
// for update-prices; key order is significant and preserved by the decoder.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Outbound is a reply posted to the UI. Only the fields relevant to Type are set.
type Outbound struct {
	Type     string   `json:"type"`
	Text     string   `json:"text,omitempty"`
	Updates  int      `json:"updates,omitempty"`
	NotFound []string `json:"notFound,omitempty"`
	Data     string   `json:"data,omitempty"`
}

// Status builds a transient progress reply.
func Status(text string) Outbound { return Outbound{Type: TypeStatus, Text: text} }

// UpdateComplete builds the final reply of an update-prices request.
// NotFound is always encoded, as an empty array when nothing was missing.
func UpdateComplete(updates int, notFound []string) Outbound {
	if notFound == nil {
		notFound = []string{}
	}
	return Outbound{Type: TypeUpdateComplete, Updates: updates, NotFound: notFound}
}

// MarshalJSON keeps updates and notFound on update-complete even when zero or empty.
func (o Outbound) MarshalJSON() ([]byte, error) {
	type plain Outbound
	if o.Type != TypeUpdateComplete {
		return json.Marshal(plain(o))
	}
	notFound := o.NotFound
	if notFound == nil {
		notFound = []string{}
	}
	return json.Marshal(struct {
		Type     string   `json:"type"`
		Updates  int      `json:"updates"`
		NotFound []string `json:"notFound"`
	}{o.Type, o.Updates, notFound})
}

// ExportReady carries a base64 PNG.
func ExportReady(b64 string) Outbound { return Outbound{Type: TypeExportReady, Data: b64} }

// ExportFailed carries a human-readable reason.
func ExportFailed(text string) Outbound { return Outbound{Type: TypeExportFailed, Text: text} }

// Pong answers a ping.
func Pong() Outbound { return Outbound{Type: TypePong} }
