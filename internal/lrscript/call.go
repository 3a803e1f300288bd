package lrscript

import "strings"

// MethodCall is one recorded call site. Parameters keep their quotes and
// escapes; Line is 0 when the call was not read from source.
type MethodCall struct {
	Name       string
	Parameters []string
	Line       int
}

type Item struct {
	Attributes []string
}

// Attribute returns the value of the first "name=value" attribute. Names
// compare case-insensitively; recordings write both URL= and Url=.
func (it Item) Attribute(name string) (string, bool) {
	n := len(name) + 1
	for _, attr := range it.Attributes {
		if len(attr) >= n && attr[n-1] == '=' && strings.EqualFold(attr[:n-1], name) {
			return attr[n:], true
		}
	}
	return "", false
}

type ItemOptions struct {
	// KeepUnterminated keeps a trailing item that has no ENDITEM.
	KeepUnterminated bool
}

// SplitItems groups attributes into items closed by ENDITEM.
func SplitItems(attrs []string, opts ItemOptions) []Item {
	var (
		items []Item
		cur   []string
	)
	for _, attr := range attrs {
		if attr == MarkerEndItem {
			items = append(items, Item{Attributes: cur})
			cur = nil
			continue
		}
		cur = append(cur, Unescape(Unquote(attr)))
	}
	if opts.KeepUnterminated && len(cur) > 0 {
		items = append(items, Item{Attributes: cur})
	}
	return items
}
