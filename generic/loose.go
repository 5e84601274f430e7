package generic

import (
	"strings"

	"github.com/shopspring/decimal"
)

// JoinKey normalizes an imported identifier so that loosely-equal values
// collide: surrounding whitespace is ignored and numeric identifiers compare
// by value ("42", " 42 ", "42.0" share a key). Non-numeric identifiers are
// compared verbatim after trimming.
func JoinKey(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d.String()
	}
	return s
}

// LooseEqual reports whether two identifiers refer to the same record.
func LooseEqual(a, b string) bool {
	ka, kb := JoinKey(a), JoinKey(b)
	return ka != "" && ka == kb
}
