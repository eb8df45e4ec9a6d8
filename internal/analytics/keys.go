package analytics

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kjannette/trahn-analytics/internal/models"
)

// cacheKey joins an operation name and its normalized parameters. Callers
// pass parameters already normalized so equal requests give equal keys.
func cacheKey(op string, parts ...string) string {
	var b strings.Builder
	b.WriteString(op)
	for _, p := range parts {
		b.WriteByte('|')
		b.WriteString(p)
	}
	return b.String()
}

// symbolsKey is order-insensitive.
func symbolsKey(symbols []string) string {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func timeKey(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func intKey(n int) string { return strconv.Itoa(n) }

func assetKey(a models.AssetType) string {
	if a == "" {
		return "*"
	}
	return string(a)
}

// cleanSymbols trims entries, drops blanks and duplicates, keeping order.
func cleanSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
