package types

import (
	"regexp"
	"strings"
)

// symbolPattern matches the tickers the backend accepts: uppercase letters
// plus dots, at most 15 characters.
var symbolPattern = regexp.MustCompile(`^[A-Z.]{1,15}$`)

// NormalizeSymbol canonicalizes a ticker symbol: trim surrounding whitespace
// and uppercase. Applied at every boundary (user input, wire payload, storage
// key); an empty result means the input carried no symbol at all.
func NormalizeSymbol(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// ValidSymbol reports whether the normalized symbol is acceptable as a
// watchlist entry.
func ValidSymbol(symbol string) bool {
	return symbolPattern.MatchString(symbol)
}
