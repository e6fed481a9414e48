// Package symbol canonicalizes free-text instrument identifiers into
// exchange-qualified codes: 6-digit A-share codes with .SH/.SZ suffixes,
// 5-digit .HK codes, 1-5 letter .US tickers, and crypto trading pairs.
package symbol

import (
	"regexp"
	"strings"
)

var (
	canonicalPattern = regexp.MustCompile(`^(\d{6}\.(SZ|SH)|\d{5}\.HK|[A-Za-z]{1,5}\.US)$`)

	bareAShare   = regexp.MustCompile(`^\d{6}$`)
	shSzPrefixed = regexp.MustCompile(`^(sh|sz)(\d{6})$`)
	shSzDotted   = regexp.MustCompile(`^(sh|sz)\.(\d{6})$`)
	aliasSuffix  = regexp.MustCompile(`^\d{6}\.[A-Za-z]{2,3}$`)
	hkPrefixed   = regexp.MustCompile(`^hk(\d{1,5})$`)
	hkSuffixed   = regexp.MustCompile(`^(\d{1,5})\.hk$`)
	usPrefixed   = regexp.MustCompile(`^us\.([a-zA-Z]{1,5})$`)
	bareTicker   = regexp.MustCompile(`^[A-Za-z]{1,5}$`)
)

// indexAliases maps chat shorthand to canonical index codes.
var indexAliases = map[string]string{
	"sh":    "000001.SH",
	"sz":    "399001.SZ",
	"cyb":   "399006.SZ",
	"zxb":   "399005.SZ",
	"hs300": "000300.SH",
	"zz500": "000905.SH",
}

// IsCanonical reports whether code already has one of the accepted
// exchange-qualified forms.
func IsCanonical(code string) bool {
	return canonicalPattern.MatchString(code)
}

// NormalizeEquity attempts to rewrite a free-text equity code into canonical
// form. Rules are tried in order and the first match wins; when nothing
// matches the input is returned unchanged so the caller can reject it.
func NormalizeEquity(input string) string {
	if canonicalPattern.MatchString(input) {
		return input
	}

	code := strings.ToUpper(strings.TrimSpace(input))
	lower := strings.ToLower(code)

	if bareAShare.MatchString(code) {
		switch code[0] {
		case '6', '9', '5':
			return code + ".SH"
		case '0', '1', '2', '3':
			return code + ".SZ"
		}
	}

	if m := shSzPrefixed.FindStringSubmatch(lower); m != nil {
		return m[2] + "." + strings.ToUpper(m[1])
	}

	if aliasSuffix.MatchString(code) {
		parts := strings.SplitN(code, ".", 2)
		num, suffix := parts[0], strings.ToUpper(parts[1])
		switch {
		case suffix == "SHA" || suffix == "SHH" || suffix == "SS" || strings.HasPrefix(suffix, "SH"):
			return num + ".SH"
		case suffix == "SZE" || suffix == "SZA" || suffix == "SZ0" || strings.HasPrefix(suffix, "SZ"):
			return num + ".SZ"
		}
	}

	if m := shSzDotted.FindStringSubmatch(lower); m != nil {
		return m[2] + "." + strings.ToUpper(m[1])
	}

	if m := hkPrefixed.FindStringSubmatch(lower); m != nil {
		return zfill(m[1], 5) + ".HK"
	}
	if m := hkSuffixed.FindStringSubmatch(lower); m != nil {
		return zfill(m[1], 5) + ".HK"
	}

	if m := usPrefixed.FindStringSubmatch(lower); m != nil {
		return strings.ToUpper(m[1]) + ".US"
	}
	if bareTicker.MatchString(code) {
		return code + ".US"
	}

	return input
}

// IsIndex reports whether a canonical code identifies a market index rather
// than a tradable instrument. Shanghai indices use the 000 prefix, Shenzhen
// indices the 399 prefix.
func IsIndex(code string) bool {
	return (strings.HasSuffix(code, ".SH") && strings.HasPrefix(code, "000")) ||
		(strings.HasSuffix(code, ".SZ") && strings.HasPrefix(code, "399"))
}

// NormalizeIndex resolves index shorthand (sh, cyb, hs300, ...) and bare
// 6-digit index codes into canonical form. Unrecognized input is returned
// unchanged.
func NormalizeIndex(input string) string {
	if mapped, ok := indexAliases[strings.ToLower(strings.TrimSpace(input))]; ok {
		return mapped
	}
	if bareAShare.MatchString(input) {
		switch {
		case strings.HasPrefix(input, "000") || strings.HasPrefix(input, "880"):
			return input + ".SH"
		case strings.HasPrefix(input, "399"):
			return input + ".SZ"
		}
	}
	return input
}

// NormalizeCrypto expands a base asset into a full trading pair against the
// given quote currency. A base that already ends in one of the supported
// quote currencies (and is longer than that suffix) is treated as a complete
// pair; a base that IS a supported quote currency queried against itself is
// returned as-is instead of doubling up.
func NormalizeCrypto(base, quote string, supported []string) string {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))

	for _, vs := range supported {
		vs = strings.ToUpper(vs)
		if strings.HasSuffix(base, vs) && len(base) > len(vs) {
			return base
		}
		if base == quote && base == vs {
			return base
		}
	}
	return base + quote
}

func zfill(s string, width int) string {
	for len(s) < width {
		s = "0" + s
	}
	return s
}
