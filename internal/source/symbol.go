package source

import (
	"fmt"
	"strings"
)

// Exchange suffixes of the canonical symbol form.
const (
	ExchangeSZ = "SZ"
	ExchangeSH = "SH"
	ExchangeBJ = "BJ"
)

// CanonicalSymbol normalizes provider spellings ("000001", "sz.000001",
// "000001.sz") to "000001.SZ". Plain alphabetic tickers ("AAPL") are
// returned upper-cased without an exchange.
func CanonicalSymbol(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty symbol")
	}
	code, ex, err := SplitSymbol(s)
	if err != nil {
		return "", err
	}
	if ex == "" {
		return code, nil
	}
	return code + "." + ex, nil
}

// SplitSymbol returns the bare code and exchange of s.
func SplitSymbol(s string) (code, exchange string, err error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch {
	case len(s) > 3 && s[2] == '.' && isExchange(s[:2]):
		code, exchange = s[3:], s[:2]
	case len(s) > 3 && s[len(s)-3] == '.':
		code, exchange = s[:len(s)-3], s[len(s)-2:]
		if exchange == "SS" {
			exchange = ExchangeSH
		}
		if !isExchange(exchange) {
			return "", "", fmt.Errorf("symbol %q: unknown exchange %q", s, exchange)
		}
	case isDigits(s):
		code = s
		exchange = inferExchange(s)
	default:
		if !isTicker(s) {
			return "", "", fmt.Errorf("symbol %q: unrecognized format", s)
		}
		return s, "", nil
	}
	if len(code) != 6 || !isDigits(code) {
		return "", "", fmt.Errorf("symbol %q: want a 6-digit code", s)
	}
	if exchange == "" {
		return "", "", fmt.Errorf("symbol %q: cannot infer exchange", s)
	}
	return code, exchange, nil
}

func inferExchange(code string) string {
	if code == "" {
		return ""
	}
	switch code[0] {
	case '0', '3':
		return ExchangeSZ
	case '6', '9':
		return ExchangeSH
	case '4', '8':
		return ExchangeBJ
	}
	return ""
}

func isExchange(s string) bool {
	return s == ExchangeSZ || s == ExchangeSH || s == ExchangeBJ
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isTicker(s string) bool {
	if s == "" || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && r != '.' && r != '-' {
			return false
		}
	}
	return true
}
