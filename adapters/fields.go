package adapters

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"retail-crawler/internal/types"
)

var (
	nonNumeric = regexp.MustCompile(`[^\d.,]`)
	nonDigit   = regexp.MustCompile(`\D`)
)

// ApplyParser converts a raw extracted string according to the rule's parser kind.
// It never fails: a value that cannot be parsed yields nil and a warning naming
// the field, so a single bad value never aborts the item or the page.
func ApplyParser(raw string, rule types.Rule, field string, baseURL string, logger types.Logger) interface{} {
	raw = strings.TrimSpace(raw)

	switch rule.Parser {
	case types.ParserFloat:
		value, err := ParseFloat(raw)
		if err != nil {
			logger.Warnf("Could not parse float for field '%s' from value '%s': %v", field, raw, err)
			return nil
		}
		return value

	case types.ParserInt:
		digits := nonDigit.ReplaceAllString(raw, "")
		value, err := strconv.Atoi(digits)
		if err != nil {
			logger.Warnf("Could not parse int for field '%s' from value '%s': %v", field, raw, err)
			return nil
		}
		return value

	case types.ParserBool:
		lower := strings.ToLower(raw)
		return strings.Contains(lower, "available") || strings.Contains(lower, "in stock")

	case types.ParserURL:
		resolved, err := ResolveURL(baseURL, raw)
		if err != nil {
			logger.Warnf("Could not resolve url for field '%s' from value '%s': %v", field, raw, err)
			return nil
		}
		return resolved

	case types.ParserRegex:
		re, err := rule.Regexp()
		if err != nil {
			logger.Warnf("Invalid regex pattern '%s' for field '%s': %v", rule.Pattern, field, err)
			return nil
		}
		match := re.FindStringSubmatch(raw)
		if match == nil {
			logger.Warnf("Regex pattern '%s' did not match for field '%s' (value '%s')", rule.Pattern, field, raw)
			return nil
		}
		if len(match) > 1 {
			return match[1]
		}
		return match[0]
	}

	return raw
}

// ParseFloat parses a price-like string. A comma without a dot is read as the
// decimal separator ("12,50"); otherwise commas are thousands separators
// ("1,200.50").
func ParseFloat(raw string) (float64, error) {
	cleaned := nonNumeric.ReplaceAllString(raw, "")
	if strings.Contains(cleaned, ",") && !strings.Contains(cleaned, ".") {
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return strconv.ParseFloat(cleaned, 64)
}

// ResolveURL resolves ref against base using standard URL reference rules
func ResolveURL(base string, ref string) (string, error) {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	if base == "" {
		return refURL.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
