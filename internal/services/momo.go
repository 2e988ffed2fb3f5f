package services

import (
	"fmt"
	"regexp"
	"strings"
)

// Mobile-money providers supported for wallet deposits.
const (
	ProviderMTN        = "MTN"
	ProviderVodafone   = "Vodafone"
	ProviderAirtelTigo = "AirtelTigo"
)

// Accepted Ghana formats: 0XXXXXXXXX (second digit 2-9), +233XXXXXXXXX,
// 233XXXXXXXXX. Everything normalizes to the local 0-prefixed form.
var (
	localPhoneRegex = regexp.MustCompile(`^0[2-9][0-9]{8}$`)
	intlPhoneRegex  = regexp.MustCompile(`^(?:\+?233)([2-9][0-9]{8})$`)
)

var providerPrefixes = map[string][]string{
	ProviderMTN:        {"024", "025", "053", "054", "055", "059"},
	ProviderVodafone:   {"020", "050"},
	ProviderAirtelTigo: {"026", "027", "056", "057"},
}

// NormalizePhone canonicalizes a Ghana phone number to 0XXXXXXXXX.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))

	if localPhoneRegex.MatchString(cleaned) {
		return cleaned, nil
	}

	if m := intlPhoneRegex.FindStringSubmatch(cleaned); m != nil {
		return "0" + m[1], nil
	}

	return "", ErrInvalidPhoneNumber
}

// FormatPhoneDisplay renders a normalized number as 0XX XXX XXXX.
func FormatPhoneDisplay(normalized string) string {
	if len(normalized) != 10 {
		return normalized
	}
	return fmt.Sprintf("%s %s %s", normalized[0:3], normalized[3:6], normalized[6:10])
}

// ValidateProviderPhone checks that a phone number is valid and belongs to
// the named provider's prefix range.
func ValidateProviderPhone(provider, phone string) (string, error) {
	normalized, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}

	prefixes, ok := providerPrefixes[provider]
	if !ok {
		return "", fmt.Errorf("%w: unknown provider %q", ErrInvalidPhoneNumber, provider)
	}

	for _, p := range prefixes {
		if strings.HasPrefix(normalized, p) {
			return normalized, nil
		}
	}

	return "", fmt.Errorf("%w: %s is not a %s number", ErrInvalidPhoneNumber, FormatPhoneDisplay(normalized), provider)
}
