package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/theplant/luhn"
)

type CardType string

const (
	Visa       CardType = "VISA"
	Mastercard CardType = "MASTERCARD"
	Unknown    CardType = "UNKNOWN"
)

var (
	visaPattern       = regexp.MustCompile(`^4[0-9]{12}(?:[0-9]{3})?$`)
	mastercardPattern = regexp.MustCompile(`^5[1-5][0-9]{14}$`)
	digitsPattern     = regexp.MustCompile(`^[0-9]{13,18}$`)
)

// NormalizeCardNumber strips the spaces and dashes people type into card numbers.
func NormalizeCardNumber(number string) string {
	clean := strings.ReplaceAll(number, " ", "")
	return strings.ReplaceAll(clean, "-", "")
}

// ValidateCardNumber checks length and the Luhn checksum and reports the brand.
func ValidateCardNumber(number string) (CardType, error) {
	clean := NormalizeCardNumber(number)
	if !digitsPattern.MatchString(clean) {
		return Unknown, fmt.Errorf("%w: card number must be 13 to 18 digits", ErrInvalidArgument)
	}
	n, err := strconv.Atoi(clean)
	if err != nil || !luhn.Valid(n) {
		return Unknown, fmt.Errorf("%w: card number fails checksum", ErrInvalidArgument)
	}
	return CardBrand(clean), nil
}

func CardBrand(number string) CardType {
	switch {
	case visaPattern.MatchString(number):
		return Visa
	case mastercardPattern.MatchString(number):
		return Mastercard
	default:
		return Unknown
	}
}

// GenerateCardNumber issues a 16 digit VISA-prefixed number with a valid check digit.
func GenerateCardNumber() (string, error) {
	body, err := randomDigits(14)
	if err != nil {
		return "", err
	}
	base, err := strconv.Atoi("4" + body)
	if err != nil {
		return "", err
	}
	for d := 0; d < 10; d++ {
		if candidate := base*10 + d; luhn.Valid(candidate) {
			return strconv.Itoa(candidate), nil
		}
	}
	return "", fmt.Errorf("no check digit for %d", base)
}

// GenerateAccountNumber returns a random 14 digit account number.
func GenerateAccountNumber() (string, error) {
	lead, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		return "", fmt.Errorf("failed to generate account number: %w", err)
	}
	rest, err := randomDigits(13)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(lead.Int64()+1, 10) + rest, nil
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to generate random digits: %w", err)
		}
		b.WriteString(d.String())
	}
	return b.String(), nil
}
