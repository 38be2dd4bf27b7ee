package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/vaultra/cardbank/internal/card/domain"
)

// Issuer prefixes for generated card numbers.
var providerBINs = map[string][]string{
	domain.ProviderVisa:       {"400000"},
	domain.ProviderMastercard: {"510000", "220000"},
}

const cardNumberLength = 16

// generateCardNumber produces a random 16-digit number carrying the
// provider's issuer prefix and a valid Luhn check digit.
func generateCardNumber(provider string) (string, error) {
	bins, ok := providerBINs[provider]
	if !ok {
		return "", fmt.Errorf("unknown card provider %q", provider)
	}
	bin, err := pick(bins)
	if err != nil {
		return "", err
	}

	digits := make([]byte, cardNumberLength)
	copy(digits, bin)
	for i := len(bin); i < cardNumberLength-1; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate card number: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	digits[cardNumberLength-1] = luhnCheckDigit(digits[:cardNumberLength-1])
	return string(digits), nil
}

func pick(options []string) (string, error) {
	if len(options) == 1 {
		return options[0], nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(options))))
	if err != nil {
		return "", err
	}
	return options[n.Int64()], nil
}

// luhnCheckDigit returns the digit that makes digits followed by it pass
// the Luhn checksum.
func luhnCheckDigit(digits []byte) byte {
	sum := 0
	// Walk right to left; the rightmost payload digit is doubled because
	// the check digit will occupy the final position.
	double := true
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return byte('0' + (10-sum%10)%10)
}

// luhnValid reports whether a full card number passes the Luhn checksum.
func luhnValid(number string) bool {
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
