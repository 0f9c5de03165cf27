package dto

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	apperrors "github.com/parkwise/parking-service/pkg/util"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9.+-]+@[a-z0-9.-]+\.[a-z]{2,}$`)
	platePattern    = regexp.MustCompile(`^[A-Z]{3}-[0-9]{4}$`)
	receiptPattern  = regexp.MustCompile(`^\d{8}-\d{6}(-\d+)?$`)
)

// rule is a single field check. Only the first failing rule of a field is
// reported.
type rule struct {
	field   string
	ok      bool
	message string
}

func apply(rules ...rule) error {
	details := make(map[string]any)
	for _, r := range rules {
		if r.ok {
			continue
		}
		if _, seen := details[r.field]; !seen {
			details[r.field] = r.message
		}
	}
	if len(details) == 0 {
		return nil
	}
	return apperrors.NewValidationError("invalid payload", details)
}

func required(field, value string) rule {
	return rule{field: field, ok: strings.TrimSpace(value) != "", message: "is required"}
}

func lengthBetween(field, value string, min, max int) rule {
	n := utf8.RuneCountInString(value)
	msg := fmt.Sprintf("must have between %d and %d characters", min, max)
	if min == max {
		msg = fmt.Sprintf("must have exactly %d characters", min)
	}
	return rule{field: field, ok: n >= min && n <= max, message: msg}
}

func matches(field, value string, pattern *regexp.Regexp, message string) rule {
	return rule{field: field, ok: pattern.MatchString(value), message: message}
}

// ValidNationalID reports whether cpf is an 11-digit CPF with valid check
// digits. Sequences of a single repeated digit are rejected.
func ValidNationalID(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}
	digits := make([]int, 11)
	repeated := true
	for i := 0; i < 11; i++ {
		c := cpf[i]
		if c < '0' || c > '9' {
			return false
		}
		digits[i] = int(c - '0')
		if digits[i] != digits[0] {
			repeated = false
		}
	}
	if repeated {
		return false
	}
	return checkDigit(digits[:9]) == digits[9] && checkDigit(digits[:10]) == digits[10]
}

func checkDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	rest := (sum * 10) % 11
	if rest == 10 {
		return 0
	}
	return rest
}

// ValidReceipt reports whether receipt has the check-in receipt format.
func ValidReceipt(receipt string) bool {
	return receiptPattern.MatchString(receipt)
}
