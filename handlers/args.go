package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"court-desk/types"
)

// splitFields splits "a; b; c" and requires exactly n fields.
func splitFields(args string, n int, usage string) ([]string, error) {
	parts := strings.Split(args, ";")
	if strings.TrimSpace(args) == "" || len(parts) != n {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts, nil
}

// parseMoney accepts "5000", "5,000" and "MWK 5,000".
func parseMoney(s string) (types.Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.ToUpper(s), "MWK")
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, errors.New("amount is empty")
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole amount", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("amount cannot be negative")
	}
	return types.Money(v), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1", "on":
		return true, nil
	case "no", "n", "false", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("%q is not yes/no", s)
}

// parseClock accepts "9:00" or "09:00" and returns "09:00".
func parseClock(s string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%q is not a time, use HH:MM", s)
	}
	return t.Format("15:04"), nil
}

func parseDate(s string) (string, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("%q is not a date, use YYYY-MM-DD", s)
	}
	return t.Format("2006-01-02"), nil
}
