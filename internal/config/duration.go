package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// getDuration reads a duration key. Bare integers are seconds, anything else
// goes through time.ParseDuration.
func getDuration(v *viper.Viper, key string) (time.Duration, error) {
	switch typed := v.Get(key).(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return typed, nil
	case int:
		return time.Duration(typed) * time.Second, nil
	case int64:
		return time.Duration(typed) * time.Second, nil
	case float64:
		return time.Duration(typed * float64(time.Second)), nil
	default:
		d, err := ParseDuration(fmt.Sprintf("%v", typed))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
}

// ParseDuration parses seconds ("60") or a Go duration ("1m30s").
func ParseDuration(input string) (time.Duration, error) {
	input = strings.TrimSpace(input)
	if isNumeric(input) {
		secs, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return 0, err
		}
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(input)
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
