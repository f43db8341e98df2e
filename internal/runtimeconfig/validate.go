package runtimeconfig

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shortlinkd/shortlinkd/internal/domain"
)

// validateValue type-checks raw against schema before it is persisted.
func validateValue(schema KeySchema, raw string) error {
	switch schema.Type {
	case TypeBool:
		switch raw {
		case "true", "false", "1", "0", "yes", "no":
		default:
			return domain.NewConfigValidationError(schema.Key, fmt.Sprintf("%q is not a valid bool", raw))
		}
	case TypeInteger:
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return domain.NewConfigValidationError(schema.Key, fmt.Sprintf("%q is not a valid integer", raw))
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return domain.NewConfigValidationError(schema.Key, fmt.Sprintf("%q is not a valid float", raw))
		}
	case TypeEnum:
		if !contains(schema.EnumValues, raw) {
			return domain.NewConfigValidationError(schema.Key, fmt.Sprintf("%q is not one of %v", raw, schema.EnumValues))
		}
	case TypeEnumArray:
		for _, v := range strings.Split(raw, ",") {
			if v == "" {
				continue
			}
			if !contains(schema.EnumValues, v) {
				return domain.NewConfigValidationError(schema.Key, fmt.Sprintf("%q is not one of %v", v, schema.EnumValues))
			}
		}
	case TypeStringArray, TypeString, TypeJSON:
		// Any string is structurally acceptable; JSON well-formedness is
		// the admin caller's responsibility since schema doesn't carry a
		// per-key JSON shape.
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
