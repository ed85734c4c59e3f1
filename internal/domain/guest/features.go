package guest

import (
	"strconv"
	"strings"

	"github.com/GriffinCanCode/AgentOS/guesthost/internal/domain/surface"
)

// keys whose values are numeric in a features string
var numericFeatures = map[string]bool{
	"top":                      true,
	"left":                     true,
	"width":                    true,
	"height":                   true,
	"zoomFactor":               true,
	"minimumFontSize":          true,
	"defaultFontSize":          true,
	"defaultMonospaceFontSize": true,
}

// ParseFeatures parses a comma separated "key=value" string, the same
// grammar used for window features. A bare key means true.
func ParseFeatures(source string) surface.Preferences {
	parsed := surface.Preferences{}
	for _, pair := range strings.Split(source, ",") {
		key, value, hasValue := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		parsed[key] = coerceFeature(key, value, hasValue)
	}
	return parsed
}

func coerceFeature(key, value string, hasValue bool) any {
	if numericFeatures[key] {
		if n, err := strconv.ParseFloat(value, 64); err == nil {
			return n
		}
		return value
	}
	if !hasValue {
		return true
	}
	switch value {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return value
	}
}
