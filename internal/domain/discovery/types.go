package discovery

import (
	"math"
	"regexp"
	"strings"
)

// Type is the detected type of a field value.
type Type string

// Detected types. Date, datetime, uuid, url and email refine string.
const (
	TypeNull     Type = "null"
	TypeBoolean  Type = "boolean"
	TypeInteger  Type = "integer"
	TypeNumber   Type = "number"
	TypeString   Type = "string"
	TypeDate     Type = "date"
	TypeDatetime Type = "datetime"
	TypeUUID     Type = "uuid"
	TypeURL      Type = "url"
	TypeEmail    Type = "email"
	TypeArray    Type = "array"
	TypeObject   Type = "object"
	TypeUnknown  Type = "unknown"
)

//nolint:gochecknoglobals // compiled once
var (
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`),
		regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`),
	}
	uuidPattern  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	urlPattern   = regexp.MustCompile(`^https?://`)
	emailPattern = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+$`)
	phonePattern = regexp.MustCompile(`^[\d\-()\s+]+$`)
)

// DetectType classifies a decoded JSON value. Whole float64 values count as
// integers because encoding/json decodes every number as float64.
func DetectType(v any) Type {
	switch t := v.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBoolean
	case int, int32, int64:
		return TypeInteger
	case float64:
		if t == math.Trunc(t) && !math.IsInf(t, 0) {
			return TypeInteger
		}
		return TypeNumber
	case float32:
		return TypeNumber
	case string:
		return detectString(t)
	case []any:
		return TypeArray
	case map[string]any:
		return TypeObject
	default:
		return TypeUnknown
	}
}

func detectString(s string) Type {
	for _, p := range datePatterns {
		if p.MatchString(s) {
			if strings.Contains(s, "T") {
				return TypeDatetime
			}
			return TypeDate
		}
	}
	switch {
	case uuidPattern.MatchString(s):
		return TypeUUID
	case urlPattern.MatchString(s):
		return TypeURL
	case emailPattern.MatchString(s):
		return TypeEmail
	default:
		return TypeString
	}
}

const (
	maxSampleLen  = 50
	truncatedLen  = 47
	minPhoneLen   = 10
	emailKeepLen  = 2
	phoneKeepLen  = 4
	maskedPhone   = "***-***-"
	maskedEmailAt = "***@"
)

// Mask hides personal data in a sample value: emails keep two leading
// characters and the domain, phone numbers keep the last four digits and
// long strings are cut to 50 characters. Other values pass through.
func Mask(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if strings.Contains(s, "@") && strings.Contains(s, ".") {
		local, domain, _ := strings.Cut(s, "@")
		return prefix(local, emailKeepLen) + maskedEmailAt + domain
	}
	if len(s) >= minPhoneLen && phonePattern.MatchString(s) {
		return maskedPhone + s[len(s)-phoneKeepLen:]
	}
	if r := []rune(s); len(r) > maxSampleLen {
		return string(r[:truncatedLen]) + "..."
	}
	return s
}

func prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
