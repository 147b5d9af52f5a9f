package notifications

import (
	"encoding/json"
	"regexp"
	"strings"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// RenderTemplate replaces every {{key}} token with md[key].
// Tokens whose key is missing are left as written. Objects and arrays render as JSON.
func RenderTemplate(tpl string, md Metadata) string {
	if !strings.Contains(tpl, "{{") {
		return tpl
	}
	return placeholderRegex.ReplaceAllStringFunc(tpl, func(token string) string {
		key := placeholderRegex.FindStringSubmatch(token)[1]
		raw, ok := md[key]
		if !ok {
			return token
		}
		v := ValueOf(raw)
		if _, isValue := raw.(Value); v.IsNull() && raw != nil && !isValue {
			data, err := json.Marshal(raw)
			if err != nil {
				return token
			}
			return string(data)
		}
		return v.Text()
	})
}
