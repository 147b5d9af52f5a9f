package templates

import (
	"bytes"
	"context"
	"fmt"

	"github.com/a-h/templ"
)

// Render renders a templ component into a string.
func Render(ctx context.Context, tpl templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Render(ctx, &buf); err != nil {
		return "", fmt.Errorf("render email template: %w", err)
	}
	return buf.String(), nil
}
