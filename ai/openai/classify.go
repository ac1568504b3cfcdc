package openai

import (
	"context"
	"errors"
	"strings"

	"github.com/poiesic/groundit/ai"
)

// classify maps provider errors onto the ai error taxonomy. Rate limits,
// timeouts and transport failures stay transient so the queue retries them;
// input rejections become permanent so they fail only the chunk they belong
// to. The langchaingo client surfaces HTTP status in the error text, so the
// check is textual.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	for _, marker := range []string{"status code: 400", "status code: 404", "status code: 413", "status code: 422"} {
		if strings.Contains(msg, marker) {
			return ai.Permanent(err)
		}
	}
	return err
}
