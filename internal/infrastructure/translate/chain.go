// Package translate provides headline translators: a ChatGPT client, a
// static glossary, a memoizing cache and a chain that tries them in order.
package translate

import (
	"context"
	"errors"
	"strings"

	"NewsBoard/internal/ports"
)

// Chain tries translators in order and returns the first non-empty result.
type Chain []ports.Translator

var _ ports.Translator = Chain(nil)

// Translate returns the joined errors when every translator failed.
func (c Chain) Translate(ctx context.Context, text string) (string, error) {
	var errs []error
	for _, t := range c {
		if t == nil {
			continue
		}
		translated, err := t.Translate(ctx, text)
		if err == nil && strings.TrimSpace(translated) != "" {
			return translated, nil
		}
		if err == nil {
			err = ErrNoTranslation
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", ErrNoTranslation
	}
	return "", errors.Join(errs...)
}
