// Package token provides token counting for budgeting prompts and sizing
// chunks. The Counter contract is deliberately small: count must be pure
// and deterministic so that budget arithmetic is reproducible.
package token

// Counter counts the tokens a piece of text occupies in the target model's
// vocabulary. Implementations must be deterministic and safe for concurrent
// use.
type Counter interface {
	Count(text string) int
}
