// Package callback generates, validates, and parses the correlation tokens
// that tie a suspended workflow step to its out-of-band resume signal.
//
// Tokens have the textual form
//
//	callback-<executionId>-<correlationId>
//
// where correlationId is a random UUID in canonical 8-4-4-4-12 grouping and
// executionId may itself contain dashes. All functions in this package are
// pure and safe for concurrent use.
package callback
