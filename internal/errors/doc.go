// Package errors provides coded, actionable errors for livesync.
//
// Expected runtime failures of the sync core (dropped connections,
// malformed frames, commands issued while disconnected) never surface as
// errors: they become state transitions or transcript lines. This package
// covers the rest: invalid configuration, invalid construction arguments
// and CLI failures.
//
// # Error Codes
//
// Each error has a unique code that maps to a category, a short message
// and a longer explanation:
//   - E1xx: configuration (config)
//   - E2xx: construction arguments (validation)
//   - E3xx: transport and protocol (protocol)
//   - E4xx: REST API (api)
//
// # Usage
//
//	err := errors.New("E201").
//	    WithDetail("feed endpoint URL is empty").
//	    WithSuggestion("Set feed.url in livesync.json or pass --feed-url")
//
//	fmt.Fprint(os.Stderr, err.Format())
package errors
