// Package togglr is the Go client for the Togglr feature-flag service.
//
// The server decides whether a feature is enabled and which value variant applies.
// This package builds the request context, talks to the SDK API, and adds
// the client-side concerns around that call:
//
//   - deterministic cache keys and a bounded, time-expiring result cache
//   - retries with capped exponential backoff for server and network failures
//   - a typed error taxonomy (see ErrorKind)
//   - TLS configuration, structured logging, Prometheus metrics and OpenTelemetry tracing
//
// A minimal program:
//
//	client, err := togglr.NewClient(apiKey, togglr.WithBaseURL("https://flags.example.com"))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	rc := togglr.NewContext().WithUserID("42").WithCountry("DE")
//	if client.IsEnabledOrDefault(ctx, "new_checkout", rc, false) {
//		// ...
//	}
//
// A Client is safe for concurrent use by multiple goroutines.
package togglr

// Version is reported in the default User-Agent header.
const Version = "0.4.0"
