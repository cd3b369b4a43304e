// Package transport sends hydrated frame requests over HTTP or gRPC and
// turns what comes back into observed response documents.
//
// Observed responses always carry a numeric status: the HTTP status code,
// or the gRPC status code (0 for OK). Bodies are decoded as JSON where
// possible.
package transport
