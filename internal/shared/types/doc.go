// Package types provides shared data structures for both services.
//
// This package defines the types exchanged between the gateway and the
// user service, so the wire contract lives in one place.
//
// Core Types:
//   - User: user record served by the user service
//   - ErrorResponse: JSON error body for failed requests
//
// Example Usage:
//
//	user := &types.User{
//	    ID:       "123",
//	    Username: "otelfan",
//	    Email:    "otel@example.com",
//	}
package types
