// Package errors defines error types for the tunnel SDK.
//
// This package provides structured error types that wrap different failure
// scenarios: connecting and staying connected to the tunnel server, running
// platform automation toolchains, and talking to the dev server. All error
// types support error unwrapping and can be checked using errors.Is and
// errors.As.
package errors
