// Package testutil contains helpers shared by tests: a fluent event builder
// and throwaway TLS material for exercising the HTTPS paths. Not intended
// for production usage.
package testutil
