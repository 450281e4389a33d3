// Package cli implements the useragents command line: serve, agents and
// call.
package cli
