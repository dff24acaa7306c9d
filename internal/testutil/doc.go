// Package testutil contains helper builders and a scripted core.Runner used
// across tests to reduce boilerplate when constructing events and driving the
// gateway against a predictable runtime. Not intended for production usage.
package testutil
