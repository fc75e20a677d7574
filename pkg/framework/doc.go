// Package framework drives tick based components from a single goroutine.
//
// A Loop runs Controllers by priority level once per iteration. Other
// goroutines talk to controllers by posting Messages, which are handed to
// the next iteration. Runner starts background workers and collects
// their errors.
package framework
