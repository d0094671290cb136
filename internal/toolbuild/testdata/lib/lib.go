// Package lib is not a command.
package lib

// Answer documents an exported constant.
const Answer = 42
