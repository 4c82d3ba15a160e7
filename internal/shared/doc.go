// Package shared holds helpers used by tests of several packages. It must not
// carry domain logic.
package shared
