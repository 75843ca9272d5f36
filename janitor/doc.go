// Package janitor owns every ephemeral artifact a request creates.
//
// Allocate hands out a Scope: a private directory under the shared root plus
// a registry of paths and sandbox handles. Callers register artifacts at the
// moment they create them and defer Scope.Release, which destroys handles and
// removes paths exactly once however the request ends.
//
// A background sweep deletes root entries older than the retention threshold.
// It is a time-based backstop for scopes that a crash never released and does
// not coordinate with live scopes.
package janitor
