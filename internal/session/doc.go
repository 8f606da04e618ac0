// Package session holds the one active editing session: the block graph,
// the plot state and the console state, owned together by a Session value
// and never reached through package globals.
//
// Every read returns a copy and every write replaces a whole value under the
// session's lock, so readers never observe a half-applied update.
package session
