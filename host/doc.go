// Package host runs request handler scripts.
//
// An Executor owns a fixed arena of execution slots. Each slot is a
// persistent Lua interpreter that loaded the script once at startup and
// exposes the host capabilities as the global uwsgi table. Requests are
// driven through a small state machine (fresh, suspended, terminal) so the
// body of a response can be streamed one chunk per step when the server
// multiplexes several requests on one slot.
package host
