// Package session implements the web-bridge session store: the mapping
// from a browser session id to the single protocol-client instance that
// session owns.
//
// Sessions move INITIALIZED → ACTIVE → CLOSED. Creation is atomic under
// the store lock so concurrent opens for one id share one client, while
// client startup runs outside the lock so a slow broker never stalls
// other sessions. An idle sweep closes sessions with no emitter and no
// recent activity; CLOSED is terminal and a closed id re-opens as a
// fresh session.
package session
