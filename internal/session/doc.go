// Package session holds the console's notion of "who is logged in".
//
// A Store is the single source of truth for one session scope: a browser
// in the web console, or the local account for the CLI. It starts in the
// Loading state, moves to Authenticated or Unauthenticated once Initialize
// has read the durable Storage, and never returns to Loading.
//
// The token and the email are persisted as two entries, TokenKey and
// EmailKey. Both present means logged in; anything else means logged out.
package session
