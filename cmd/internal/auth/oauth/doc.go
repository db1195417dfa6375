// Package oauth binds authorization redirects to their callbacks.
//
// Provider handshakes are delegated to an external strategy; this package
// only mints single-use state nonces, verifies them on callback, and hands
// the provider's final authenticated identity to the login flow.
package oauth
