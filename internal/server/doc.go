// Package server runs the local HTTP listener that completes OAuth2 authorization-code logins.
//
// # Callback Flow
//
// The CLI opens the provider's consent page in a browser with a random state token and starts a [CallbackServer] on the
// configured address. The provider redirects to /callback, where [CallbackHandler] checks the state parameter and hands
// the redirect URL to the caller through [CallbackServer.Wait]. The code exchange itself happens in the session layer.
//
// Only the first callback is processed; later requests are rejected.
//
// # Routing
//
// Handlers implement [Handler], which pairs [http.Handler] with the routes it serves, and are mounted on a chi router by
// [NewRouter] behind request-id, panic recovery and request logging middleware.
package server
