// Package auth manages the OAuth2 token lifecycle for one music service.
//
// A [Manager] acquires app-level tokens with the client-credentials grant, exchanges authorization codes for user tokens,
// refreshes expired user tokens and persists them in a [secrets.Store]. Its [State] is the single place that decides whether
// a request may act on behalf of a user: a token without a refresh token is an app-level token and never authorizes user-scoped
// endpoints.
//
//	Unauthenticated -> ClientAuthenticated -> UserAuthenticated
//	UserAuthenticated -> Unauthenticated (logout or failed refresh)
//
// Token endpoint calls go through [golang.org/x/oauth2] with credentials sent in the form body.
package auth
