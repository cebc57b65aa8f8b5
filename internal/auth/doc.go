// Package auth verifies bearer tokens on the public API surface.
//
// Token issuance is an external collaborator; Junction never mints or
// stores credentials. This package only parses HS256-signed tokens
// with the shared secret from config and exposes the caller identity
// (subject + kind) to the HTTP middleware.
package auth
