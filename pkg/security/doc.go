// Package security provides authentication and secret resolution for the
// relay.
//
// The auth sub-package issues and verifies HS256 API tokens carried in
// the X-API-Token header. The secrets sub-package resolves the signing
// secret from environment variables or mounted secret files with
// priority-based fallback.
package security
