// Package auth issues and verifies the service's API tokens: HS256 JWTs
// carrying the caller's SOEID and project, presented in the X-API-Token
// header.
package auth
