// Package auth issues and checks the API bearer tokens.
//
// Tokens are HS256-signed JWTs carrying a subject and a role. There are no
// stored accounts: an operator mints tokens with the CLI and the API checks
// them by signature alone. Roles map to a static permission set:
//   - user: read integrations, entries and state, and run setup flows
//   - admin: everything a user can do, plus remove entries
package auth
