// Package cms is a small content management backend: users authenticate with
// email and password, admins curate categories and posts, and anyone can
// browse paginated, sanitized post content.
//
// Authentication:
//   - PasswordHasher stores bcrypt hashes and bounds how many hashes run at
//     once. Plaintext never leaves the hasher.
//   - TokenService issues stateless HMAC signed JWT pairs. Access and refresh
//     tokens carry a typ claim so one can never be replayed as the other.
//   - Guard turns a bearer token into an active *User and enforces roles.
//     Every token failure surfaces as the same "invalid credentials" error.
//
// Content:
//   - Categories and posts get URL slugs from slug.Generator. Collisions are
//     resolved with numeric suffixes and the unique index has the final say.
//   - Post HTML is sanitized against a tag/attribute allow-list before it is
//     stored.
//   - Listings go through repository.Repository, which always reports the
//     total of the filtered set.
//
// Wire everything with NewApp, or use the services directly.
package cms
