// Package auth implements accounts, sessions and token verification for
// tourney-core.
//
// Two roles exist: PARTICIPANT and ADMINISTRATOR. A login issues an HS256
// token bound to one stored session. The signing key is the server secret
// concatenated with the user's current password hash, so a password change
// invalidates every token issued before it. Sessions store only a bcrypt
// digest of the token.
//
// Verification runs in a fixed order: an untrusted peek selects the user
// and session rows, then the signature, expiry, stored digest and role are
// checked. Handlers receive the result as an immutable AuthContext.
package auth
