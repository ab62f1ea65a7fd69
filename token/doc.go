// Package token decodes, validates, and mints portal credentials.
//
// Two wire formats are accepted. The primary format is a JWT signed with the
// process-wide shared secret (HMAC, single-algorithm allow-list). The second
// is the legacy fallback: a base64-encoded flat JSON object with no signature
// at all. Legacy tokens are trusted because they are only ever produced by the
// portal's own internal issuer, not because anything about them is verifiable.
// That is a deliberate trust boundary carried over from the existing token
// population; rejecting legacy tokens would invalidate every outstanding one.
// Routes that cannot accept that trust level should set SignedOnly on their
// policy requirement, and AUTH_ALLOW_LEGACY=false disables the fallback
// entirely.
package token
