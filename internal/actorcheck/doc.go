// Package actorcheck verifies claimed performer identities against credited
// cast lists. Verification is advisory: a mismatch can propose a corrected
// candidate but never fails a recognition request.
package actorcheck
