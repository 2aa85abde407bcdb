// Package password hashes and verifies account passwords with Argon2id and
// enforces the account password strength policy.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Salt and hash use unpadded standard base64. Verification reads the cost
// parameters back out of the encoded string, so hashes produced under older
// parameters keep verifying; [Argon2.NeedsUpgrade] reports when a stored hash
// should be replaced after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing, verification and the strength policy only. It never
// sees user records.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Distinguish "wrong password" from "corrupt hash" to callers of Verify.
//   - Import any other medauth package.
//   - Log plaintext passwords.
package password
