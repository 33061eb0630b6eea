// Package password hashes and verifies passwords with Argon2id (default) or bcrypt.
//
// Argon2id hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [New] returns a [Hasher] that hashes with the configured algorithm and
// verifies hashes of either algorithm. [Hasher.NeedsUpgrade] reports hashes
// made with weaker parameters or the other algorithm so callers can rehash
// after a successful login.
//
// This package never stores passwords and never logs them.
package password
