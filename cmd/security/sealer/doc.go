// Package sealer encrypts the session secret before it is written to the local cache.
//
// Ciphertexts are self-describing strings:
//
//	$xc20p1$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<nonce_b64><sealed_b64>
//
// Each Encrypt derives a fresh 32-byte key from the configured key material with
// Argon2id and a random salt, then seals with XChaCha20-Poly1305. The Argon2id
// parameters travel with the ciphertext so records written with older settings
// stay readable.
//
// Security notes:
//   - Ciphertexts are untrusted input during Decrypt; parameters are bounded.
//   - Callers pass associated data (the session owner) so a ciphertext cannot be
//     moved to another record.
package sealer
