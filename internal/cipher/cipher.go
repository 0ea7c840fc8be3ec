// Package cipher implements the rotating digit Caesar shift used to obscure
// chat message bodies. For the plaintext character at position i, the shift
// amount is the digit of the secret at position i mod len(secret). Only
// ASCII letters are shifted, wrapping mod 26 and preserving case; every
// other character passes through unchanged.
//
// Secrets are expected to be digit strings. A non-digit secret byte b
// contributes the digit b % 10, so any secret yields a deterministic,
// reversible transform. This is an obfuscation primitive, not cryptography:
// the short repeating period is intentional so that a wrong unlock guess
// still produces a plausible garbled decryption.
package cipher

// Encrypt applies the forward shift keyed by secret. An empty secret is the
// identity transform.
func Encrypt(text, secret string) string {
	if secret == "" {
		return text
	}
	out := []rune(text)
	for i, r := range out {
		out[i] = shiftLetter(r, digitAt(secret, i))
	}
	return string(out)
}

// Decrypt applies the complementary shift so that for any text and secret,
// Decrypt(Encrypt(text, secret), secret) == text.
func Decrypt(text, secret string) string {
	if secret == "" {
		return text
	}
	out := []rune(text)
	for i, r := range out {
		out[i] = shiftLetter(r, 26-digitAt(secret, i)%26)
	}
	return string(out)
}

// digitAt returns the shift digit for position i. Digit bytes keep their
// face value; anything else maps to its byte value mod 10.
func digitAt(secret string, i int) int {
	b := secret[i%len(secret)]
	if b >= '0' && b <= '9' {
		return int(b - '0')
	}
	return int(b) % 10
}

func shiftLetter(r rune, shift int) rune {
	switch {
	case r >= 'a' && r <= 'z':
		return 'a' + (r-'a'+rune(shift))%26
	case r >= 'A' && r <= 'Z':
		return 'A' + (r-'A'+rune(shift))%26
	default:
		return r
	}
}
