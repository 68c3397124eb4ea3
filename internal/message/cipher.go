package message

import "encoding/base64"

// Clients apply a fixed-key XOR obfuscation to message content before
// transit and store the result verbatim. This is not encryption (the
// key ships in the client); the server only ever decodes it to build a
// readable push-notification preview.

var cipherKey = []byte("chat-secret-key-2024")

func xorBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ cipherKey[i%len(cipherKey)]
	}
	return out
}

// DecodeContent reverses the client-side obfuscation. Content that is
// not valid base64 is assumed to be plaintext and returned unchanged.
func DecodeContent(s string) string {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	return string(xorBytes(raw))
}

// EncodeContent applies the client-side obfuscation; used by the seeder
// and tests.
func EncodeContent(s string) string {
	return base64.StdEncoding.EncodeToString(xorBytes([]byte(s)))
}
