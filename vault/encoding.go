package vault

import "encoding/base64"

func encodeCiphertext(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decodeCiphertext(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
