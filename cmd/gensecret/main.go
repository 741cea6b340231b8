package main

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/pflag"
)

// HS256 key should be at least as long as hash output
const defaultSecretKeyBytesLen = 32

func main() {
	length := pflag.IntP("bytes", "b", defaultSecretKeyBytesLen, "Secret length in bytes")
	encoding := pflag.StringP("encoding", "e", "hex", "Output encoding (hex, base64)")
	pflag.Parse()

	secret, err := generate(*length, *encoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error while generating secret key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(secret)
}

func generate(length int, encoding string) (string, error) {
	if length < defaultSecretKeyBytesLen {
		return "", fmt.Errorf("secret must be at least %d bytes", defaultSecretKeyBytesLen)
	}

	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	switch encoding {
	case "hex":
		return hex.EncodeToString(b), nil
	case "base64":
		return base64.RawURLEncoding.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("unknown encoding %q", encoding)
	}
}
