package gateway

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"hash"
)

// HashAlgo selects the hash underlying an HMAC signature. The
// canonicalization of the signed string is owned by each adapter; this file
// only supplies the primitives.
type HashAlgo string

const (
	HashSHA1   HashAlgo = "sha1"
	HashSHA256 HashAlgo = "sha256"
	HashSHA512 HashAlgo = "sha512"
)

func (a HashAlgo) new() func() hash.Hash {
	switch a {
	case HashSHA1:
		return sha1.New
	case HashSHA512:
		return sha512.New
	default:
		return sha256.New
	}
}

// SignHMAC computes the HMAC of data with the given key and hash.
func SignHMAC(data, key []byte, algo HashAlgo) []byte {
	mac := hmac.New(algo.new(), key)
	mac.Write(data)
	return mac.Sum(nil)
}

// VerifyHMAC reports whether signature matches the HMAC of data. Constant
// time comparison.
func VerifyHMAC(data, key, signature []byte, algo HashAlgo) bool {
	return hmac.Equal(SignHMAC(data, key, algo), signature)
}

// ParseRSAPublicKey decodes a PEM-encoded RSA public key.
func ParseRSAPublicKey(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found in public key data")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return rsaPub, nil
}

// VerifyRSASHA1 verifies a PKCS#1 v1.5 SHA-1 signature. A verification
// failure is reported as false, never as an error, so callers can degrade to
// signed=false.
func VerifyRSASHA1(data, signature []byte, pub *rsa.PublicKey) bool {
	digest := sha1.Sum(data)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA1, digest[:], signature) == nil
}
