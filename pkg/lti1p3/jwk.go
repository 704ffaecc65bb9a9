package lti1p3

import (
	"crypto/rsa"
	"encoding/base64"
	"math/big"
)

// JWKS is a JSON Web Key Set, i.e. { "keys": [ JWK, ... ] }.
type JWKS struct {
	Keys []map[string]any `json:"keys"`
}

// RSAPublicJWK builds a minimal public RSA JWK map (RFC 7517) for the
// given key. Only public parameters are included.
func RSAPublicJWK(pub *rsa.PublicKey, kid, alg string) map[string]any {
	if pub == nil || pub.N == nil || pub.E == 0 {
		return nil
	}
	return map[string]any{
		"kty":     "RSA",
		"kid":     kid,
		"alg":     alg,
		"use":     "sig",
		"key_ops": []string{"verify"},
		"n":       bigIntToB64(pub.N),
		"e":       intToB64(pub.E),
	}
}

// rsaKeysFromJWKS extracts the RSA public keys of a keyset. When kid is
// non-empty, entries carrying a different kid are skipped; entries with no
// kid are kept so pinned keys still match.
func rsaKeysFromJWKS(set JWKS, kid string) []*rsa.PublicKey {
	var out []*rsa.PublicKey
	for _, k := range set.Keys {
		if k == nil {
			continue
		}
		if t, _ := k["kty"].(string); t != "RSA" {
			continue
		}
		if kid != "" {
			if got, _ := k["kid"].(string); got != "" && got != kid {
				continue
			}
		}
		nStr, _ := k["n"].(string)
		eStr, _ := k["e"].(string)
		if nStr == "" || eStr == "" {
			continue
		}
		nb, err := base64.RawURLEncoding.DecodeString(nStr)
		if err != nil {
			continue
		}
		eb, err := base64.RawURLEncoding.DecodeString(eStr)
		if err != nil {
			continue
		}
		e := 0
		for _, b := range eb {
			e = (e << 8) | int(b)
		}
		if e == 0 {
			continue
		}
		out = append(out, &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e})
	}
	return out
}

func bigIntToB64(n *big.Int) string {
	if n == nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(n.FillBytes(make([]byte, (n.BitLen()+7)/8)))
}

func intToB64(e int) string {
	byteLen := 1
	switch {
	case e > 0xffffff:
		byteLen = 4
	case e > 0xffff:
		byteLen = 3
	case e > 0xff:
		byteLen = 2
	}
	return base64.RawURLEncoding.EncodeToString(big.NewInt(int64(e)).FillBytes(make([]byte, byteLen)))
}
