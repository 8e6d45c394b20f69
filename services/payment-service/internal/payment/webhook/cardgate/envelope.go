package cardgate

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// CryptoErrorKind classifies envelope failures.
type CryptoErrorKind string

const (
	ErrKindConfig    CryptoErrorKind = "config"
	ErrKindMissingIV CryptoErrorKind = "missing_iv"
	ErrKindBase64    CryptoErrorKind = "base64"
	ErrKindCipher    CryptoErrorKind = "cipher"
	ErrKindJSON      CryptoErrorKind = "json"
)

// CryptoError is returned for any delivery that cannot be opened. It is fatal for that
// delivery only.
type CryptoError struct {
	Kind CryptoErrorKind
	Msg  string
	Err  error
}

func (e *CryptoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook crypto (%s): %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("webhook crypto (%s): %s", e.Kind, e.Msg)
}

func (e *CryptoError) Unwrap() error { return e.Err }

const (
	DefaultIVHeader        = "X-Initialization-Vector"
	DefaultSignatureHeader = "X-Authentication-Tag"
)

// VerifierConfig configures NewVerifier. Header names are matched case-insensitively.
type VerifierConfig struct {
	Secret          string
	IVHeader        string
	SignatureHeader string
	// RequireSignature marks deliveries without a signature header as unverified.
	// Off by default: unsigned deliveries are accepted as verified.
	RequireSignature bool
}

// Verifier decrypts and authenticates gateway notifications.
type Verifier struct {
	key              [32]byte
	ivHeader         string
	signatureHeader  string
	requireSignature bool
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, &CryptoError{Kind: ErrKindConfig, Msg: "webhook secret is not configured"}
	}
	if cfg.IVHeader == "" {
		cfg.IVHeader = DefaultIVHeader
	}
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = DefaultSignatureHeader
	}
	return &Verifier{
		key:              DeriveKey(cfg.Secret),
		ivHeader:         cfg.IVHeader,
		signatureHeader:  cfg.SignatureHeader,
		requireSignature: cfg.RequireSignature,
	}, nil
}

type keyStrategy func(secret string) ([32]byte, bool)

// keyStrategies are tried in order. The last one never fails.
var keyStrategies = []keyStrategy{
	base64Key,
	hexKey,
	sha256Key,
}

// DeriveKey turns the configured secret into an AES-256 / HMAC key. A secret that is neither
// 32 bytes of base64 nor 32 bytes of hex is hashed; for short secrets the key is only as strong
// as the secret itself.
func DeriveKey(secret string) [32]byte {
	for _, s := range keyStrategies {
		if k, ok := s(secret); ok {
			return k
		}
	}
	panic("cardgate: no key strategy matched") // unreachable, sha256Key is total
}

func base64Key(secret string) ([32]byte, bool) {
	var k [32]byte
	b, err := base64.StdEncoding.DecodeString(secret)
	if err != nil || len(b) != len(k) {
		return k, false
	}
	copy(k[:], b)
	return k, true
}

func hexKey(secret string) ([32]byte, bool) {
	var k [32]byte
	b, err := hex.DecodeString(secret)
	if err != nil || len(b) != len(k) {
		return k, false
	}
	copy(k[:], b)
	return k, true
}

func sha256Key(secret string) ([32]byte, bool) {
	return sha256.Sum256([]byte(secret)), true
}

// Opened is a decrypted delivery.
type Opened struct {
	Payload        map[string]any
	Plaintext      []byte
	IdempotencyKey string
	Verified       bool
}

// idempotencyFields are checked in order for the delivery id.
var idempotencyFields = []string{"id", "eventId", "payloadId"}

// DecryptAndVerify opens one delivery. Signature mismatch is not an error: it is reported as
// Verified=false and the caller decides.
func (v *Verifier) DecryptAndVerify(raw []byte, headers map[string]string) (*Opened, error) {
	plaintext, err := v.open(raw, headers)
	if err != nil {
		return nil, err
	}

	var payload map[string]any
	if err := json.Unmarshal(plaintext, &payload); err != nil {
		return nil, &CryptoError{Kind: ErrKindJSON, Msg: "decrypted body is not a JSON object", Err: err}
	}

	return &Opened{
		Payload:        payload,
		Plaintext:      plaintext,
		IdempotencyKey: IdempotencyKey(payload),
		Verified:       v.verify(plaintext, header(headers, v.signatureHeader)),
	}, nil
}

func (v *Verifier) open(raw []byte, headers map[string]string) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.HasPrefix(trimmed, []byte("{")) {
		// the signature covers the bytes as sent, surrounding whitespace included
		return raw, nil
	}

	ivB64 := header(headers, v.ivHeader)
	if ivB64 == "" {
		return nil, &CryptoError{Kind: ErrKindMissingIV, Msg: "encrypted body without " + v.ivHeader + " header"}
	}
	iv, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ivB64))
	if err != nil {
		return nil, &CryptoError{Kind: ErrKindBase64, Msg: "initialization vector", Err: err}
	}
	if len(iv) != aes.BlockSize {
		return nil, &CryptoError{Kind: ErrKindCipher, Msg: fmt.Sprintf("initialization vector is %d bytes", len(iv))}
	}
	ciphertext, err := base64.StdEncoding.DecodeString(string(trimmed))
	if err != nil {
		return nil, &CryptoError{Kind: ErrKindBase64, Msg: "body", Err: err}
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, &CryptoError{Kind: ErrKindCipher, Msg: "ciphertext is not a multiple of the block size"}
	}

	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, &CryptoError{Kind: ErrKindCipher, Msg: "init cipher", Err: err}
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return unpad(out)
}

func unpad(b []byte) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, &CryptoError{Kind: ErrKindCipher, Msg: "bad padding"}
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, &CryptoError{Kind: ErrKindCipher, Msg: "bad padding"}
		}
	}
	return b[:len(b)-n], nil
}

// verify checks the hex HMAC-SHA256 of the plaintext.
func (v *Verifier) verify(plaintext []byte, sig string) bool {
	sig = strings.TrimSpace(sig)
	if sig == "" {
		return !v.requireSignature
	}
	sig = strings.TrimPrefix(strings.TrimPrefix(sig, "0x"), "0X")
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(got, Sign(v.key, plaintext))
}

// Sign computes the raw HMAC-SHA256 of msg.
func Sign(key [32]byte, msg []byte) []byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(msg)
	return mac.Sum(nil)
}

// IdempotencyKey picks the delivery id from a decrypted payload.
func IdempotencyKey(payload map[string]any) string {
	for _, f := range idempotencyFields {
		v, ok := payload[f]
		if !ok || v == nil {
			continue
		}
		if s := strings.TrimSpace(cast.ToString(v)); s != "" {
			return s
		}
	}
	return ""
}

func header(headers map[string]string, name string) string {
	if v, ok := headers[name]; ok {
		return v
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
