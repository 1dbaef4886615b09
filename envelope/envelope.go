// Package envelope defines the encrypted-data record shared by every
// encryption flow and the symmetric cipher that produces and consumes it.
//
// An Envelope is self-describing: its algorithm tag names the cipher mode
// and, for password flows, the key derivation function and its cost, so a
// later decrypt needs nothing but the envelope and the secret. The tag is
// authenticated as additional data, so any edit to any field fails closed.
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

// Envelope is the serialized unit of interchange. Byte fields are standard
// base64. Envelopes are values; nothing in this module mutates one after it
// is produced.
type Envelope struct {
	// Ciphertext includes the authentication tag. It is empty for chunked
	// file envelopes, whose ciphertext travels as a separate blob.
	Ciphertext string `json:"ciphertext,omitempty"`
	IV         string `json:"iv"`
	// Salt is set only for password-based envelopes.
	Salt      string `json:"salt,omitempty"`
	Algorithm string `json:"algorithm"`
}

// decoded holds the raw fields of a structurally valid envelope.
type decoded struct {
	alg        Algorithm
	iv         []byte
	salt       []byte
	ciphertext []byte
}

func (e Envelope) decode() (decoded, error) {
	var d decoded

	alg, err := ParseAlgorithm(e.Algorithm)
	if err != nil {
		return d, err
	}
	d.alg = alg

	if d.iv, err = decodeField(e.IV); err != nil {
		return d, err
	}
	if len(d.iv) != krypto.NonceSize {
		return d, fmt.Errorf("iv of %d bytes: %w", len(d.iv), krypto.ErrMalformedEnvelope)
	}

	if d.salt, err = decodeField(e.Salt); err != nil {
		return d, err
	}
	switch {
	case alg.PasswordBased() && len(d.salt) != krypto.SaltLengthBytes:
		return d, fmt.Errorf("salt of %d bytes: %w", len(d.salt), krypto.ErrMalformedEnvelope)
	case !alg.PasswordBased() && len(d.salt) != 0:
		return d, fmt.Errorf("unexpected salt: %w", krypto.ErrMalformedEnvelope)
	}

	if d.ciphertext, err = decodeField(e.Ciphertext); err != nil {
		return d, err
	}
	switch {
	case alg.Streamed() && len(d.ciphertext) != 0:
		return d, fmt.Errorf("inline ciphertext in stream envelope: %w", krypto.ErrMalformedEnvelope)
	case !alg.Streamed() && len(d.ciphertext) < krypto.TagSize:
		return d, fmt.Errorf("ciphertext shorter than tag: %w", krypto.ErrMalformedEnvelope)
	}
	return d, nil
}

// decodeField rejects non-canonical base64 so every textual edit reaches the
// decoded bytes.
func decodeField(s string) ([]byte, error) {
	b, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode field: %w", krypto.ErrMalformedEnvelope)
	}
	return b, nil
}

// Validate reports whether the envelope is structurally valid. It does not
// authenticate anything.
func (e Envelope) Validate() error {
	_, err := e.decode()
	return err
}

// ParsedAlgorithm returns the parsed algorithm tag.
func (e Envelope) ParsedAlgorithm() (Algorithm, error) {
	return ParseAlgorithm(e.Algorithm)
}

// IVBytes returns the decoded IV of a structurally valid envelope.
func (e Envelope) IVBytes() ([]byte, error) {
	d, err := e.decode()
	if err != nil {
		return nil, err
	}
	return d.iv, nil
}

// Marshal encodes the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Parse decodes and validates an envelope from JSON. Unknown fields are
// rejected.
func Parse(data []byte) (*Envelope, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var e Envelope
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", krypto.ErrMalformedEnvelope)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
