package secret

import "strings"

// EncryptedString is a credential in plaintext form. Convert it with
// FromStored when reading a row and ToStored when writing one.
type EncryptedString struct {
	value string
	set   bool
}

func NewEncryptedString(plain string) EncryptedString {
	return EncryptedString{value: plain, set: plain != ""}
}

func (e EncryptedString) Plain() string { return e.value }
func (e EncryptedString) IsSet() bool   { return e.set }

// Ptr returns nil for an unset value, for JSON output.
func (e EncryptedString) Ptr() *string {
	if !e.set {
		return nil
	}
	v := e.value
	return &v
}

// FromStored decodes a column value. Legacy plaintext (no Prefix) passes
// through unchanged; a corrupted ciphertext is an error, never an empty credential.
func FromStored(c *Cipher, stored *string) (EncryptedString, error) {
	if stored == nil || *stored == "" {
		return EncryptedString{}, nil
	}
	if !strings.HasPrefix(*stored, Prefix) {
		return NewEncryptedString(*stored), nil
	}
	if c == nil {
		return EncryptedString{}, ErrNoSecret
	}
	plain, err := c.Decrypt(strings.TrimPrefix(*stored, Prefix))
	if err != nil {
		return EncryptedString{}, err
	}
	return NewEncryptedString(plain), nil
}

// IsStored reports whether v is in stored (ciphertext) form.
func IsStored(v string) bool { return strings.HasPrefix(v, Prefix) }

// ToStored encodes the value for a column. A value that already carries
// Prefix is written as is so it is never encrypted twice; callers must
// reject such values when they come from outside the store.
func (e EncryptedString) ToStored(c *Cipher) (*string, error) {
	if !e.set {
		return nil, nil
	}
	if IsStored(e.value) {
		v := e.value
		return &v, nil
	}
	if c == nil {
		return nil, ErrNoSecret
	}
	blob, err := c.Encrypt(e.value)
	if err != nil {
		return nil, err
	}
	out := Prefix + blob
	return &out, nil
}
