package filecache

import "github.com/sandrolain/httpengine"

// cryptoCodec layers AES-256-GCM encryption, via the engine's shared
// scrypt-derived Encryptor, underneath another Codec (or NoopCodec).
type cryptoCodec struct {
	inner     Codec
	encryptor *httpengine.Encryptor
}

// EncryptedCodec wraps inner (NoopCodec if bodies should only be
// encrypted, not also compressed) with AES-256-GCM encryption derived
// from passphrase.
func EncryptedCodec(passphrase string, inner Codec) (Codec, error) {
	enc, err := httpengine.NewEncryptor(passphrase)
	if err != nil {
		return nil, err
	}
	if inner == nil {
		inner = NoopCodec
	}
	return cryptoCodec{inner: inner, encryptor: enc}, nil
}

func (c cryptoCodec) Encode(data []byte) ([]byte, error) {
	encoded, err := c.inner.Encode(data)
	if err != nil {
		return nil, err
	}
	return c.encryptor.Encrypt(encoded)
}

func (c cryptoCodec) Decode(data []byte) ([]byte, error) {
	decrypted, err := c.encryptor.Decrypt(data)
	if err != nil {
		return nil, err
	}
	return c.inner.Decode(decrypted)
}
