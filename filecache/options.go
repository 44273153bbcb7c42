package filecache

import "time"

// Option configures a FileCache at construction time.
type Option func(*FileCache) error

// WithBodyCodec installs a Codec that transforms bodies before they
// reach disk and back after they are read (compression, in the common
// case). NoopCodec (the default) stores bodies verbatim.
func WithBodyCodec(codec Codec) Option {
	return func(fc *FileCache) error {
		if codec == nil {
			codec = NoopCodec
		}
		fc.codec = codec
		return nil
	}
}

// WithEncryption layers AES-256-GCM at-rest encryption (via a
// scrypt-derived key) underneath whatever codec is otherwise configured.
// Call after WithBodyCodec if both are used, so encryption wraps
// compression rather than the reverse.
func WithEncryption(passphrase string) Option {
	return func(fc *FileCache) error {
		codec, err := EncryptedCodec(passphrase, fc.codec)
		if err != nil {
			return err
		}
		fc.codec = codec
		return nil
	}
}

// WithClock overrides the time source used for last-accessed/created
// timestamps. Default time.Now; tests substitute a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(fc *FileCache) error {
		fc.now = now
		return nil
	}
}
