package httpengine

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
	nonceSize = 12
)

// hashKey converts a cache key to its hex SHA-256 hash. The file cache
// names its body files with it; the tiercache blob backend hashes keys
// the same way on its own, while the other tiercache backends store the
// key with a prefix, unhashed.
func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func initEncryption(passphrase string) (cipher.AEAD, error) {
	salt := sha256.Sum256([]byte("httpengine-cache-salt-v1"))
	key, err := scrypt.Key([]byte(passphrase), salt[:], scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func encrypt(gcm cipher.AEAD, data []byte) ([]byte, error) {
	if gcm == nil {
		return data, nil
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, data, nil), nil
}

func decrypt(gcm cipher.AEAD, data []byte) ([]byte, error) {
	if gcm == nil {
		return data, nil
	}
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// Encryptor performs AES-256-GCM encryption with a scrypt-derived key,
// for callers outside this package (the file cache's at-rest encryption)
// that need the same primitive without re-deriving it.
type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor derives a key from passphrase via scrypt and returns an
// Encryptor ready to seal/open cache bodies.
func NewEncryptor(passphrase string) (*Encryptor, error) {
	if passphrase == "" {
		return nil, newIllegalArgument("encryption passphrase must not be empty", nil)
	}
	gcm, err := initEncryption(passphrase)
	if err != nil {
		return nil, err
	}
	return &Encryptor{gcm: gcm}, nil
}

func (e *Encryptor) Encrypt(data []byte) ([]byte, error) { return encrypt(e.gcm, data) }
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) { return decrypt(e.gcm, data) }

// HashKey exposes the SHA-256 key-hashing convention the file cache uses
// to name body files.
func HashKey(key string) string { return hashKey(key) }

// CRLCheckPolicy controls how a missing or unreachable certificate
// revocation list is handled while building a client TLS context.
type CRLCheckPolicy int

const (
	CRLCheckPolicyNoCheck CRLCheckPolicy = iota
	CRLCheckPolicyCheckSoftFail
	CRLCheckPolicyCheckHardFail
)

// CRLSource fetches revocation data for a host. It is supplied by the
// caller; the TLS provider proper (certificate verification machinery)
// is an out-of-scope collaborator, so this engine only reproduces the
// three named policy behaviours around whatever source is plugged in.
type CRLSource interface {
	FetchCRL(host string) ([]byte, error)
}

// TLSContextConfig mirrors §6's "TLS context" requirements: client-role
// verification with peer verify, either root_ca_dir, root_ca_file, both,
// or neither (system defaults), and a CRL policy.
type TLSContextConfig struct {
	RootCADir  string
	RootCAFile string
	CRLPolicy  CRLCheckPolicy
	CRLSource  CRLSource
	Host       string
}

// BuildTLSConfig constructs the *tls.Config an https Connection uses.
// SSLv2/SSLv3 are structurally excluded: Go's crypto/tls never speaks
// either, so MinVersion is pinned no lower than TLS 1.2 to document the
// intent rather than to work around a protocol the stdlib could pick.
func BuildTLSConfig(cfg TLSContextConfig) (*tls.Config, error) {
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: cfg.Host,
	}

	if cfg.RootCADir != "" || cfg.RootCAFile != "" {
		pool := x509.NewCertPool()
		if cfg.RootCAFile != "" {
			pem, err := os.ReadFile(cfg.RootCAFile)
			if err != nil {
				return nil, newSsl("read root CA file", err)
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, newSsl("parse root CA file", nil)
			}
		}
		if cfg.RootCADir != "" {
			entries, err := os.ReadDir(cfg.RootCADir)
			if err != nil {
				return nil, newSsl("read root CA dir", err)
			}
			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				pem, err := os.ReadFile(filepath.Join(cfg.RootCADir, e.Name()))
				if err != nil {
					continue
				}
				pool.AppendCertsFromPEM(pem)
			}
		}
		tlsCfg.RootCAs = pool
	}

	if cfg.CRLPolicy != CRLCheckPolicyNoCheck && cfg.CRLSource != nil {
		if _, err := cfg.CRLSource.FetchCRL(cfg.Host); err != nil {
			if cfg.CRLPolicy == CRLCheckPolicyCheckHardFail {
				return nil, newSsl("CRL fetch failed", err)
			}
			GetLogger().Warn("CRL check failed, proceeding (soft-fail policy)", "host", cfg.Host, "error", err)
		}
	}

	return tlsCfg, nil
}
