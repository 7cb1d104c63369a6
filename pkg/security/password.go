// Package security hashes passwords, checks them against the account policy
// and mints account tokens.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
)

// ErrInvalidHash is returned for stored hashes that are not argon2id PHC strings.
var ErrInvalidHash = errors.New("invalid argon2id hash")

var b64 = base64.RawStdEncoding

// argon describes one argon2id derivation. The same values are encoded in
// the PHC string so old hashes keep verifying after the config changes.
type argon struct {
	memory  uint32
	time    uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

func argonFromConfig(cfg config.PasswordConfig) argon {
	return argon{
		memory:  bounded(cfg.ArgonMemoryKB, 8, 512*1024),
		time:    bounded(cfg.ArgonTime, 1, 10),
		threads: uint8(bounded(cfg.ArgonParallelism, 1, 255)),
		saltLen: bounded(cfg.ArgonSaltLen, 8, 64),
		keyLen:  bounded(cfg.ArgonKeyLen, 16, 64),
	}
}

func (a argon) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, a.time, a.memory, a.threads, a.keyLen)
}

// HashPassword derives an argon2id key with a fresh salt and returns it in
// $argon2id$v=19$m=..,t=..,p=..$salt$key form.
func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	a := argonFromConfig(cfg)
	salt := make([]byte, a.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.memory, a.time, a.threads,
		b64.EncodeToString(salt), b64.EncodeToString(a.derive(password, salt))), nil
}

// VerifyPassword reports whether password produces the key stored in encoded.
func VerifyPassword(password, encoded string) (bool, error) {
	a, salt, key, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(key, a.derive(password, salt)) == 1, nil
}

// NeedsRehash reports whether encoded was produced with weaker or different
// parameters than cfg asks for now.
func NeedsRehash(encoded string, cfg config.PasswordConfig) bool {
	stored, _, _, err := parseHash(encoded)
	if err != nil {
		return true
	}
	return stored != argonFromConfig(cfg)
}

func parseHash(encoded string) (argon, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argon{}, nil, nil, ErrInvalidHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return argon{}, nil, nil, ErrInvalidHash
	}
	var a argon
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &a.memory, &a.time, &a.threads); err != nil {
		return argon{}, nil, nil, ErrInvalidHash
	}
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return argon{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return argon{}, nil, nil, ErrInvalidHash
	}
	a.saltLen, a.keyLen = uint32(len(salt)), uint32(len(key))
	return a, salt, key, nil
}

func bounded(v, lo, hi int) uint32 {
	return uint32(min(max(v, lo), hi))
}
