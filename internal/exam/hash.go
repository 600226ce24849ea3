package exam

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// HashAlgorithm represents supported password hashing algorithms.
type HashAlgorithm string

const (
	AlgorithmSHA256 HashAlgorithm = "sha256"
	AlgorithmBcrypt HashAlgorithm = "bcrypt"
	AlgorithmArgon2 HashAlgorithm = "argon2"
)

// maxBcryptPassword is the input limit bcrypt enforces.
const maxBcryptPassword = 72

// HashPassword hashes an exam password with the configured algorithm.
// sha256 yields the same hex digest for the same input every time.
func HashPassword(plain string, cfg Config) (string, error) {
	switch HashAlgorithm(cfg.HashAlgorithm) {
	case AlgorithmBcrypt:
		return hashBcrypt(plain, cfg.BcryptCost)
	case AlgorithmArgon2:
		return hashArgon2(plain, cfg.argon2Params())
	default:
		return hashSHA256(plain), nil
	}
}

// VerifyPassword checks plain against a stored hash. The algorithm is
// detected from the stored value, so exams created under a previous
// PASSWORD_HASH setting keep verifying.
func VerifyPassword(plain, stored string) bool {
	switch {
	case strings.HasPrefix(stored, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
	case strings.HasPrefix(stored, "$argon2id$"):
		return verifyArgon2(plain, stored)
	default:
		return subtle.ConstantTimeCompare([]byte(hashSHA256(plain)), []byte(stored)) == 1
	}
}

func hashSHA256(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func hashBcrypt(plain string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash failed: %w", err)
	}
	return string(hash), nil
}

// argon2Params are the cost settings embedded in an argon2id hash string.
type argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

const (
	argon2SaltLen = 16
	argon2KeyLen  = 32
	argon2Prefix  = "$argon2id$v=19$"
)

// argon2Params clamps configured costs to what argon2.IDKey accepts.
func (c Config) argon2Params() argon2Params {
	p := argon2Params{Time: c.Argon2Time, Memory: c.Argon2Memory, Threads: c.Argon2Threads}
	if p.Time < 1 {
		p.Time = 1
	}
	if p.Threads < 1 {
		p.Threads = 1
	}
	if floor := 8 * uint32(p.Threads); p.Memory < floor {
		p.Memory = floor
	}
	return p
}

func (p argon2Params) key(plain string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(plain), salt, p.Time, p.Memory, p.Threads, keyLen)
}

// hashArgon2 yields $argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
// with unpadded base64 salt and key.
func hashArgon2(plain string, p argon2Params) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("%sm=%d,t=%d,p=%d$%s$%s", argon2Prefix, p.Memory, p.Time, p.Threads,
		b64.EncodeToString(salt), b64.EncodeToString(p.key(plain, salt, argon2KeyLen))), nil
}

// parseArgon2 splits a stored hash back into its params, salt and key.
func parseArgon2(encoded string) (argon2Params, []byte, []byte, bool) {
	var p argon2Params
	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return p, nil, nil, false
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 3 {
		return p, nil, nil, false
	}
	if _, err := fmt.Sscanf(fields[0], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil || p.Time < 1 || p.Threads < 1 {
		return p, nil, nil, false
	}
	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(fields[1])
	if err != nil {
		return p, nil, nil, false
	}
	key, err := b64.DecodeString(fields[2])
	if err != nil || len(key) == 0 {
		return p, nil, nil, false
	}
	return p, salt, key, true
}

func verifyArgon2(plain, encoded string) bool {
	p, salt, key, ok := parseArgon2(encoded)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare(p.key(plain, salt, uint32(len(key))), key) == 1
}
