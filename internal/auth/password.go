package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// Argon2id parameters, OWASP 2025 recommendation.
const (
	argonTime    = 3         // iterations
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1         // parallelism
	argonKeyLen  = 32        // output hash length
	argonSaltLen = 16        // salt length
)

// Supported hashing algorithms.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

// MaxBcryptPasswordBytes is the longest plaintext bcrypt accepts.
const MaxBcryptPasswordBytes = 72

// DefaultHashWorkers bounds concurrent hash computations when no explicit
// limit is configured.
const DefaultHashWorkers = 4

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}

var defaultArgonParams = argonParams{
	time:    argonTime,
	memory:  argonMemory,
	threads: argonThreads,
	keyLen:  argonKeyLen,
}

// HasherConfig selects the algorithm and work factor for new hashes.
type HasherConfig struct {
	Algorithm  string
	BcryptCost int
	Workers    int
}

// Hasher produces and verifies salted password hashes.
//
// Verification understands both argon2id PHC strings and bcrypt hashes
// regardless of which algorithm is configured for new hashes, so stored
// secrets keep working across an algorithm change.
//
// Hash and Verify are CPU-heavy. At most Workers computations run at once;
// further callers wait (honouring ctx) instead of starving the request path.
type Hasher struct {
	algorithm  string
	bcryptCost int
	argon      argonParams
	sem        *semaphore.Weighted
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	h := &Hasher{
		algorithm:  cfg.Algorithm,
		bcryptCost: cfg.BcryptCost,
		argon:      defaultArgonParams,
	}

	if h.algorithm == "" {
		h.algorithm = AlgorithmArgon2id
	}
	switch h.algorithm {
	case AlgorithmArgon2id:
	case AlgorithmBcrypt:
		if h.bcryptCost == 0 {
			h.bcryptCost = bcrypt.DefaultCost
		}
		if h.bcryptCost < bcrypt.MinCost || h.bcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", h.bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", h.algorithm)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultHashWorkers
	}
	h.sem = semaphore.NewWeighted(int64(workers))

	return h, nil
}

// Algorithm returns the algorithm used for new hashes.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// MaxPasswordBytes is the longest plaintext Hash accepts, or 0 when the
// configured algorithm has no limit.
func (h *Hasher) MaxPasswordBytes() int {
	if h.algorithm == AlgorithmBcrypt {
		return MaxBcryptPasswordBytes
	}
	return 0
}

// Hash returns a self-describing salted hash of plaintext.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash worker: %w", err)
	}
	defer h.sem.Release(1)

	if h.algorithm == AlgorithmBcrypt {
		hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.bcryptCost)
		if err != nil {
			return "", fmt.Errorf("hashing password: %w", err)
		}
		return string(hash), nil
	}
	return hashArgon2id(plaintext, h.argon)
}

// Verify checks plaintext against secret in constant time.
//
// A malformed secret verifies as false. The only error is ctx ending while
// waiting for a hash worker.
func (h *Hasher) Verify(ctx context.Context, plaintext, secret string) (bool, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("waiting for hash worker: %w", err)
	}
	defer h.sem.Release(1)

	return VerifyPassword(plaintext, secret), nil
}

// NeedsRehash reports whether secret was produced by a different algorithm
// or weaker parameters than h is configured with.
func (h *Hasher) NeedsRehash(secret string) bool {
	switch h.algorithm {
	case AlgorithmBcrypt:
		if !isBcrypt(secret) {
			return true
		}
		cost, err := bcrypt.Cost([]byte(secret))
		return err != nil || cost < h.bcryptCost
	default:
		_, hash, params, err := decodePHC(secret)
		if err != nil {
			return true
		}
		return params.memory < h.argon.memory ||
			params.time < h.argon.time ||
			params.threads < h.argon.threads ||
			uint32(len(hash)) < h.argon.keyLen //nolint:gosec // G115: hash length always fits uint32
	}
}

// VerifyPassword checks a plaintext password against an argon2id PHC string
// or a bcrypt hash. Malformed or unrecognised hashes return false.
func VerifyPassword(password, encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
	}

	salt, hash, params, err := decodePHC(encodedHash)
	if err != nil {
		return false
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(hash))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1
}

// hashArgon2id returns password hashed with p in PHC string format:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func hashArgon2id(password string, p argonParams) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

var errInvalidPHC = errors.New("invalid PHC hash format")

// Ceilings on parameters read from a stored secret. A secret beyond them is
// treated as malformed instead of being handed to argon2.IDKey.
const (
	maxArgonMemory = 1024 * 1024 // KiB, 1 GiB
	maxArgonTime   = 16
	maxArgonKeyLen = 1024
)

// decodePHC parses an Argon2id PHC string format into its components.
func decodePHC(encoded string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, errInvalidPHC
	}

	if parts[1] != AlgorithmArgon2id {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", err)
	}
	if params.time == 0 || params.threads == 0 ||
		params.time > maxArgonTime || params.memory > maxArgonMemory {
		return nil, nil, params, errInvalidPHC
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}
	if len(hash) == 0 || len(hash) > maxArgonKeyLen {
		return nil, nil, params, errInvalidPHC
	}
	params.keyLen = uint32(len(hash)) //nolint:gosec // G115: hash length always fits uint32

	return salt, hash, params, nil
}
