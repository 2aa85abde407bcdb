package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"

	// Upper bounds on parameters read back from stored hashes.
	maxMemoryKB    uint32 = 1024 * 1024
	maxTimeCost    uint32 = 16
	maxParallelism uint8  = 64
	maxSaltLength  uint32 = 64
	maxKeyLength   uint32 = 128

	// A stored hash may cost at most this many times the configured memory.
	maxMemoryFactor = 4
)

// ErrMalformedHash is returned by the parser for any encoded hash it cannot read.
var ErrMalformedHash = errors.New("malformed password hash")

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32 `yaml:"memory" env:"MEMORY_KB"`
	Time        uint32 `yaml:"time" env:"ITERATIONS"`
	Parallelism uint8  `yaml:"parallelism" env:"PARALLELISM"`
	SaltLength  uint32 `yaml:"salt_length" env:"SALT_LENGTH"`
	KeyLength   uint32 `yaml:"key_length" env:"KEY_LENGTH"`
}

// DefaultConfig returns the medical-grade parameters: 64 MiB, 3 passes,
// 4 lanes, 16-byte salt, 32-byte key.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 is an immutable Argon2id hasher. It is safe for concurrent use.
type Argon2 struct {
	config Config
}

type parsedPHC struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

// NewArgon2 validates cfg and returns a hasher bound to it.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// Config returns the cost parameters the hasher was built with.
func (a *Argon2) Config() Config {
	return a.config
}

// Hash derives an Argon2id digest of password under a fresh random salt.
// Two calls with the same password never return the same string.
func (a *Argon2) Hash(password string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey(
		[]byte(password),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encodedHash. A malformed or
// unsupported hash string verifies as false.
func (a *Argon2) Verify(password string, encodedHash string) bool {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false
	}
	if uint64(parsed.memory) > maxMemoryFactor*uint64(a.config.Memory) {
		return false
	}

	computed := argon2.IDKey(
		[]byte(password),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.hash)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1
}

// NeedsUpgrade reports whether encodedHash was produced with weaker
// parameters than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(encodedHash string) (bool, error) {
	parsed, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}

	switch {
	case a.config.Memory > parsed.memory,
		a.config.Time > parsed.time,
		a.config.Parallelism > parsed.parallelism,
		a.config.KeyLength != uint32(len(parsed.hash)):
		return true, nil
	}

	return false, nil
}

// Validate rejects parameters below the supported floor.
func (c Config) Validate() error {
	switch {
	case c.Memory < minMemoryKB:
		return fmt.Errorf("password memory must be >= %d KiB", minMemoryKB)
	case c.Time < minTimeCost:
		return errors.New("password time must be >= 1")
	case c.Parallelism < minParallelism:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < minSaltLength:
		return fmt.Errorf("password salt length must be >= %d", minSaltLength)
	case c.KeyLength < minKeyLength:
		return fmt.Errorf("password key length must be >= %d", minKeyLength)
	case c.Memory > maxMemoryKB:
		return fmt.Errorf("password memory must be <= %d KiB", maxMemoryKB)
	case c.Time > maxTimeCost:
		return fmt.Errorf("password time must be <= %d", maxTimeCost)
	case c.Parallelism > maxParallelism:
		return fmt.Errorf("password parallelism must be <= %d", maxParallelism)
	case c.SaltLength > maxSaltLength:
		return fmt.Errorf("password salt length must be <= %d", maxSaltLength)
	case c.KeyLength > maxKeyLength:
		return fmt.Errorf("password key length must be <= %d", maxKeyLength)
	}

	return nil
}

func parsePHC(encodedHash string) (*parsedPHC, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, fmt.Errorf("%w: expected 6 segments", ErrMalformedHash)
	}

	if parts[1] != algorithmID {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[1])
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, fmt.Errorf("%w: bad version segment", ErrMalformedHash)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrMalformedHash, version)
	}

	parsed := &parsedPHC{}
	if err := parseParams(parts[3], parsed); err != nil {
		return nil, err
	}

	parsed.salt, err = decodeSegment(parts[4])
	if err != nil || len(parsed.salt) < int(minSaltLength) || len(parsed.salt) > int(maxSaltLength) {
		return nil, fmt.Errorf("%w: bad salt", ErrMalformedHash)
	}

	parsed.hash, err = decodeSegment(parts[5])
	if err != nil || len(parsed.hash) < int(minKeyLength) || len(parsed.hash) > int(maxKeyLength) {
		return nil, fmt.Errorf("%w: bad digest", ErrMalformedHash)
	}

	return parsed, nil
}

// decodeSegment accepts padded base64 too, for hashes written by other tooling.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

func parseParams(segment string, out *parsedPHC) error {
	pairs := strings.Split(segment, ",")
	if len(pairs) != 3 {
		return fmt.Errorf("%w: expected m,t,p parameters", ErrMalformedHash)
	}

	var seen int
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%w: bad parameter %q", ErrMalformedHash, pair)
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minMemoryKB) || v > uint64(maxMemoryKB) {
				return fmt.Errorf("%w: bad memory parameter", ErrMalformedHash)
			}
			out.memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || v < uint64(minTimeCost) || v > uint64(maxTimeCost) {
				return fmt.Errorf("%w: bad time parameter", ErrMalformedHash)
			}
			out.time = uint32(v)
		case "p":
			v, err := strconv.ParseUint(raw, 10, 8)
			if err != nil || v < uint64(minParallelism) || v > uint64(maxParallelism) {
				return fmt.Errorf("%w: bad parallelism parameter", ErrMalformedHash)
			}
			out.parallelism = uint8(v)
		default:
			return fmt.Errorf("%w: unknown parameter %q", ErrMalformedHash, key)
		}
		seen++
	}

	if out.memory == 0 || out.time == 0 || out.parallelism == 0 || seen != 3 {
		return fmt.Errorf("%w: missing parameters", ErrMalformedHash)
	}

	return nil
}
