package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	algorithm = "argon2id"

	minMemoryKiB   uint32 = 8 * 1024
	minIterations  uint32 = 1
	minThreads     uint8  = 1
	minSaltBytes   uint32 = 8
	minDigestBytes uint32 = 16
)

// ErrMalformedHash is returned when an encoded hash cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Params are the argon2id cost parameters. Memory is in KiB.
type Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Hasher produces and verifies argon2id hashes with fixed parameters.
// Safe for concurrent use.
type Hasher struct {
	params Params
}

// NewHasher validates the parameters and returns a Hasher.
func NewHasher(p Params) (*Hasher, error) {
	switch {
	case p.Memory < minMemoryKiB:
		return nil, fmt.Errorf("argon2 memory must be >= %d KiB", minMemoryKiB)
	case p.Iterations < minIterations:
		return nil, errors.New("argon2 iterations must be >= 1")
	case p.Parallelism < minThreads:
		return nil, errors.New("argon2 parallelism must be >= 1")
	case p.SaltLength < minSaltBytes:
		return nil, fmt.Errorf("argon2 salt length must be >= %d bytes", minSaltBytes)
	case p.KeyLength < minDigestBytes:
		return nil, fmt.Errorf("argon2 key length must be >= %d bytes", minDigestBytes)
	}
	return &Hasher{params: p}, nil
}

// Hash derives a key from password with a fresh random salt and returns the
// PHC-encoded string ($argon2id$v=19$m=...,t=...,p=...$salt$hash).
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	digest := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	), nil
}

// Verify reports whether password matches encoded. The comparison is
// constant-time over the derived key. The cost parameters come from the
// encoded hash, so hashes produced under older parameters still verify.
func (h *Hasher) Verify(password, encoded string) (bool, error) {
	p, salt, digest, err := decode(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey(
		[]byte(password),
		salt,
		p.Iterations,
		p.Memory,
		p.Parallelism,
		uint32(len(digest)),
	)

	return subtle.ConstantTimeCompare(computed, digest) == 1, nil
}

// NeedsRehash reports whether encoded was produced under weaker parameters
// than the Hasher's current ones.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	p, _, digest, err := decode(encoded)
	if err != nil {
		return false, err
	}

	weaker := p.Memory < h.params.Memory ||
		p.Iterations < h.params.Iterations ||
		p.Parallelism < h.params.Parallelism ||
		uint32(len(digest)) != h.params.KeyLength
	return weaker, nil
}

func decode(encoded string) (Params, []byte, []byte, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if fields[1] != algorithm {
		return Params{}, nil, nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if version != argon2.Version {
		return Params{}, nil, nil, fmt.Errorf("%w: argon2 version %d", ErrMalformedHash, version)
	}

	var p Params
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return Params{}, nil, nil, ErrMalformedHash
	}
	if p.Memory == 0 || p.Iterations == 0 || p.Parallelism == 0 {
		return Params{}, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil || len(salt) < int(minSaltBytes) {
		return Params{}, nil, nil, ErrMalformedHash
	}
	digest, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil || len(digest) == 0 {
		return Params{}, nil, nil, ErrMalformedHash
	}

	return p, salt, digest, nil
}
