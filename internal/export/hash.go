package export

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/crypto/argon2"
)

var ErrUnsupportedHashType = errors.New("unsupported hash type")

// HashType represents the different hashing algorithms available.
type HashType string

const (
	// HashTypeArgon2id uses the Argon2id algorithm for hashing.
	HashTypeArgon2id HashType = "argon2id"
	// HashTypeSHA256 uses the SHA256 algorithm for hashing.
	HashTypeSHA256 HashType = "sha256"
)

// defaultArgonMemory is the Argon2id memory in MB used when none is configured.
const defaultArgonMemory = 16

// Pseudonymizer maps referrer IDs to salted hashes. The same salt and
// parameters always give the same hash, so separate exports stay joinable.
type Pseudonymizer struct {
	salt       []byte
	hashType   HashType
	iterations uint32
	memory     uint32
}

// NewPseudonymizer validates the hash parameters. Zero iterations means one
// and zero memory means the Argon2id default.
func NewPseudonymizer(salt string, hashType HashType, iterations, memory uint32) (*Pseudonymizer, error) {
	switch hashType {
	case HashTypeSHA256:
	case HashTypeArgon2id:
		if memory == 0 {
			memory = defaultArgonMemory
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedHashType, hashType)
	}

	return &Pseudonymizer{
		salt:       []byte(salt),
		hashType:   hashType,
		iterations: max(iterations, 1),
		memory:     memory,
	}, nil
}

// Hash returns the hex encoded pseudonym of id.
func (p *Pseudonymizer) Hash(id int64) string {
	idBytes := binary.LittleEndian.AppendUint64(nil, uint64(id)) //nolint:gosec // ids are positive

	if p.hashType == HashTypeArgon2id {
		return hex.EncodeToString(argon2.IDKey(idBytes, p.salt, p.iterations, p.memory*1024, 1, 32))
	}

	// Each round hashes the id with the previous digest, starting from the salt
	digest := p.salt
	for range p.iterations {
		h := sha256.New()
		h.Write(idBytes)
		h.Write(digest)
		digest = h.Sum(nil)
	}

	return hex.EncodeToString(digest)
}

// HashAll hashes ids on at most concurrency goroutines and returns the
// pseudonym of every id.
func (p *Pseudonymizer) HashAll(ids []int64, concurrency int) map[int64]string {
	hashes := make([]string, len(ids))

	workers := pool.New().WithMaxGoroutines(max(min(concurrency, len(ids)), 1))
	for i, id := range ids {
		workers.Go(func() {
			hashes[i] = p.Hash(id)
		})
	}
	workers.Wait()

	result := make(map[int64]string, len(ids))
	for i, id := range ids {
		result[id] = hashes[i]
	}

	return result
}
