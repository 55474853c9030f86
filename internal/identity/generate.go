package identity

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand"
	"os"

	"github.com/benbjohnson/clock"
)

const (
	// QuotaPerID is the amount of free storage that earns a backend one
	// additional position in the hash space.
	QuotaPerID uint64 = 100 << 30

	scratchSize = 1024
)

// Count returns how many ids a backend with storageFree bytes receives.
func Count(storageFree uint64) uint64 {
	return storageFree/QuotaPerID + 1
}

// Generator creates a fresh ids file from pseudo-random seeds.
type Generator struct {
	Transform Transform
	Clock     clock.Clock

	// Create opens the target file. Tests replace it to inject write failures.
	Create func(path string) (*Appender, error)
}

// NewGenerator returns a generator using the wall clock and CreateAppender.
func NewGenerator(t Transform) *Generator {
	return &Generator{Transform: t, Clock: clock.New(), Create: CreateAppender}
}

// Generate writes Count(storageFree) ids to path, each appended as soon as it
// is produced. On any failure the file is removed.
func (g *Generator) Generate(path string, storageFree uint64) (int, error) {
	num := Count(storageFree)

	create := g.Create
	if create == nil {
		create = CreateAppender
	}
	a, err := create(path)
	if err != nil {
		return 0, err
	}

	rng := rand.New(rand.NewSource(g.seed(path)))
	buf := make([]byte, scratchSize)

	for i := uint64(0); i < num; i++ {
		binary.LittleEndian.PutUint32(buf, uint32(rng.Int31()))
		if err := a.Append(g.Transform.Transform(buf)); err != nil {
			a.Abort()
			return 0, err
		}
	}

	if err := a.Close(); err != nil {
		return 0, err
	}
	return int(num), nil
}

func (g *Generator) seed(path string) int64 {
	c := g.Clock
	if c == nil {
		c = clock.New()
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return c.Now().UnixNano() + int64(os.Getpid()) + int64(h.Sum64()>>1)
}
