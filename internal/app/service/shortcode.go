package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/sifan077/PayLink/internal/app/repository"
	metrics "github.com/sifan077/PayLink/internal/infra/prometheus"
)

// ShortCodeAlphabet holds the 62 symbols a short code is drawn from.
const ShortCodeAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	defaultShortCodeLength = 6
	bloomFalsePositiveRate = 0.001
	// maxFilterSkips caps redraws on bloom hits; the database constraint stays authoritative.
	maxFilterSkips = 8
	// maxReservedDraws bounds redraws of reserved words so a broken entropy
	// source cannot spin forever.
	maxReservedDraws = 32
)

// reservedShortCodes are top-level route segments served before /:shortCode.
// Routing is case-insensitive, so entries are compared lower-cased.
var reservedShortCodes = map[string]struct{}{
	"api":     {},
	"health":  {},
	"metrics": {},
}

// IsReservedShortCode reports whether code collides with a fixed route.
func IsReservedShortCode(code string) bool {
	_, ok := reservedShortCodes[strings.ToLower(code)]
	return ok
}

// CodeFilter remembers issued short codes so most collisions are skipped
// before touching the database. A nil *CodeFilter is valid and never matches.
type CodeFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter sizes a bloom filter for capacity codes.
func NewCodeFilter(capacity uint) *CodeFilter {
	if capacity == 0 {
		capacity = 1_000_000
	}
	return &CodeFilter{filter: bloom.NewWithEstimates(capacity, bloomFalsePositiveRate)}
}

// Add records code as issued.
func (f *CodeFilter) Add(code string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.filter.AddString(code)
	f.mu.Unlock()
}

// MayContain reports whether code might already be issued.
func (f *CodeFilter) MayContain(code string) bool {
	if f == nil {
		return false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(code)
}

// Seed loads every stored code into the filter and returns how many were added.
func (f *CodeFilter) Seed(ctx context.Context, urls repository.URLRepository) (int, error) {
	if f == nil {
		return 0, nil
	}
	n := 0
	err := urls.EachCode(ctx, func(code string) {
		f.Add(code)
		n++
	})
	if err != nil {
		return n, fmt.Errorf("seed code filter: %w", err)
	}
	return n, nil
}

// ShortCodeGenerator draws uniformly random codes over ShortCodeAlphabet.
type ShortCodeGenerator struct {
	length int
	filter *CodeFilter
	rand   io.Reader
}

// NewShortCodeGenerator returns a generator of length-symbol codes. filter may be nil.
func NewShortCodeGenerator(length int, filter *CodeFilter) *ShortCodeGenerator {
	if length <= 0 {
		length = defaultShortCodeLength
	}
	return &ShortCodeGenerator{length: length, filter: filter, rand: rand.Reader}
}

// Next returns a fresh candidate code, preferring ones the filter has not seen.
func (g *ShortCodeGenerator) Next() (string, error) {
	var code string
	reserved := 0
	for i := 0; i <= maxFilterSkips; i++ {
		var err error
		code, err = g.draw()
		if err != nil {
			return "", err
		}
		if IsReservedShortCode(code) {
			if reserved++; reserved > maxReservedDraws {
				return "", fmt.Errorf("generate short code: only reserved codes drawn")
			}
			i--
			continue
		}
		if !g.filter.MayContain(code) {
			return code, nil
		}
		metrics.ShortCodeCollisions.WithLabelValues("bloom").Inc()
	}
	return code, nil
}

// Taken marks code as issued.
func (g *ShortCodeGenerator) Taken(code string) {
	g.filter.Add(code)
}

func (g *ShortCodeGenerator) draw() (string, error) {
	max := big.NewInt(int64(len(ShortCodeAlphabet)))
	buf := make([]byte, g.length)
	for i := range buf {
		n, err := rand.Int(g.rand, max)
		if err != nil {
			return "", fmt.Errorf("generate short code: %w", err)
		}
		buf[i] = ShortCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
