package sampler

import (
	"strconv"
	"strings"
)

// Block is one parsed IPv4 CIDR entry. Base is kept as written, not masked,
// so iteration starts at the address the user typed.
type Block struct {
	Base   uint32
	Prefix int
}

// Size returns 2^(32-prefix).
func (b Block) Size() uint64 {
	return uint64(1) << uint(32-b.Prefix)
}

type Options struct {
	// Budget caps the total number of generated addresses and is divided
	// between blocks when sampling.
	Budget int
	// Threshold is the combined block size above which blocks are sampled
	// instead of enumerated.
	Threshold   int
	MinPerBlock int
}

func DefaultOptions() Options {
	return Options{Budget: 50000, Threshold: 50000, MinPerBlock: 10}
}

type Sampler struct {
	opts Options
}

func New(opts Options) *Sampler {
	def := DefaultOptions()
	if opts.Budget <= 0 {
		opts.Budget = def.Budget
	}
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.MinPerBlock <= 0 {
		opts.MinPerBlock = def.MinPerBlock
	}
	return &Sampler{opts: opts}
}

// SplitTokens splits free-form input (commas, spaces, newlines) into tokens.
// Lines starting with '#' are comments.
func SplitTokens(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == '\r'
		})...)
	}
	return out
}

// ParseBlock parses "a.b.c.d/n" or a bare "a.b.c.d" (treated as /32).
func ParseBlock(token string) (Block, bool) {
	token = strings.TrimSpace(token)
	addr, bits, hasPrefix := strings.Cut(token, "/")

	base, ok := ParseAddr(addr)
	if !ok {
		return Block{}, false
	}
	prefix := 32
	if hasPrefix {
		n, err := strconv.Atoi(bits)
		if err != nil || n < 0 || n > 32 {
			return Block{}, false
		}
		prefix = n
	}
	return Block{Base: base, Prefix: prefix}, true
}

// ParseBlocks keeps the valid entries of tokens, in order.
func ParseBlocks(tokens []string) []Block {
	blocks := make([]Block, 0, len(tokens))
	for _, t := range tokens {
		if b, ok := ParseBlock(t); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

// Each feeds generated addresses to fn until the blocks or the budget are
// exhausted, or fn returns false.
func (s *Sampler) Each(tokens []string, fn func(addr string) bool) {
	blocks := ParseBlocks(tokens)
	if len(blocks) == 0 {
		return
	}

	var total uint64
	for _, b := range blocks {
		total += b.Size()
	}

	sampling := total > uint64(s.opts.Threshold)
	perBlock := uint64(s.opts.Budget / len(blocks))
	if perBlock < uint64(s.opts.MinPerBlock) {
		perBlock = uint64(s.opts.MinPerBlock)
	}

	emitted := 0
	for _, b := range blocks {
		size := b.Size()
		step, limit := uint64(1), size
		if sampling {
			if size > perBlock {
				step = size / perBlock
				limit = perBlock
			}
		}

		for i := uint64(0); i < limit; i++ {
			if emitted >= s.opts.Budget {
				return
			}
			addr, ok := Add(b.Base, i*step)
			if !ok {
				break
			}
			emitted++
			if !fn(Format(addr)) {
				return
			}
		}
	}
}

// Sample collects the output of Each.
func (s *Sampler) Sample(tokens []string) []string {
	var out []string
	s.Each(tokens, func(addr string) bool {
		out = append(out, addr)
		return true
	})
	return out
}
