package cypher

// Generator produces short, distinct lowercase identifiers for the
// parameters and variables of a single statement: a, b, …, z, aa, ab, ….
//
// A Generator is not safe for concurrent use. Every top-level statement
// should use its own generator (or Reset a shared one before compiling), and
// fragments that end up in the same statement must share one generator.
type Generator struct {
	n uint64 // bijective base-26 value of the next token; 1 == "a"
}

// NewGenerator returns a generator starting at "a".
func NewGenerator() *Generator {
	return &Generator{n: 1}
}

// Next returns the next identifier.
func (g *Generator) Next() string {
	if g.n == 0 {
		g.n = 1
	}
	s := encode(g.n)
	g.n++
	return s
}

// Reset restarts the sequence at seed. A seed that is not a non-empty run of
// lowercase letters restarts the sequence at "a".
func (g *Generator) Reset(seed string) {
	n, ok := decode(seed)
	if !ok {
		n = 1
	}
	g.n = n
}

// Peek returns the identifier the next call to Next will return.
func (g *Generator) Peek() string {
	if g.n == 0 {
		return "a"
	}
	return encode(g.n)
}

func encode(n uint64) string {
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		n--
		i--
		buf[i] = byte('a' + n%26)
		n /= 26
	}
	return string(buf[i:])
}

func decode(s string) (uint64, bool) {
	if s == "" || len(s) > 13 {
		return 0, false
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'a' || c > 'z' {
			return 0, false
		}
		n = n*26 + uint64(c-'a'+1)
	}
	return n, true
}
