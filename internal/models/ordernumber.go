package models

import (
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"time"
)

const orderSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var prefixRX = regexp.MustCompile(`^[A-Z]{2}$`)

// OrderNumberPattern matches every number produced by an
// OrderNumberGenerator.
var OrderNumberPattern = regexp.MustCompile(`^[A-Z]{2}-\d{8}-[A-Z0-9]{6}$`)

// OrderNumberGenerator builds human-readable order numbers of the form
// PREFIX-YYYYMMDD-RRRRRR. It does not guarantee uniqueness; callers rely on
// the orders_order_number_key constraint and retry.
type OrderNumberGenerator struct {
	Prefix string
	Now    func() time.Time
	Rand   io.Reader
}

func NewOrderNumberGenerator(prefix string) (*OrderNumberGenerator, error) {
	if !prefixRX.MatchString(prefix) {
		return nil, fmt.Errorf("order prefix %q must be two uppercase letters", prefix)
	}
	return &OrderNumberGenerator{Prefix: prefix, Now: time.Now, Rand: rand.Reader}, nil
}

func (g *OrderNumberGenerator) Next() (string, error) {
	var buf [6]byte
	if err := randomSuffix(g.Rand, buf[:]); err != nil {
		return "", err
	}
	date := g.Now().Local().Format("20060102")
	return fmt.Sprintf("%s-%s-%s", g.Prefix, date, buf[:]), nil
}

// randomSuffix fills dst with alphabet characters, rejecting bytes that
// would bias the distribution.
func randomSuffix(r io.Reader, dst []byte) error {
	const n = len(orderSuffixAlphabet)
	const limit = 256 - 256%n
	var b [1]byte
	for i := 0; i < len(dst); {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return fmt.Errorf("order number entropy: %w", err)
		}
		if int(b[0]) >= limit {
			continue
		}
		dst[i] = orderSuffixAlphabet[int(b[0])%n]
		i++
	}
	return nil
}
