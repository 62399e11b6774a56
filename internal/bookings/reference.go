package bookings

import (
	"crypto/rand"
	"io"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	referencePrefix     = "BK"
	referenceRandomSize = 6
	base36Digits        = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// ReferenceGenerator produces human-presentable booking references.
type ReferenceGenerator interface {
	NewReference() (string, error)
}

type timeRandomReferences struct {
	now    func() time.Time
	random io.Reader
}

// NewReferenceGenerator returns the default BK-<millis base36>-<random>
// generator backed by crypto/rand.
func NewReferenceGenerator() ReferenceGenerator {
	return &timeRandomReferences{now: time.Now, random: rand.Reader}
}

func (g *timeRandomReferences) NewReference() (string, error) {
	stamp := strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))

	max := big.NewInt(int64(len(base36Digits)))
	var suffix strings.Builder
	suffix.Grow(referenceRandomSize)
	for i := 0; i < referenceRandomSize; i++ {
		n, err := rand.Int(g.random, max)
		if err != nil {
			return "", err
		}
		suffix.WriteByte(base36Digits[n.Int64()])
	}

	return referencePrefix + "-" + stamp + "-" + suffix.String(), nil
}

// IsReference reports whether s has the shape of a booking reference.
func IsReference(s string) bool {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != referencePrefix || parts[1] == "" || len(parts[2]) != referenceRandomSize {
		return false
	}
	for _, r := range parts[1] + parts[2] {
		if !strings.ContainsRune(base36Digits, r) {
			return false
		}
	}
	return true
}
