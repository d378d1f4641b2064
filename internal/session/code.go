package session

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"

	"github.com/foxseedlab/planning-poker/internal/apperr"
)

const (
	codeLength = 6
	codeMin    = 100000
	codeSpan   = 900000
)

var codeSpanBig = big.NewInt(codeSpan)

// generateCode samples a join code uniformly from 100000..999999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpanBig)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// normalizeCode accepts exactly six ASCII digits after trimming.
func normalizeCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if len(code) != codeLength {
		return "", apperr.Invalid("join code must be %d digits", codeLength)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", apperr.Invalid("join code must be %d digits", codeLength)
		}
	}
	return code, nil
}
