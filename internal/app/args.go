package app

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"unicode"
)

var errUnterminatedQuote = errors.New("unterminated quote")

// parseQuotedArgs splits a command tail into arguments, honoring single
// and double quotes so titles may contain spaces.
func parseQuotedArgs(s string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		open  bool
	)
	flush := func() {
		if cur.Len() > 0 {
			args = append(args, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case open:
			if r == quote {
				open = false
				args = append(args, cur.String())
				cur.Reset()
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			flush()
			open = true
			quote = r
		case unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if open {
		return nil, errUnterminatedQuote
	}
	flush()
	return args, nil
}

// randToken returns a URL-safe random token for the OAuth state handshake.
func randToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
