package adapter

import "strings"

// rebindPostgres rewrites a canonical "?"-placeholder query into
// Postgres's "$1, $2, ..." positional form. This is the same technique
// jmoiron/sqlx calls Rebind; sqlx is not among the pack's dependencies,
// so the minimal version lives here rather than pulling in a library
// whose only use would be this one function.
func rebindPostgres(query string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 8)
	n := 0
	inSingleQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inSingleQuote = !inSingleQuote
			sb.WriteByte(c)
		case c == '?' && !inSingleQuote:
			n++
			sb.WriteByte('$')
			sb.WriteString(itoa(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
