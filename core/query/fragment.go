package query

import (
	"fmt"
	"strings"
)

// FragmentError reports a raw SQL fragment that contained a denylisted token.
// It is a construction-time rejection: the query is never built and no
// backend call is made.
type FragmentError struct {
	Fragment string
	Token    string
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("illegal SQL fragment: token %q is not permitted", e.Token)
}

// illegalSymbolTokens are matched as raw substrings anywhere in a fragment.
var illegalSymbolTokens = []string{
	"--",
	";",
	"/*",
	"*/",
	"@@",
}

// illegalWordTokens are matched on word boundaries, case-insensitively. The
// set covers statement keywords, DDL/DML verbs and system catalog names that
// have no business inside a select list, FROM clause or WHERE fragment.
var illegalWordTokens = map[string]struct{}{
	"alter":      {},
	"begin":      {},
	"cast":       {},
	"char":       {},
	"create":     {},
	"cursor":     {},
	"declare":    {},
	"delete":     {},
	"drop":       {},
	"end":        {},
	"exec":       {},
	"execute":    {},
	"fetch":      {},
	"insert":     {},
	"kill":       {},
	"nchar":      {},
	"nvarchar":   {},
	"open":       {},
	"select":     {},
	"sys":        {},
	"syscolumns": {},
	"sysobjects": {},
	"table":      {},
	"truncate":   {},
	"union":      {},
	"update":     {},
	"varchar":    {},
}

// VerifyFragment scans a raw SQL fragment against the denylist before the
// fragment is spliced verbatim into a query. A match rejects the whole
// request. This check is defense-in-depth, not an escape mechanism: fragments
// that pass are still substituted directly with no further interpretation, so
// raw fragments must only ever be enabled for trusted callers.
func VerifyFragment(fragment string) error {
	lower := strings.ToLower(fragment)

	for _, token := range illegalSymbolTokens {
		if strings.Contains(lower, token) {
			return &FragmentError{Fragment: fragment, Token: token}
		}
	}

	for _, word := range splitWords(lower) {
		if _, bad := illegalWordTokens[word]; bad {
			return &FragmentError{Fragment: fragment, Token: word}
		}
	}
	return nil
}

// splitWords breaks a fragment into identifier-shaped tokens so that keyword
// checks respect word boundaries ("updated_at" must not trip on "update").
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return false
		}
		return true
	})
}
