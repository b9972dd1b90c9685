// Package pagerange parses page selections such as "1,3,5-7".
package pagerange

import (
	"sort"
	"strconv"
	"strings"

	"financial_extractor/pkg/core/validate"
)

const field = "pages"

// Parse turns raw into an ascending, de-duplicated page list within [1, maxPage].
// Blank input selects every page. Any invalid token fails the whole parse.
func Parse(raw string, maxPage int) ([]int, error) {
	if maxPage < 1 {
		return nil, validate.New(field, "", validate.ReasonNoPages, "document has no pages")
	}

	if strings.TrimSpace(raw) == "" {
		all := make([]int, maxPage)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}

	seen := make(map[int]bool)
	for _, part := range strings.Split(raw, ",") {
		token := strings.TrimSpace(part)
		if token == "" {
			// tolerate "1,,2" and a trailing comma
			continue
		}

		start, end, err := parseToken(token)
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, validate.New(field, token, validate.ReasonReversed,
				"start page %d is after end page %d", start, end)
		}
		if start < 1 || end > maxPage {
			return nil, validate.New(field, token, validate.ReasonOutOfBounds,
				"pages must be between 1 and %d", maxPage)
		}
		for p := start; p <= end; p++ {
			seen[p] = true
		}
	}

	if len(seen) == 0 {
		return nil, validate.New(field, raw, validate.ReasonNoPages, "no valid pages selected")
	}

	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages, nil
}

func parseToken(token string) (int, int, error) {
	if strings.Count(token, "-") > 1 {
		return 0, 0, malformed(token)
	}
	if before, after, ok := strings.Cut(token, "-"); ok {
		start, err := positive(strings.TrimSpace(before))
		if err != nil {
			return 0, 0, malformed(token)
		}
		end, err := positive(strings.TrimSpace(after))
		if err != nil {
			return 0, 0, malformed(token)
		}
		return start, end, nil
	}
	p, err := positive(token)
	if err != nil {
		return 0, 0, malformed(token)
	}
	return p, p, nil
}

// positive accepts plain decimal digits only (no sign, no spaces inside).
func positive(s string) (int, error) {
	if s == "" {
		return 0, strconv.ErrSyntax
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func malformed(token string) error {
	return validate.New(field, token, validate.ReasonMalformed,
		"expected a page number or a range such as 5-7")
}

// Format renders pages (ascending, unique) in compact form, e.g. "1,3,5-7".
func Format(pages []int) string {
	var b strings.Builder
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(pages[i]))
		if j > i {
			b.WriteByte('-')
			b.WriteString(strconv.Itoa(pages[j]))
		}
		i = j + 1
	}
	return b.String()
}
