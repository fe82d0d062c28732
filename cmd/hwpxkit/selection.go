package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/hwpxkit/core/errors"
	"github.com/FocuswithJustin/hwpxkit/core/merge"
	"github.com/FocuswithJustin/hwpxkit/internal/validation"
)

// checkPaths rejects empty or control-character paths before any work.
func checkPaths(paths ...string) error {
	for _, p := range paths {
		if err := validation.ValidatePath(p); err != nil {
			return errors.NewValidation("path", fmt.Sprintf("%q: %v", p, err))
		}
	}
	return nil
}

// parseSelection reads a list such as "1,3,5-7" into unit ids. Order is
// kept; an empty string yields nil.
func parseSelection(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := selectionID(lo)
		if err != nil {
			return nil, err
		}
		if !isRange {
			ids = append(ids, first)
			continue
		}
		last, err := selectionID(hi)
		if err != nil {
			return nil, err
		}
		if last < first {
			return nil, errors.NewValidation("select", "range "+part+" is reversed")
		}
		for id := first; id <= last; id++ {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func selectionID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id < 1 {
		return 0, errors.NewValidation("select", "invalid unit id "+strconv.Quote(s))
	}
	return id, nil
}

// parseSource reads a merge source "path" or "path#ids".
func parseSource(s string) (merge.Source, error) {
	path, sel, ok := cutLast(s, "#")
	if !ok {
		return merge.Source{Path: s}, nil
	}
	ids, err := parseSelection(sel)
	if err != nil {
		return merge.Source{}, errors.Wrapf(err, "source %s", path)
	}
	return merge.Source{Path: path, IDs: ids}, nil
}

func cutLast(s, sep string) (before, after string, found bool) {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[:i], s[i+len(sep):], true
	}
	return s, "", false
}
