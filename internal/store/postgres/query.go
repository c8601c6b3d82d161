package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/tradedesk/internal/domain"
)

// filter is one "column op" condition and its argument.
type filter struct {
	cond string
	arg  any
}

// buildListQuery appends WHERE conditions, time bounds on timeCol, newest
// first ordering and pagination to base, numbering placeholders from $1.
func buildListQuery(base, timeCol string, where []filter, opts domain.ListOpts) (string, []any) {
	var (
		b     strings.Builder
		args  []any
		conds []string
	)
	next := func(arg any) string {
		args = append(args, arg)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, f := range where {
		conds = append(conds, f.cond+" "+next(f.arg))
	}
	if opts.Since != nil {
		conds = append(conds, timeCol+" >= "+next(*opts.Since))
	}
	if opts.Until != nil {
		conds = append(conds, timeCol+" <= "+next(*opts.Until))
	}

	b.WriteString(base)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY " + timeCol + " DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + next(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + next(opts.Offset))
	}
	return b.String(), args
}
