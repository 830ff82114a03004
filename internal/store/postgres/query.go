package postgres

import (
	"fmt"
	"strings"

	"github.com/HaloHealthAfrica/Tradeclarity-sub002/internal/domain"
)

// listQuery appends the time range, ordering and paging of opts to a base
// SELECT whose existing placeholders are args.
func listQuery(base string, args []any, timeCol string, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(base)

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		b.WriteString(" AND " + timeCol + " >= " + next(*opts.Since))
	}
	if opts.Until != nil {
		b.WriteString(" AND " + timeCol + " <= " + next(*opts.Until))
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
