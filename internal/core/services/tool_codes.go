package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ToolCodePrefix starts every generated tool code
const ToolCodePrefix = "TL-"

type codeLister interface {
	CodesWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// ToolCodeAllocator hands out sequential codes TL-0001, TL-0002, ... after
// the highest one already stored. It is not safe for concurrent use; the
// unique index on tools.code rejects a race.
type ToolCodeAllocator struct {
	last int
}

// NewToolCodeAllocator scans stored codes for the current maximum
func NewToolCodeAllocator(ctx context.Context, tools codeLister) (*ToolCodeAllocator, error) {
	codes, err := tools.CodesWithPrefix(ctx, ToolCodePrefix)
	if err != nil {
		return nil, err
	}

	a := &ToolCodeAllocator{}
	for _, c := range codes {
		n, err := strconv.Atoi(strings.TrimPrefix(c, ToolCodePrefix))
		if err == nil && n > a.last {
			a.last = n
		}
	}
	return a, nil
}

// Next returns the next free code
func (a *ToolCodeAllocator) Next() string {
	a.last++
	return fmt.Sprintf("%s%04d", ToolCodePrefix, a.last)
}
