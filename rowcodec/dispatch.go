package rowcodec

import (
	"fmt"

	"github.com/bcsv-io/bcsv/errs"
	"github.com/bcsv-io/bcsv/layout"
)

// Format identifies which row wire codec a file uses.
type Format uint8

const (
	// FormatFlat selects Flat001: every row carries its complete value set.
	FormatFlat Format = iota
	// FormatZoH selects ZoH001: rows carry only the columns that changed.
	FormatZoH
)

func (f Format) String() string {
	switch f {
	case FormatFlat:
		return "flat"
	case FormatZoH:
		return "zoh"
	default:
		return "unknown"
	}
}

// New builds the row codec named by f for l. The Writer or Reader holds the
// returned Codec for its lifetime and calls Reset() at each packet boundary.
func New(f Format, l *layout.Layout) (Codec, error) {
	switch f {
	case FormatFlat:
		return NewFlat001(l), nil
	case FormatZoH:
		return NewZoH001(l), nil
	default:
		return nil, fmt.Errorf("%w: unknown row format %d", errs.ErrSchema, f)
	}
}
