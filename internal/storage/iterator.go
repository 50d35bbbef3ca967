package storage

import (
	"database/sql"

	"github.com/roman-kulish/signal-analysis/internal/spectrum"
)

// FrameIterator provides streaming iteration over a session's stored
// frames in time order, decoding power blobs lazily so large sessions
// never have to fit in memory at once.
type FrameIterator struct {
	rows    *sql.Rows
	current spectrum.Frame
	err     error
}

// Next advances to the next frame. It returns false at the end of the
// result set or on error; check Err afterwards.
func (it *FrameIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		if it.err == nil {
			it.err = it.rows.Err()
		}
		return false
	}

	var power []byte
	if err := it.rows.Scan(&it.current.Time, &it.current.SampleOffset, &it.current.BinWidth, &power); err != nil {
		it.err = err
		return false
	}
	it.current.Power = decodePower(power)
	return true
}

// Frame returns the current frame. The returned value is overwritten by
// the next call to Next.
func (it *FrameIterator) Frame() *spectrum.Frame { return &it.current }

// Err returns the first error encountered during iteration.
func (it *FrameIterator) Err() error { return it.err }

// Close releases the underlying result set.
func (it *FrameIterator) Close() error { return it.rows.Close() }
