// Package bufioutil - Gepufferte Reader mit Seek-Unterstuetzung
package bufioutil

import (
	"bufio"
	"io"
)

// BufferedSeeker kombiniert einen bufio.Reader mit Seek-Faehigkeit.
// Seek verwirft den Puffer und positioniert den darunterliegenden Reader.
type BufferedSeeker struct {
	rs io.ReadSeeker
	br *bufio.Reader
}

// NewBufferedSeeker erstellt einen BufferedSeeker mit gegebener Puffergroesse
func NewBufferedSeeker(rs io.ReadSeeker, size int) *BufferedSeeker {
	return &BufferedSeeker{
		rs: rs,
		br: bufio.NewReaderSize(rs, size),
	}
}

// Read liest aus dem Puffer
func (b *BufferedSeeker) Read(p []byte) (int, error) {
	return b.br.Read(p)
}

// Seek positioniert den Reader. Relative Seeks beruecksichtigen die
// bereits gepufferten, noch nicht gelesenen Bytes.
func (b *BufferedSeeker) Seek(offset int64, whence int) (int64, error) {
	if whence == io.SeekCurrent {
		offset -= int64(b.br.Buffered())
	}
	n, err := b.rs.Seek(offset, whence)
	if err != nil {
		return 0, err
	}
	b.br.Reset(b.rs)
	return n, nil
}
