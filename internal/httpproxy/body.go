package httpproxy

import (
	"bufio"
	"io"
)

// limitedBufSize bounds each individual read during a limited transfer.
const limitedBufSize = 2000

// limited forwards exactly n bytes from src to dst using a 2 KiB buffer,
// stopping early (without error) on EOF. Internal reads are bounded to
// min(remaining, 2000).
func limited(dst io.Writer, src io.Reader, n int64) error {
	buf := make([]byte, limitedBufSize)
	remaining := n
	for remaining > 0 {
		want := remaining
		if want > limitedBufSize {
			want = limitedBufSize
		}
		r, rerr := src.Read(buf[:want])
		if r > 0 {
			if _, werr := dst.Write(buf[:r]); werr != nil {
				return newErr(ErrLimitedReadWrite, werr)
			}
			remaining -= int64(r)
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil
			}
			return newErr(ErrLimitedReadWrite, rerr)
		}
	}
	return nil
}

// chunked reads a chunked-encoded body from src (via a *bufio.Reader so
// size-lines can be read with readLine) and forwards it to dst unchanged:
// the original size-line is re-emitted verbatim, followed by limited(size+2)
// to carry the chunk data plus its trailing CRLF. Trailer headers following
// the terminal zero-size chunk are read up to the closing blank line and
// dropped, not forwarded.
func chunked(dst io.Writer, src *bufio.Reader) error {
	for {
		sizeLine, err := readLine(src)
		if err != nil {
			return newErr(ErrChunkTransceiver, err)
		}

		size, err := ParseChunkSizeLine(sizeLine)
		if err != nil {
			return newErr(ErrChunkTransceiver, err)
		}

		if size == 0 {
			if _, err := dst.Write([]byte("0\r\n\r\n")); err != nil {
				return newErr(ErrChunkTransceiver, err)
			}
			for {
				trailer, err := readLine(src)
				if err != nil {
					return newErr(ErrChunkTransceiver, err)
				}
				if trailer == "" {
					return nil
				}
			}
		}

		if _, err := io.WriteString(dst, sizeLine+"\r\n"); err != nil {
			return newErr(ErrChunkTransceiver, err)
		}

		if err := limited(dst, src, size+2); err != nil {
			return newErr(ErrChunkTransceiver, err)
		}
	}
}
