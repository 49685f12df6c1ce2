package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
)

// ProgressFunc receives the number of bytes written so far.
type ProgressFunc func(written int64)

/**************************************************************************************************
** Store is a blob store. Put writes one object and returns its public URL. progress may be nil;
** when set it is called with the cumulative byte count as the body is consumed.
**************************************************************************************************/
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, progress ProgressFunc) (string, error)
}

/**************************************************************************************************
** ObjectKey builds the storage key of a vehicle image:
** vehicle-images/<vehicleID>/<category>/<ulid><ext>. ULIDs sort by creation time, so a listing
** of a vehicle's prefix comes back in upload order.
**************************************************************************************************/
func ObjectKey(vehicleID, category, fileName string) string {
	if category == "" {
		category = "general"
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join("vehicle-images", vehicleID, category, ulid.Make().String()+ext)
}

// ContentType returns the declared media type, else the type registered for the extension.
func ContentType(declared, fileName string) string {
	if declared != "" {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

/**************************************************************************************************
** progressReader counts bytes read through it and reports the running total.
**************************************************************************************************/
type progressReader struct {
	r        io.Reader
	read     int64
	progress ProgressFunc
}

func newProgressReader(r io.Reader, progress ProgressFunc) io.Reader {
	if progress == nil {
		return r
	}
	if rs, ok := r.(io.ReadSeeker); ok {
		return &progressReadSeeker{progressReader: progressReader{r: rs, progress: progress}, seeker: rs}
	}
	return &progressReader{r: r, progress: progress}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.read += int64(n)
		p.progress(p.read)
	}
	return n, err
}

// progressReadSeeker keeps the body seekable so SDKs can rewind it for signing or retries.
type progressReadSeeker struct {
	progressReader
	seeker io.Seeker
}

func (p *progressReadSeeker) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.seeker.Seek(offset, whence)
	if err == nil {
		p.read = pos
	}
	return pos, err
}

func errPut(backend, key string, err error) error {
	return fmt.Errorf("error uploading %s to %s: %w", key, backend, err)
}
