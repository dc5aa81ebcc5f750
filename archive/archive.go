// Package archive moves records between stores as a compressed JSON-lines
// stream (zstd by default, LZ4 or plain on request).
//
// Each line holds one record:
//
//	{"key":"tenf-follow-validations/2024-06/alice.json","record":{...},"crc32c":"4waSgw=="}
//
// Lines are written in key order. The crc32c field is the CRC32-Castagnoli
// checksum (base64, big-endian) of the record bytes as they appear on the
// line. It is optional on import.
//
// Typical use is migrating a local tree into a managed backend:
//
//	n, err := archive.Export(ctx, localStore, tenf.CollectionPrefix(tenf.FollowValidations), f)
//	n, err = archive.Import(ctx, s3Store, f, archive.WithRateLimit(50))
package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	tenf "github.com/Redshadow31/tenf-v2-sub007"
	"github.com/Redshadow31/tenf-v2-sub007/codec"
	"github.com/Redshadow31/tenf-v2-sub007/internal/hash"
)

// ErrChecksum is wrapped by the DeserializationError returned when a line's
// crc32c does not match its record.
var ErrChecksum = errors.New("archive: checksum mismatch")

// maxLineSize bounds a single line (one record) on import.
const maxLineSize = 16 << 20

// line is the wire form of one record.
type line struct {
	Key    string          `json:"key"`
	Record json.RawMessage `json:"record"`
	CRC32C string          `json:"crc32c,omitempty"`
}

// Export writes every record whose key starts with prefix to w and returns
// the number of records written.
//
// Records are read with bounded concurrency but emitted in key order. A
// record deleted between listing and reading is skipped.
func Export(ctx context.Context, store *tenf.Store, prefix string, w io.Writer, optFns ...Option) (int, error) {
	o := applyOptions(optFns)

	keys, err := store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}

	enc, err := o.compression.newWriter(w, o.level)
	if err != nil {
		return 0, fmt.Errorf("archive: %s writer: %w", o.compression, err)
	}

	limiter := o.limiter()
	window := o.concurrency * 16
	written := 0

	for start := 0; start < len(keys); start += window {
		batch := keys[start:min(start+window, len(keys))]
		lines := make([][]byte, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.concurrency)

		for i, key := range batch {
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				rec, err := store.Read(gctx, key)
				if err != nil {
					if tenf.IsNotFound(err) {
						return nil
					}
					return err
				}
				data, err := encodeLine(key, rec)
				if err != nil {
					return err
				}
				lines[i] = data
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			_ = enc.Close()
			return written, err
		}

		for _, data := range lines {
			if data == nil {
				continue
			}
			if _, err := enc.Write(data); err != nil {
				_ = enc.Close()
				return written, fmt.Errorf("archive: write: %w", err)
			}
			written++
		}
	}

	if err := enc.Close(); err != nil {
		return written, fmt.Errorf("archive: flush: %w", err)
	}
	return written, nil
}

func encodeLine(key string, rec tenf.Record) ([]byte, error) {
	raw, err := rec.MarshalJSON()
	if err != nil {
		return nil, &tenf.DeserializationError{Op: "export", Key: key, Err: err}
	}
	data, err := codec.Default.Marshal(line{
		Key:    key,
		Record: raw,
		CRC32C: hash.CRC32CBase64(raw),
	})
	if err != nil {
		return nil, &tenf.DeserializationError{Op: "export", Key: key, Err: err}
	}
	return append(data, '\n'), nil
}

// Import reads a stream produced by Export and writes every record to store,
// replacing existing records unless WithSkipExisting is set. It returns the
// number of records written. The compression is detected from the stream.
//
// A line that is not valid JSON, carries an invalid key or fails its
// checksum aborts the import with a DeserializationError (or
// InvalidKeyError); records already written stay written.
func Import(ctx context.Context, store *tenf.Store, r io.Reader, optFns ...Option) (int, error) {
	o := applyOptions(optFns)

	dec, closeDec, err := newReader(r)
	if err != nil {
		return 0, fmt.Errorf("archive: open stream: %w", err)
	}
	defer closeDec()

	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)

	limiter := o.limiter()
	var written atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		l, err := decodeLine(raw, lineNo)
		if err != nil {
			_ = g.Wait()
			return int(written.Load()), err
		}

		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			if o.skipExisting {
				ok, err := store.Exists(gctx, l.Key)
				if err != nil {
					return err
				}
				if ok {
					return nil
				}
			}
			if err := store.Write(gctx, l.Key, l.Record); err != nil {
				return err
			}
			written.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(written.Load()), err
	}
	if err := ctx.Err(); err != nil {
		return int(written.Load()), err
	}
	if err := scanner.Err(); err != nil {
		return int(written.Load()), fmt.Errorf("archive: read line %d: %w", lineNo+1, err)
	}
	return int(written.Load()), nil
}

func decodeLine(raw []byte, lineNo int) (line, error) {
	where := fmt.Sprintf("line %d", lineNo)

	var l line
	if err := codec.Default.Unmarshal(raw, &l); err != nil {
		return line{}, &tenf.DeserializationError{Op: "import", Key: where, Err: err}
	}
	if err := tenf.ValidateKey(l.Key); err != nil {
		return line{}, err
	}
	if len(l.Record) == 0 {
		return line{}, &tenf.DeserializationError{Op: "import", Key: l.Key, Err: errors.New("missing record")}
	}
	if l.CRC32C != "" && l.CRC32C != hash.CRC32CBase64(l.Record) {
		return line{}, &tenf.DeserializationError{Op: "import", Key: l.Key, Err: ErrChecksum}
	}
	// Copy out of the scanner buffer, which is reused by the next Scan.
	l.Record = append(json.RawMessage(nil), l.Record...)
	return l, nil
}

// Option configures Export and Import.
type Option func(*options)

type options struct {
	concurrency  int
	perSecond    float64
	compression  Compression
	level        zstd.EncoderLevel
	skipExisting bool
}

// WithConcurrency bounds the number of records read or written at once.
// Default: 8.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithRateLimit caps backend operations per second. Zero or less means no
// limit. Useful against managed services that throttle (S3 SlowDown,
// DynamoDB provisioned capacity).
func WithRateLimit(perSecond float64) Option {
	return func(o *options) {
		o.perSecond = perSecond
	}
}

// WithLevel sets the zstd compression level used by Export.
func WithLevel(level zstd.EncoderLevel) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithCompression sets the stream format written by Export.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithSkipExisting makes Import leave records that already exist untouched.
func WithSkipExisting() Option {
	return func(o *options) {
		o.skipExisting = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		concurrency: 8,
		compression: CompressionZstd,
		level:       zstd.SpeedDefault,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o options) limiter() *rate.Limiter {
	if o.perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := max(1, int(o.perSecond))
	return rate.NewLimiter(rate.Limit(o.perSecond), burst)
}
