package filecrypt

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/Hussein-Mazeh/cipherbox/envelope"
	"github.com/Hussein-Mazeh/cipherbox/internal/logging"
	"github.com/Hussein-Mazeh/cipherbox/krypto"
)

// DefaultChunkSize is the plaintext chunk size used when none is configured.
const DefaultChunkSize = 64 << 10

// ProgressFunc receives the completed fraction in [0, 1].
type ProgressFunc func(fraction float64)

// Processor encrypts and decrypts chunked blobs.
type Processor struct {
	// ChunkSize is the plaintext chunk size used for encryption. Decryption
	// always uses the chunk size recorded in the envelope.
	ChunkSize int
	// Workers bounds how many chunks are sealed or opened at once.
	Workers int
	Cipher  envelope.Cipher
	Logger  logging.Logger
}

// New returns a processor with the default chunk size and a single worker.
func New(c envelope.Cipher) *Processor {
	return &Processor{ChunkSize: DefaultChunkSize, Workers: 1, Cipher: c, Logger: logging.Discard()}
}

func (p *Processor) workers() int {
	if p.Workers < 1 {
		return 1
	}
	return p.Workers
}

type chunk struct {
	index uint64
	final bool
	in    []byte
	out   []byte
}

// chunkAAD binds a chunk to the algorithm tag, its position and whether it
// closes the stream.
func chunkAAD(tag string, index uint64, final bool) []byte {
	aad := make([]byte, 0, len(tag)+9)
	aad = append(aad, tag...)
	aad = binary.BigEndian.AppendUint64(aad, index)
	if final {
		return append(aad, 1)
	}
	return append(aad, 0)
}

// Encrypt reads size bytes of plaintext from r and writes the sealed blob to
// w. On error w may hold a partial blob, which the caller must discard.
func (p *Processor) Encrypt(ctx context.Context, r io.Reader, size int64, w io.Writer, password []byte, progress ProgressFunc) (*envelope.Envelope, error) {
	chunkSize := p.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	pk, err := p.Cipher.NewPasswordKey(password, chunkSize)
	if err != nil {
		return nil, err
	}
	defer pk.Wipe()

	aead, err := krypto.NewAEAD(pk.Key)
	if err != nil {
		return nil, err
	}
	baseIV, err := krypto.RandomBytes(krypto.NonceSize)
	if err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	tag := pk.Algorithm.String()

	p.Logger.Debugf("encrypting %d bytes with %s", size, tag)
	err = p.run(ctx, r, chunkSize, w, size, progress, func(c *chunk) error {
		nonce := krypto.ChunkNonce(baseIV, c.index)
		c.out = aead.Seal(nil, nonce, c.in, chunkAAD(tag, c.index, c.final))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return envelope.StreamEnvelope(pk, baseIV), nil
}

// Decrypt reads a sealed blob of size bytes from r and writes the plaintext
// to w. Chunks are written only after they authenticate, but a later chunk
// may still fail; on error the caller must discard w.
func (p *Processor) Decrypt(ctx context.Context, r io.Reader, size int64, w io.Writer, env *envelope.Envelope, password []byte, progress ProgressFunc) error {
	if env == nil {
		return fmt.Errorf("nil envelope: %w", krypto.ErrMalformedEnvelope)
	}
	alg, err := env.ParsedAlgorithm()
	if err != nil {
		return err
	}
	if !alg.Streamed() {
		return fmt.Errorf("not a file envelope: %w", krypto.ErrMalformedEnvelope)
	}

	key, alg, err := env.DeriveKey(password)
	if err != nil {
		return err
	}
	defer key.Wipe()

	aead, err := krypto.NewAEAD(key)
	if err != nil {
		return err
	}
	baseIV, err := env.IVBytes()
	if err != nil {
		return err
	}
	tag := alg.String()

	p.Logger.Debugf("decrypting %d bytes with %s", size, tag)
	return p.run(ctx, r, alg.ChunkSize+krypto.TagSize, w, size, progress, func(c *chunk) error {
		if len(c.in) < krypto.TagSize {
			return fmt.Errorf("chunk shorter than tag: %w", krypto.ErrMalformedEnvelope)
		}
		nonce := krypto.ChunkNonce(baseIV, c.index)
		pt, err := aead.Open(nil, nonce, c.in, chunkAAD(tag, c.index, c.final))
		if err != nil {
			return krypto.ErrAuthenticationFailed
		}
		c.out = pt
		return nil
	})
}

// run reads chunks of readSize bytes, applies op to up to p.Workers chunks
// at a time and writes the results in order.
func (p *Processor) run(ctx context.Context, r io.Reader, readSize int, w io.Writer, total int64, progress ProgressFunc, op func(*chunk) error) error {
	br := bufio.NewReaderSize(r, readSize)
	tracker := newTracker(total, progress)
	workers := p.workers()

	var next uint64
	for done := false; !done; {
		batch := make([]*chunk, 0, workers)
		for len(batch) < workers && !done {
			if err := ctx.Err(); err != nil {
				return cancelled(err)
			}
			buf, final, err := readChunk(br, readSize)
			if err != nil {
				return fmt.Errorf("read chunk %d: %w", next, err)
			}
			batch = append(batch, &chunk{index: next, final: final, in: buf})
			next++
			done = final
		}

		var g errgroup.Group
		for _, c := range batch {
			c := c
			g.Go(func() error { return op(c) })
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, c := range batch {
			if err := ctx.Err(); err != nil {
				return cancelled(err)
			}
			if _, err := w.Write(c.out); err != nil {
				return fmt.Errorf("write chunk %d: %w", c.index, err)
			}
			if c.final {
				tracker.finish()
			} else {
				tracker.advance(len(c.in))
			}
			c.in, c.out = nil, nil
		}
		p.Logger.Debugf("processed %d chunks", next)
	}
	return nil
}

// readChunk fills a buffer of size bytes and reports whether it is the last
// chunk of the stream. An empty stream yields a single empty final chunk.
func readChunk(br *bufio.Reader, size int) ([]byte, bool, error) {
	buf := make([]byte, size)
	n, err := io.ReadFull(br, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return buf[:n], true, nil
	case err != nil:
		return nil, false, err
	}

	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return buf, true, nil
		}
		return nil, false, err
	}
	return buf, false, nil
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %v", krypto.ErrOperationCancelled, cause)
}
