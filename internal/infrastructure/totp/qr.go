package totp

import (
	"context"

	qrcode "github.com/skip2/go-qrcode"
)

type QRRenderer struct {
	size int
}

func NewQRRenderer(size int) *QRRenderer {
	if size <= 0 {
		size = 256
	}
	return &QRRenderer{size: size}
}

// Render encodes uri as a PNG. Encoding runs off the caller's goroutine so a
// context deadline is honoured.
func (r *QRRenderer) Render(ctx context.Context, uri string) ([]byte, error) {
	type result struct {
		png []byte
		err error
	}
	ch := make(chan result, 1)
	go func() {
		png, err := qrcode.Encode(uri, qrcode.Medium, r.size)
		ch <- result{png: png, err: err}
	}()

	select {
	case res := <-ch:
		return res.png, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
