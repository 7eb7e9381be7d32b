package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	httperrors "github.com/nczempin/httpc-oneshot/errors"
	"github.com/nczempin/httpc-oneshot/spool"
	"github.com/nczempin/httpc-oneshot/transport"
)

// copyChunk sizes the plaintext copy buffer
const copyChunk = 32 << 10

// oneshot connects to ep, sends request and spools the decrypted response
// until the server ends the stream, by close_notify or by TCP FIN.
func (c *Client) oneshot(ctx context.Context, ep transport.Endpoint, request []byte, log *slog.Logger) (*spool.Spool, error) {
	sock, err := transport.DialNonblocking(ep.Addr)
	if err != nil {
		return nil, err
	}

	vw, err := transport.NewVectoredWriter(c.cfg.WriteMode)
	if err != nil {
		sock.Close()
		return nil, httperrors.NewTransportError("failed to set up vectored writer", err)
	}

	d := transport.NewDriver(sock, ep.HostName, c.tlsConfig, vw)
	defer d.Close()

	// held by the session until the handshake completes
	if _, err := d.Write(request); err != nil {
		return nil, err
	}

	sp, err := spool.Create(c.cfg.SpoolDir, c.cfg.SpoolMode)
	if err != nil {
		return nil, err
	}
	keep := false
	defer func() {
		if !keep {
			sp.Close()
		}
	}()

	poller, err := transport.NewPoller()
	if err != nil {
		return nil, err
	}
	defer poller.Close()

	if err := poller.Register(sock.Fd(), d.DesiredReadiness()); err != nil {
		return nil, err
	}

	// cancellation and deadline expiry interrupt a blocked Wait
	woken := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		poller.Wake()
		close(woken)
	})
	defer func() {
		if !stop() {
			<-woken
		}
	}()

	buf := make([]byte, copyChunk)
	for {
		if ctx.Err() != nil {
			return nil, timeoutError(ctx)
		}
		wait := time.Duration(-1)
		if dl, ok := ctx.Deadline(); ok {
			if wait = time.Until(dl); wait <= 0 {
				return nil, timeoutError(ctx)
			}
		}

		events, err := poller.Wait(wait)
		if err != nil {
			return nil, err
		}

		for _, ev := range events {
			if ev.Readable {
				progress, err := d.PumpReadable()
				if err != nil {
					return nil, err
				}
				if progress.EOF {
					log.Debug("stream ended by tcp fin")
					keep = true
					return sp, nil
				}

				closed, err := drain(d, sp, buf)
				if err != nil {
					return nil, err
				}
				if closed {
					log.Debug("stream ended by close_notify")
					keep = true
					return sp, nil
				}
			}

			if ev.Writable {
				if err := d.PumpWritable(); err != nil {
					return nil, err
				}
			}
		}

		if err := poller.Reregister(sock.Fd(), d.DesiredReadiness()); err != nil {
			return nil, err
		}
	}
}

// drain copies all buffered plaintext into w. closed reports that the
// peer ended the TLS session cleanly.
func drain(d *transport.Driver, w io.Writer, buf []byte) (closed bool, err error) {
	for {
		n, err := d.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return false, werr
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, transport.ErrWouldBlock):
			return false, nil
		case errors.Is(err, transport.ErrConnectionAborted):
			return true, nil
		default:
			return false, err
		}
	}
}

func timeoutError(ctx context.Context) error {
	err := context.Cause(ctx)
	if err == nil {
		err = context.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return httperrors.NewTimeoutError("request cancelled", err)
	}
	return httperrors.NewTimeoutError("request timed out", err)
}
