package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/agentic-research/pricetag/api"
	"golang.org/x/sync/errgroup"
)

// maxLine bounds one inbound message; price mappings are small.
const maxLine = 16 << 20

// Serve runs the protocol over JSON lines: one api.Inbound per line on r,
// one api.Outbound per line on w. Requests are handled one at a time in
// arrival order. Malformed lines are logged and skipped.
//
// Serve returns nil after a close request or at end of input. The line
// reader is not waited for; it stops at its next line once Serve returns.
func (s *Session) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go readLines(ctx, r, lines, readErr)

	out := make(chan api.Outbound, 8)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return writeLines(w, out)
	})
	g.Go(func() error {
		defer close(out)
		post := PosterFunc(func(m api.Outbound) error {
			select {
			case out <- m:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		return s.dispatch(gctx, lines, post)
	})

	err := g.Wait()
	if errors.Is(err, ErrClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	select {
	case rerr := <-readErr:
		if rerr != nil {
			return fmt.Errorf("read messages: %w", rerr)
		}
	default:
	}
	return nil
}

func (s *Session) dispatch(ctx context.Context, lines <-chan []byte, post Poster) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				s.logger.Debug("input closed")
				return nil
			}
			var msg api.Inbound
			if err := json.Unmarshal(line, &msg); err != nil {
				s.logger.Warn("malformed message skipped", "error", err)
				continue
			}
			if err := s.Handle(ctx, msg, post); err != nil {
				return err
			}
		}
	}
}

// readLines feeds non-blank lines of r into lines, then reports the scanner
// error (nil at EOF) and closes lines.
func readLines(ctx context.Context, r io.Reader, lines chan<- []byte, errc chan<- error) {
	defer close(lines)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		b := sc.Bytes()
		if len(bytes.TrimSpace(b)) == 0 {
			continue
		}
		line := append([]byte(nil), b...)
		select {
		case lines <- line:
		case <-ctx.Done():
			errc <- nil
			return
		}
	}
	errc <- sc.Err()
}

func writeLines(w io.Writer, out <-chan api.Outbound) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for m := range out {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("write reply: %w", err)
		}
	}
	return nil
}
