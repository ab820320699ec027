package checkin

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// LineScanner turns a line oriented reader into a Scanner. Keyboard wedge barcode readers
// type each code followed by Enter. Lines that arrive while paused are dropped.
type LineScanner struct {
	r      io.Reader
	resume chan struct{}
	stop   chan struct{}
	once   sync.Once
}

func NewLineScanner(r io.Reader) *LineScanner {
	return &LineScanner{
		r:      r,
		resume: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
}

func (l *LineScanner) Start(ctx context.Context) (<-chan string, error) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(l.r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-l.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make(chan string)
	go func() {
		defer close(out)
		paused := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case <-l.resume:
				paused = false
			case line, ok := <-lines:
				if !ok {
					return
				}
				if paused {
					select {
					case <-l.resume:
						paused = false
					default:
					}
				}
				line = strings.TrimSpace(line)
				if paused || line == "" {
					continue
				}
				select {
				case out <- line:
					paused = true
				case <-ctx.Done():
					return
				case <-l.stop:
					return
				}
			}
		}
	}()
	return out, nil
}

func (l *LineScanner) Resume() {
	select {
	case l.resume <- struct{}{}:
	default:
	}
}

func (l *LineScanner) Stop() {
	l.once.Do(func() { close(l.stop) })
}
