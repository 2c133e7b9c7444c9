// Package scan runs uploaded bytes through a malware scanner before they
// are accepted.
package scan

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/dutchcoders/go-clamd"

	"github.com/dmitrijs2005/estatekeeper/internal/common"
)

// Scanner inspects content. An infected payload yields an error wrapping
// common.ErrIntegrity.
type Scanner interface {
	Scan(ctx context.Context, data []byte) error
}

// NopScanner accepts everything.
type NopScanner struct{}

func (NopScanner) Scan(context.Context, []byte) error { return nil }

type clamdAPI interface {
	ScanStream(r io.Reader, abort chan bool) (chan *clamd.ScanResult, error)
}

// ClamdScanner streams content to a clamd daemon.
type ClamdScanner struct {
	api clamdAPI
}

// NewClamdScanner connects lazily to the clamd address, e.g.
// "tcp://localhost:3310".
func NewClamdScanner(address string) *ClamdScanner {
	return &ClamdScanner{api: clamd.NewClamd(address)}
}

func (s *ClamdScanner) Scan(ctx context.Context, data []byte) error {
	abort := make(chan bool, 1)
	results, err := s.api.ScanStream(bytes.NewReader(data), abort)
	if err != nil {
		return fmt.Errorf("clamd scan: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			abort <- true
			return ctx.Err()
		case res, ok := <-results:
			if !ok {
				return nil
			}
			switch res.Status {
			case clamd.RES_FOUND:
				return fmt.Errorf("%w: malware detected: %s", common.ErrIntegrity, res.Description)
			case clamd.RES_ERROR, clamd.RES_PARSE_ERROR:
				return fmt.Errorf("clamd scan: %s", res.Description)
			}
		}
	}
}
