// Package graphite renders metric points as Graphite plaintext
// protocol lines and delivers them to stdout-style writers or straight
// to a carbon listener over TCP.
package graphite

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/de-tools/awsbill/pkg/models/domain"
	"github.com/rs/zerolog"
)

const (
	DefaultPrefix = "awsbill"
	defaultPort   = "2003"
)

// Emitter delivers a finalized metric sequence somewhere.
type Emitter interface {
	Emit(ctx context.Context, points []domain.MetricPoint) error
}

// Formatter renders one point as a Graphite line:
// "prefix.dotted.metric.path <value> <unix timestamp>\n".
type Formatter struct {
	prefix string
}

func NewFormatter(prefix string) *Formatter {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Formatter{prefix: prefix}
}

func (f *Formatter) Format(p domain.MetricPoint) string {
	return fmt.Sprintf("%s.%s %s %d\n", f.prefix, p.Key.String(), p.Value.String(), p.Timestamp.Unix())
}

// WriterEmitter writes formatted lines to any io.Writer.
type WriterEmitter struct {
	w         io.Writer
	formatter *Formatter
}

func NewWriterEmitter(w io.Writer, prefix string) *WriterEmitter {
	if w == nil {
		w = os.Stdout
	}
	return &WriterEmitter{w: w, formatter: NewFormatter(prefix)}
}

func (e *WriterEmitter) Emit(_ context.Context, points []domain.MetricPoint) error {
	buf := bufio.NewWriter(e.w)
	for _, p := range points {
		if _, err := buf.WriteString(e.formatter.Format(p)); err != nil {
			return fmt.Errorf("write metric line: %w", err)
		}
	}
	return buf.Flush()
}

// TCPEmitter streams lines to a carbon plaintext listener. The
// connection is dialed per Emit call; one report is one flush.
type TCPEmitter struct {
	addr      string
	formatter *Formatter
}

// NewTCPEmitter accepts "host" or "host:port"; the port defaults to
// carbon's 2003.
func NewTCPEmitter(host, prefix string) *TCPEmitter {
	if !strings.Contains(host, ":") {
		host = net.JoinHostPort(host, defaultPort)
	}
	return &TCPEmitter{addr: host, formatter: NewFormatter(prefix)}
}

func (e *TCPEmitter) Emit(ctx context.Context, points []domain.MetricPoint) error {
	logger := zerolog.Ctx(ctx)
	logger.Info().Str("addr", e.addr).Int("points", len(points)).Msg("sending metrics to graphite")

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", e.addr)
	if err != nil {
		return fmt.Errorf("connect to graphite at %s: %w", e.addr, err)
	}
	defer conn.Close()

	buf := bufio.NewWriter(conn)
	for _, p := range points {
		if _, err := buf.WriteString(e.formatter.Format(p)); err != nil {
			return fmt.Errorf("send metric line to %s: %w", e.addr, err)
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush metrics to %s: %w", e.addr, err)
	}
	return nil
}
