package diag

import (
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
)

const (
	prefixWarn  = "warn: "
	prefixError = "error: "
)

// Collector keeps each distinct message once.
type Collector struct {
	seen map[string]struct{}
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Add(msg string) {
	if c == nil {
		return
	}
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	c.seen[msg] = struct{}{}
}

func (c *Collector) List() []string {
	if c == nil || len(c.seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.seen))
	for msg := range c.seen {
		out = append(out, msg)
	}
	sort.Strings(out)
	return out
}

// Reporter is the diagnostics sink handed to the reader. Every message goes
// to the logger; warnings and errors are also kept for the run summary.
type Reporter struct {
	log      *log.Logger
	warnings *Collector
	errors   *Collector
}

func New(logger *log.Logger) *Reporter {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Reporter{log: logger, warnings: NewCollector(), errors: NewCollector()}
}

func Discard() *Reporter {
	return New(nil)
}

func (r *Reporter) Warnf(format string, args ...any) {
	if r == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	r.warnings.Add(msg)
	r.log.Print(prefixWarn + msg)
}

func (r *Reporter) Errorf(format string, args ...any) {
	if r == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	r.errors.Add(msg)
	r.log.Print(prefixError + msg)
}

func (r *Reporter) Infof(format string, args ...any) {
	if r == nil {
		return
	}
	r.log.Printf(format, args...)
}

func (r *Reporter) Warnings() []string {
	if r == nil {
		return nil
	}
	return r.warnings.List()
}

func (r *Reporter) Errors() []string {
	if r == nil {
		return nil
	}
	return r.errors.List()
}
