// Package syslog implements a TCP syslog listener accepting RFC-3164 and
// RFC-5424 framed lines (spec.md §4.4.2, original_source/logshipper/input.py's
// Syslog class).
package syslog

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ondergetekende/logshipper/input"
	"github.com/ondergetekende/logshipper/message"
)

// Protocol selects which framing(s) the listener will try per line.
type Protocol int

const (
	// Auto tries RFC-5424 first, falling back to RFC-3164.
	Auto Protocol = iota
	RFC3164
	RFC5424
)

// Config configures one Syslog input.
type Config struct {
	Bind     string // default 127.0.0.1
	Port     int    // default 514
	Protocol Protocol
}

var (
	rfc3164Matcher = regexp.MustCompile(`^<(\d{1,3})>`)

	rfc5424Matcher = regexp.MustCompile(
		`^<(\d{1,3})>1 ` +
			`(-|\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})) ` +
			`(-|\S{1,255}) ` +
			`(-|\S{1,48}) ` +
			`(-|\S{1,128}) ` +
			`(-|\S{1,32}) ` +
			`(-|\[[^\]]+\]) ?`)
)

// syslogPriorities and syslogFacilities mirror the original's
// SYSLOG_PRIORITIES/SYSLOG_FACILITIES tables exactly (same two files,
// original_source/logshipper/input.py and syslog.py).
var syslogPriorities = []string{
	"emergency", "alert", "critical", "error",
	"warning", "notice", "informational", "debug",
}

var syslogFacilities = buildFacilities()

func buildFacilities() []string {
	names := []string{
		"kern", "user", "mail", "daemon",
		"auth", "syslog", "lpr", "news",
		"uucp", "cron", "authpriv", "ftp",
		"ntp", "audit", "alert", "clock",
	}
	for i := 0; i < 8; i++ {
		names = append(names, fmt.Sprintf("local%d", i))
	}
	for i := 0; i < 12; i++ {
		names = append(names, fmt.Sprintf("unknown%02d", i))
	}
	return names
}

// Input listens for syslog lines over TCP, one connection per client.
type Input struct {
	cfg      Config
	regexes  []*regexp.Regexp
	listener net.Listener

	mu sync.Mutex
	wg sync.WaitGroup
}

// New builds an unstarted syslog input. Protocol selects framing.
func New(cfg Config) *Input {
	if cfg.Bind == "" {
		cfg.Bind = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 514
	}

	in := &Input{cfg: cfg}
	switch cfg.Protocol {
	case RFC3164:
		in.regexes = []*regexp.Regexp{rfc3164Matcher}
	case RFC5424:
		in.regexes = []*regexp.Regexp{rfc5424Matcher}
	default:
		in.regexes = []*regexp.Regexp{rfc5424Matcher, rfc3164Matcher}
	}
	return in
}

// Start binds the listen socket and accepts connections until Stop.
func (in *Input) Start(ctx context.Context, emit input.Emitter) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(in.cfg.Bind, strconv.Itoa(in.cfg.Port)))
	if err != nil {
		return fmt.Errorf("syslog: listen: %w", err)
	}
	in.listener = ln

	in.wg.Add(1)
	go in.accept(emit)
	return nil
}

func (in *Input) accept(emit input.Emitter) {
	defer in.wg.Done()

	for {
		conn, err := in.listener.Accept()
		if err != nil {
			return
		}

		in.wg.Add(1)
		go func() {
			defer in.wg.Done()
			defer conn.Close()
			in.handle(conn, emit)
		}()
	}
}

func (in *Input) handle(conn net.Conn, emit input.Emitter) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 64*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		in.processLine(line, emit)
	}
}

// processLine tries each configured framing in order, emitting the first
// match's decoded fields, or logging a warning if none apply (spec.md
// §4.4.2: "Non-matching lines are dropped with a warning").
func (in *Input) processLine(line string, emit input.Emitter) {
	for _, re := range in.regexes {
		loc := re.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}

		fields := message.Message{}
		groups := re.FindStringSubmatch(line)

		prival, err := strconv.Atoi(groups[1])
		if err == nil && prival >= 0 && prival <= 255 {
			fields["facility"] = syslogFacilities[prival/8]
			fields["severity"] = syslogPriorities[prival%8]
		}

		if re == rfc5424Matcher {
			decodeRFC5424(groups, fields)
		}

		fields[message.FieldText] = line[loc[1]:]
		input.Emit(emit, fields)
		return
	}
	slog.Warn("syslog: dropping non-matching line", "line", line)
}

// decodeRFC5424 fills in the RFC-5424-specific fields (timestamp with its
// offset, hostname, appname, procid, msgid, raw structured data) from the
// rfc5424Matcher's submatches: [0]=full [1]=prival [2]=timestamp
// [3]=hostname [4]=appname [5]=procid [6]=msgid [7]=sd.
func decodeRFC5424(groups []string, fields message.Message) {
	if hostname := groups[3]; hostname != "-" {
		fields[message.FieldHostname] = hostname
	}
	if appname := groups[4]; appname != "-" {
		fields["appname"] = appname
	}
	if procid := groups[5]; procid != "-" {
		fields["procid"] = procid
	}
	if msgid := groups[6]; msgid != "-" {
		fields["msgid"] = msgid
	}
	if sd := groups[7]; sd != "-" && sd != "" {
		fields["structured_data"] = sd
	}

	if ts := groups[2]; ts != "-" {
		if parsed, err := parseRFC5424Timestamp(ts); err == nil {
			fields[message.FieldTimestamp] = parsed
		}
	}
}

// parseRFC5424Timestamp parses the RFC-5424 TIMESTAMP production (an
// ISO-8601 stamp with fractional seconds and either "Z" or an explicit
// numeric offset), matching original_source/logshipper/input.py's manual
// offset splitting.
func parseRFC5424Timestamp(ts string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05Z07:00",
	} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("syslog: unparsable rfc5424 timestamp %q", ts)
}

// Stop closes the listen socket and waits for all connection handlers to
// finish (spec.md §4.4: Stop blocks until the worker has exited).
func (in *Input) Stop(ctx context.Context) error {
	in.mu.Lock()
	ln := in.listener
	in.listener = nil
	in.mu.Unlock()

	if ln == nil {
		return nil
	}
	ln.Close()
	in.wg.Wait()
	return nil
}
