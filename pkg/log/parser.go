// Package log reads Solana transaction logs for the two things the client
// needs from them: the first failing program with its custom error code,
// and the "Program data:" events emitted by the wrapper.
//
//	p := log.NewParser()
//	if f := p.FirstFailure(logs); f != nil {
//	    // map f.ProgramID and f.CustomCode to a protocol error
//	}
//	events := p.ExtractSwapEvents(logs)
package log

import (
	"encoding/base64"
	"regexp"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/lugondev/go-continuum/pkg/view"
)

// Kind classifies one log line.
type Kind int

const (
	KindOther Kind = iota
	KindInvoke
	KindSuccess
	KindFailed
	KindData
	KindMessage
)

var kindNames = [...]string{"Other", "Invoke", "Success", "Failed", "Data", "Message"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Other"
}

// Line is one classified log line. Fields that do not apply to its Kind
// are zero.
type Line struct {
	Kind Kind
	Raw  string

	ProgramID string
	// Depth is the invocation depth of Invoke lines, 1 for top level.
	Depth int
	// Text is the "Program log:" message, or the reason of a failure.
	Text string
	// Data is the decoded "Program data:" payload.
	Data []byte
	// CustomCode is set when a failure reports "custom program error".
	CustomCode *uint32
}

// Failure is the first program failure found in a log.
type Failure struct {
	ProgramID  string
	CustomCode *uint32
	Reason     string
}

// SwapEvent is a decoded wrapper SwapEvent.
type SwapEvent struct {
	Sequence uint64
	User     solana.PublicKey
	PoolID   solana.PublicKey
}

type rule struct {
	kind Kind
	re   *regexp.Regexp
	fill func(l *Line, m []string)
}

var customError = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

var rules = []rule{
	{KindInvoke, regexp.MustCompile(`^Program (\S+) invoke \[(\d+)\]`), func(l *Line, m []string) {
		l.ProgramID = m[1]
		l.Depth, _ = strconv.Atoi(m[2])
	}},
	{KindSuccess, regexp.MustCompile(`^Program (\S+) success`), func(l *Line, m []string) {
		l.ProgramID = m[1]
	}},
	{KindFailed, regexp.MustCompile(`^Program (\S+) failed: (.+)$`), func(l *Line, m []string) {
		l.ProgramID = m[1]
		l.Text = m[2]
		if c := customError.FindStringSubmatch(m[2]); c != nil {
			if code, err := strconv.ParseUint(c[1], 16, 32); err == nil {
				v := uint32(code)
				l.CustomCode = &v
			}
		}
	}},
	{KindData, regexp.MustCompile(`^Program data: (.+)$`), func(l *Line, m []string) {
		l.Data, _ = base64.StdEncoding.DecodeString(m[1])
	}},
	{KindMessage, regexp.MustCompile(`^Program log: (.+)$`), func(l *Line, m []string) {
		l.Text = m[1]
	}},
}

// Parser classifies log lines. The zero value is ready to use.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse classifies a single line.
func (p *Parser) Parse(raw string) Line {
	l := Line{Kind: KindOther, Raw: raw}
	for _, r := range rules {
		if m := r.re.FindStringSubmatch(raw); m != nil {
			l.Kind = r.kind
			r.fill(&l, m)
			break
		}
	}
	return l
}

// ParseAll classifies every line, in order.
func (p *Parser) ParseAll(logs []string) []Line {
	out := make([]Line, len(logs))
	for i, raw := range logs {
		out[i] = p.Parse(raw)
	}
	return out
}

// FirstFailure returns the innermost failing program, which the runtime
// logs before its callers, or nil when nothing failed.
func (p *Parser) FirstFailure(logs []string) *Failure {
	for _, raw := range logs {
		if l := p.Parse(raw); l.Kind == KindFailed {
			return &Failure{ProgramID: l.ProgramID, CustomCode: l.CustomCode, Reason: l.Text}
		}
	}
	return nil
}

// ExtractProgramData returns the decoded payload of every "Program data:"
// line that is valid base64.
func (p *Parser) ExtractProgramData(logs []string) [][]byte {
	var out [][]byte
	for _, raw := range logs {
		if l := p.Parse(raw); l.Kind == KindData && len(l.Data) > 0 {
			out = append(out, l.Data)
		}
	}
	return out
}

// ExtractSwapEvents decodes every SwapEvent found in the logs. Other
// program data is ignored.
func (p *Parser) ExtractSwapEvents(logs []string) []SwapEvent {
	var events []SwapEvent
	for _, data := range p.ExtractProgramData(logs) {
		v, err := view.NewSwapEventView(data)
		if err != nil {
			continue
		}
		events = append(events, SwapEvent{
			Sequence: v.Sequence(),
			User:     v.User(),
			PoolID:   v.PoolID(),
		})
	}
	return events
}
