package commands

import (
	"time"

	"github.com/calvinmclean/dispenser/firmware/controller"
)

const noByte = -1

// ByteSource is polled for input bytes
type ByteSource interface {
	Buffered() int
	ReadByte() (byte, error)
}

// Parser reads signed integers from a byte stream. Leading bytes are skipped until a '-' or a digit, parsing
// stops at the first byte that is not a digit and that byte is kept for the next call. If no byte arrives
// within the timeout the result is 0. The value wraps around like a 32 bit integer
type Parser struct {
	in      ByteSource
	clock   controller.Clock
	timeout time.Duration
	poll    time.Duration

	peeked int
}

// NewParser creates a Parser reading from in
func NewParser(in ByteSource, clock controller.Clock, timeout time.Duration) *Parser {
	return &Parser{
		in:      in,
		clock:   clock,
		timeout: timeout,
		poll:    time.Millisecond,
		peeked:  noByte,
	}
}

// Buffered returns the number of bytes that can be parsed without waiting
func (p *Parser) Buffered() int {
	n := p.in.Buffered()
	if p.peeked != noByte {
		n++
	}
	return n
}

// ParseInt returns the next integer in the stream
func (p *Parser) ParseInt() int32 {
	c := p.peekNextDigit()
	if c == noByte {
		return 0
	}

	var value int32
	negative := false
	for {
		if c == '-' {
			negative = true
		} else {
			value = value*10 + int32(c-'0')
		}
		p.peeked = noByte

		c = p.timedPeek()
		if !isDigit(c) {
			break
		}
	}

	if negative {
		value = -value
	}
	return value
}

// peekNextDigit discards bytes until it finds a '-' or a digit, which stays unconsumed
func (p *Parser) peekNextDigit() int {
	for {
		c := p.timedPeek()
		if c == noByte || c == '-' || isDigit(c) {
			return c
		}
		p.peeked = noByte
	}
}

// timedPeek returns the next byte without consuming it, waiting up to the timeout for it to arrive
func (p *Parser) timedPeek() int {
	if p.peeked != noByte {
		return p.peeked
	}

	start := p.clock.Now()
	for {
		if p.in.Buffered() > 0 {
			b, err := p.in.ReadByte()
			if err == nil {
				p.peeked = int(b)
				return p.peeked
			}
		}
		if p.clock.Now().Sub(start) >= p.timeout {
			return noByte
		}
		p.clock.Sleep(p.poll)
	}
}

func isDigit(c int) bool {
	return c >= '0' && c <= '9'
}
