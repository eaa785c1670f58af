package transport

import "os"

// pipeTransport implements Transport over a pair of unidirectional OS pipes
// (one for each direction), giving bidirectional flow without a socket.
type pipeTransport struct {
	read  *os.File
	write *os.File
}

// NewPipe wraps a read end and a write end into a single bidirectional
// Transport. NewPipePair constructs a connected pair of these for tests and
// for the co-located client/server case.
func NewPipe(read, write *os.File) Transport {
	return &pipeTransport{read: read, write: write}
}

// NewPipePair returns two Transports, a and b, connected such that writes
// on a arrive as reads on b and vice versa.
func NewPipePair() (a, b Transport, err error) {
	r1, w1, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}
	r2, w2, err := os.Pipe()
	if err != nil {
		r1.Close()
		w1.Close()
		return nil, nil, err
	}
	return NewPipe(r1, w2), NewPipe(r2, w1), nil
}

func (p *pipeTransport) Send(buf []byte) (int, error) {
	return p.write.Write(buf)
}

func (p *pipeTransport) RecvOne(buf []byte, waitAll bool) (int, error) {
	if !waitAll {
		return p.read.Read(buf)
	}
	got := 0
	for got < len(buf) {
		n, err := p.read.Read(buf[got:])
		got += n
		if err != nil {
			return got, err
		}
		if n == 0 {
			break
		}
	}
	return got, nil
}

func (p *pipeTransport) Close() error {
	err1 := p.read.Close()
	err2 := p.write.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
