package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// maxLineSize bounds one recorded message.
const maxLineSize = 4 << 20

// recordedLine is the envelope written by feed recorders.
type recordedLine struct {
	RecvUs int64           `json:"recv_us"`
	Msg    json.RawMessage `json:"msg"`
}

// FileSource replays recorded feed messages, one JSON document per line.
// A line is either {"recv_us":..,"msg":{..}} or a bare feed message.
// Bare messages are stamped with the replay time.
type FileSource struct {
	path string
	r    io.Reader
	now  func() time.Time
}

// NewFileSource reads messages from the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

// NewReaderSource reads messages from r.
func NewReaderSource(r io.Reader) *FileSource {
	return &FileSource{r: r, now: time.Now}
}

// Run delivers every line to sink and returns nil at end of input.
// Blank lines are skipped; undecodable lines are passed through so the
// normalizer reports them.
func (s *FileSource) Run(ctx context.Context, sink Sink) error {
	r := s.r
	if r == nil {
		f, err := os.Open(s.path)
		if err != nil {
			return fmt.Errorf("open feed file: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		sink(decodeLine(raw, s.now))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read feed file line %d: %w", line+1, err)
	}
	return nil
}

func decodeLine(raw []byte, now func() time.Time) Message {
	data := make([]byte, len(raw))
	copy(data, raw)

	var env recordedLine
	if err := json.Unmarshal(data, &env); err == nil && len(env.Msg) > 0 {
		recv := env.RecvUs
		if recv <= 0 {
			recv = now().UnixMicro()
		}
		return Message{Data: env.Msg, RecvUs: recv}
	}
	return Message{Data: data, RecvUs: now().UnixMicro()}
}

// Recorder writes messages in the envelope format FileSource reads.
type Recorder struct {
	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewRecorder creates a recorder writing to w.
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{enc: json.NewEncoder(w)}
}

// Tee returns a sink that records each message before passing it to next.
// Messages that are not valid JSON are passed on but not recorded.
func (r *Recorder) Tee(next Sink) Sink {
	return func(msg Message) {
		if json.Valid(msg.Data) {
			r.mu.Lock()
			if r.err == nil {
				r.err = r.enc.Encode(recordedLine{RecvUs: msg.RecvUs, Msg: msg.Data})
			}
			r.mu.Unlock()
		}
		next(msg)
	}
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
