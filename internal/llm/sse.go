package llm

import (
	"bufio"
	"io"
	"strings"
)

// readSSE calls fn with the event name and data of each server-sent event
// in r. It stops at EOF, at a "[DONE]" data line, or when fn returns an
// error.
func readSSE(r io.Reader, fn func(event, data string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var event string
	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			event = ""
			return nil
		}
		err := fn(event, strings.Join(data, "\n"))
		event, data = "", nil
		return err
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			d := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			if d == "[DONE]" {
				return nil
			}
			data = append(data, d)
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return dispatch()
}
