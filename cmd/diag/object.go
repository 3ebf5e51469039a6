package diag

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// diagObject is the payload used by the checks. Its text form is data|timestamp|counter.
type diagObject struct {
	data      string
	timestamp int64 // unix millis
	counter   int
}

func newDiagObject(data string, counter int) *diagObject {
	return &diagObject{data: data, timestamp: time.Now().UnixMilli(), counter: counter}
}

func (o *diagObject) Serialize() string {
	return o.data + "|" + strconv.FormatInt(o.timestamp, 10) + "|" + strconv.Itoa(o.counter)
}

// Deserialize resets the object for blank input. Otherwise the last two fields
// are split off, so data itself may contain '|'.
func (o *diagObject) Deserialize(text string) error {
	*o = diagObject{}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	rest, counter, ok := cutLast(text)
	if !ok {
		o.data = text
		return nil
	}
	data, timestamp, ok := cutLast(rest)
	if !ok {
		return fmt.Errorf("diagnostic object %q: missing timestamp", text)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("diagnostic object timestamp: %w", err)
	}
	c, err := strconv.Atoi(counter)
	if err != nil {
		return fmt.Errorf("diagnostic object counter: %w", err)
	}

	o.data, o.timestamp, o.counter = data, ts, c
	return nil
}

func cutLast(s string) (before, after string, found bool) {
	i := strings.LastIndex(s, "|")
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}
