package core

import (
	"strings"
	"sync"
)

// LogBuffer captures logger output in tests. Safe for use by a background
// run and the test goroutine at once.
type LogBuffer struct {
	mu   sync.Mutex
	data []byte
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}

// Count returns how many captured lines contain substr.
func (b *LogBuffer) Count(substr string) int {
	n := 0
	for _, line := range strings.Split(b.String(), "\n") {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}
