package validation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReferenceList is an ordered list of canonical administrative names
// (concelhos or freguesias) used as a fuzzy match universe
type ReferenceList struct {
	Name    string
	Entries []string
}

// NewReferenceList keeps the non-blank entries in order
func NewReferenceList(name string, entries []string) *ReferenceList {
	l := &ReferenceList{Name: name}
	for _, e := range entries {
		if e = strings.TrimSpace(e); e != "" {
			l.Entries = append(l.Entries, e)
		}
	}
	return l
}

// ReadReferenceList reads one name per line
func ReadReferenceList(name string, r io.Reader) (*ReferenceList, error) {
	var entries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		entries = append(entries, strings.TrimPrefix(scanner.Text(), "\ufeff"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s list: %w", name, err)
	}
	return NewReferenceList(name, entries), nil
}

// LoadReferenceList reads a newline-delimited reference file
func LoadReferenceList(name, path string) (*ReferenceList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s list: %w", name, err)
	}
	defer f.Close()

	return ReadReferenceList(name, f)
}

// Len returns the number of entries; a nil list is empty
func (l *ReferenceList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}
