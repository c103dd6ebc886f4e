package testresults

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseTRX reads a Visual Studio test results document and summarises its
// first Counters element. Skipped is total minus executed. Counters that are
// missing or not integers count as zero.
func ParseTRX(r io.Reader) (Summary, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return Summary{}, nil
		}
		if err != nil {
			return Summary{}, fmt.Errorf("parse trx: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Counters" {
			continue
		}
		value := func(name string) int {
			for _, attr := range start.Attr {
				if attr.Name.Local != name {
					continue
				}
				n, err := strconv.Atoi(strings.TrimSpace(attr.Value))
				if err != nil {
					return 0
				}
				return n
			}
			return 0
		}
		return Summary{
			Passed:  value("passed"),
			Failed:  value("failed"),
			Skipped: value("total") - value("executed"),
		}, nil
	}
}

// ParseTRXFile is ParseTRX on the file at path.
func ParseTRXFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("open trx: %w", err)
	}
	defer f.Close()

	s, err := ParseTRX(f)
	if err != nil {
		return Summary{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
