package pdfinspect

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var ErrNotPDF = errors.New("not a readable pdf")

// PageCount parses the cross reference table and page tree of data and
// returns the number of pages. Any parse failure is reported as ErrNotPDF.
func PageCount(data []byte) (n int, err error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: empty input", ErrNotPDF)
	}

	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("%w: %v", ErrNotPDF, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	pages := reader.NumPage()
	if pages <= 0 {
		return 0, fmt.Errorf("%w: no pages", ErrNotPDF)
	}
	return pages, nil
}

// Inspector adapts PageCount to the upload service.
type Inspector struct{}

func (Inspector) PageCount(data []byte) (int, error) {
	return PageCount(data)
}
