// Package parser turns one source XML document into per-table record
// batches. Documents share a fixed two-level wrapper (root, then
// d:DatovyObsah, then a single list element) around a repeated family
// element; the parser validates the wrapper, then streams the repeated
// elements one at a time so peak memory is bounded by one element's subtree
// rather than the whole document.
//
// Any parsing error aborts the document: no partial artifacts are ever
// produced from a document that failed midway.
package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/opendatalabcz/emissions-etl/internal/flatten"
	"github.com/opendatalabcz/emissions-etl/internal/record"
	"github.com/opendatalabcz/emissions-etl/internal/xmltree"
)

// ErrMalformedDocument signals a document whose DatovyObsah wrapper is
// missing or holds no list element. It is fatal to the whole batch.
var ErrMalformedDocument = errors.New("missing or empty DatovyObsah element")

// Family selects which flattening schema applies to a document.
type Family string

const (
	FamilyInspections  Family = "inspections"
	FamilyMeasurements Family = "measurements"
)

// Valid reports whether f names a known family.
func (f Family) Valid() bool {
	return f == FamilyInspections || f == FamilyMeasurements
}

// Tables returns the output tables of the family, primary table first.
func (f Family) Tables() []string {
	switch f {
	case FamilyInspections:
		return []string{
			flatten.TableInspections,
			flatten.TableDefects,
			flatten.TableActions,
			flatten.TableAdrTypes,
		}
	case FamilyMeasurements:
		return []string{flatten.TableMeasurements}
	}
	return nil
}

// Primary returns the family's primary table, whose artifact presence is the
// idempotency signal for a document.
func (f Family) Primary() string { return f.Tables()[0] }

func (f Family) element() (space, local string) {
	if f == FamilyMeasurements {
		return flatten.NSMeasurement, flatten.MeasurementElement
	}
	return flatten.NSInspection, flatten.InspectionElement
}

// ParseFile parses the document at path with the family's schema.
func ParseFile(path string, family Family) (map[string]*record.Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parser: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f, path, family)
}

// Parse parses one document from r; name is used in error context only.
func Parse(r io.Reader, name string, family Family) (map[string]*record.Batch, error) {
	if !family.Valid() {
		return nil, fmt.Errorf("parser: unknown family %q", family)
	}

	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	if err := seekContent(dec, name); err != nil {
		return nil, err
	}

	batches := make(map[string]*record.Batch)
	for _, t := range family.Tables() {
		batches[t] = record.NewBatch(t)
	}
	space, local := family.element()

	// The decoder is now positioned inside the single list element; every
	// family element is decoded to a small tree, flattened, and dropped.
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parser: %q: %w", name, err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Space != space || start.Name.Local != local {
			if err := dec.Skip(); err != nil {
				return nil, fmt.Errorf("parser: %q: skip <%s>: %w", name, start.Name.Local, err)
			}
			continue
		}
		el, err := xmltree.Decode(dec, start)
		if err != nil {
			return nil, fmt.Errorf("parser: %q: %w", name, err)
		}
		appendElement(batches, family, el)
	}
	return batches, nil
}

// appendElement flattens one family element into the per-table batches.
func appendElement(batches map[string]*record.Batch, family Family, el *xmltree.Node) {
	if family == FamilyMeasurements {
		batches[flatten.TableMeasurements].Append(flatten.Measurement(el))
		return
	}
	insp, defects, actions, adrTypes := flatten.Inspection(el)
	if insp == nil {
		return
	}
	batches[flatten.TableInspections].Append(insp)
	batches[flatten.TableDefects].Append(defects...)
	batches[flatten.TableActions].Append(actions...)
	batches[flatten.TableAdrTypes].Append(adrTypes...)
}

// seekContent advances the decoder into the root element, past the
// DatovyObsah wrapper, and into its single list element, reporting
// ErrMalformedDocument when a level is missing.
func seekContent(dec *xml.Decoder, name string) error {
	// Enter the root element, whatever its name.
	if err := enterRoot(dec, name); err != nil {
		return err
	}
	if err := seekChild(dec, name, func(n xml.Name) bool {
		return n.Space == flatten.NSDataset && n.Local == "DatovyObsah"
	}); err != nil {
		return err
	}
	// Any single child is accepted as the list element; its name differs
	// between families and schema versions.
	return seekChild(dec, name, func(xml.Name) bool { return true })
}

// enterRoot consumes tokens up to and including the document's root start
// element.
func enterRoot(dec *xml.Decoder, name string) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return fmt.Errorf("parser: %q: %w", name, ErrMalformedDocument)
		}
		if err != nil {
			return fmt.Errorf("parser: %q: %w", name, err)
		}
		if _, ok := tok.(xml.StartElement); ok {
			return nil
		}
	}
}

// seekChild advances to the next start element accepted by match, failing
// with ErrMalformedDocument when the enclosing element ends or the document
// is exhausted first.
func seekChild(dec *xml.Decoder, name string, match func(xml.Name) bool) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return fmt.Errorf("parser: %q: %w", name, ErrMalformedDocument)
		}
		if err != nil {
			return fmt.Errorf("parser: %q: %w", name, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if match(t.Name) {
				return nil
			}
			if err := dec.Skip(); err != nil {
				return fmt.Errorf("parser: %q: skip <%s>: %w", name, t.Name.Local, err)
			}
		case xml.EndElement:
			return fmt.Errorf("parser: %q: %w", name, ErrMalformedDocument)
		}
	}
}

// charsetReader decodes non-UTF-8 XML declarations via the IANA registry.
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(charset)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("parser: unsupported charset %q", charset)
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}
