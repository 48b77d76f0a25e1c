package xso

import (
	"context"
	"encoding/xml"
	"io"
)

// Driver dispatches a stream of events to top-level record parsers. The
// depth-0 element determines the schema via the driver's registry; each
// completed record is delivered to the record callback. An unknown
// top-level tag is reported to the error callback and its subtree is
// skipped, so a stream survives unrecognized elements.
type Driver struct {
	registry *Registry
	onRecord func(*Object)
	onError  func(error)

	parser *Parser
	skip   int
}

// NewDriver builds a driver over the registry. onRecord receives each
// completed record; onError, if non-nil, receives recoverable stream
// problems such as unknown top-level tags.
func NewDriver(registry *Registry, onRecord func(*Object), onError func(error)) *Driver {
	return &Driver{registry: registry, onRecord: onRecord, onError: onError}
}

// Feed consumes one event. Errors from a record parse are returned and
// the offending subtree is skipped; the driver itself stays usable.
func (d *Driver) Feed(ev Event) error {
	if d.skip > 0 {
		switch ev.Kind {
		case EventStartElement:
			d.skip++
		case EventEndElement:
			d.skip--
		}
		return nil
	}

	if d.parser == nil {
		if ev.Kind != EventStartElement {
			if ev.Kind == EventText {
				return nil
			}
			return &FormatError{Msg: "unbalanced end of element"}
		}
		s := d.registry.Resolve(ev.Name)
		if s == nil {
			d.report(&UnknownTopLevelTagError{Name: ev.Name})
			d.skip = 1
			return nil
		}
		d.parser = NewParser(s)
	}

	res, err := d.parser.Feed(ev)
	if err != nil {
		// skip the rest of the broken subtree, then resume
		d.skip = d.parser.Depth()
		d.parser = nil
		return err
	}
	if res.Done {
		d.parser = nil
		d.onRecord(res.Object)
	}
	return nil
}

func (d *Driver) report(err error) {
	if d.onError != nil {
		d.onError(err)
	}
}

// DriveDecoder pumps tokens from dec into the driver until EOF, a fatal
// decode error or context cancellation. Processing instructions, comments
// and directives are ignored. Record parse errors are routed to the error
// callback and the stream continues.
func (d *Driver) DriveDecoder(ctx context.Context, dec *xml.Decoder) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			st := t.Copy()
			err = d.Feed(StartElementEvent(st.Name, st.Attr...))
		case xml.EndElement:
			err = d.Feed(EndElementEvent(t.Name))
		case xml.CharData:
			err = d.Feed(TextEvent(string(t)))
		}
		if err != nil {
			d.report(err)
		}
	}
}
