package xso

import (
	"encoding/xml"
	"strings"

	"github.com/varka/xmpp/xmlutil"
)

// EventKind discriminates parse events.
type EventKind int

// Event kinds fed to a Parser.
const (
	EventStartElement EventKind = iota
	EventEndElement
	EventText
)

// Event is one unit of XML input: an element boundary or character data.
// Events are fed to a Parser one at a time; parsing suspends between
// events, so input may arrive in arbitrary fragments.
type Event struct {
	Kind EventKind
	Name xml.Name
	Attr []xml.Attr
	Text string
}

// StartElementEvent builds a start-of-element event.
func StartElementEvent(name xml.Name, attr ...xml.Attr) Event {
	return Event{Kind: EventStartElement, Name: name, Attr: attr}
}

// EndElementEvent builds an end-of-element event.
func EndElementEvent(name xml.Name) Event {
	return Event{Kind: EventEndElement, Name: name}
}

// TextEvent builds a character data event.
func TextEvent(s string) Event {
	return Event{Kind: EventText, Text: s}
}

// Result reports the outcome of feeding one event.
type Result struct {
	// Done is true once the element closed and the record completed.
	Done bool
	// Object is the completed record. Set only when Done.
	Object *Object
}

type parserState int

const (
	parserAwaitingStart parserState = iota
	parserContent
	parserComplete
	parserFailed
)

// Parser builds one Object from a stream of events. It is a resumable
// state machine: Feed consumes exactly one event and either suspends,
// completes with a Result, or fails. A failed parser rejects further
// input.
type Parser struct {
	schema *Schema
	obj    *Object
	state  parserState

	textBuf strings.Builder
	sawText bool

	// active child record parse
	child      *Parser
	childField Field

	// active child text capture
	ct     *ChildTextField
	ctBuf  strings.Builder
	ctSkip int

	// active child tag element
	tagField *ChildTagField
	tagName  xml.Name
	tagSkip  int

	// unknown subtree handling
	skipDepth    int
	collectDepth int

	depth int
}

// NewParser returns a parser producing instances of schema.
func NewParser(schema *Schema) *Parser {
	return &Parser{schema: schema}
}

// Depth returns the number of elements opened and not yet closed by the
// events consumed so far, counting the record's own element and any
// nested element whose start event failed the parse. It lets a caller
// skip the remainder of a broken subtree after a parse error.
func (p *Parser) Depth() int { return p.depth }

// Feed consumes one event. On the event closing the record's element it
// returns a Result with Done set; before that it returns a zero Result.
// An error poisons the parser.
func (p *Parser) Feed(ev Event) (Result, error) {
	switch ev.Kind {
	case EventStartElement:
		p.depth++
	case EventEndElement:
		p.depth--
	}
	res, err := p.feed(ev)
	if err != nil {
		p.state = parserFailed
	}
	return res, err
}

func (p *Parser) feed(ev Event) (Result, error) {
	switch p.state {
	case parserComplete:
		return Result{}, &FormatError{Msg: "parser already completed"}
	case parserFailed:
		return Result{}, &FormatError{Msg: "parser already failed"}
	case parserAwaitingStart:
		return Result{}, p.start(ev)
	}
	return p.content(ev)
}

func (p *Parser) start(ev Event) error {
	if ev.Kind != EventStartElement {
		return &FormatError{Msg: "expected start of element"}
	}
	if ev.Name != p.schema.tag {
		return &FormatError{
			Msg: "expected " + xmlutil.NameString(p.schema.tag) +
				", got " + xmlutil.NameString(ev.Name),
		}
	}
	p.obj = p.schema.New()
	for _, attr := range ev.Attr {
		if xmlutil.IsNamespaceDecl(attr) {
			if p.obj.nsdecl == nil {
				p.obj.nsdecl = xmlutil.PrefixMap{}
			}
			for k, v := range xmlutil.NewPrefixMap(attr) {
				p.obj.nsdecl[k] = v
			}
			continue
		}
		f, ok := p.schema.attrs[attr.Name]
		if !ok {
			if p.schema.attrPolicy == UnknownAttrFail {
				return &FormatError{
					Msg: "unexpected attribute " + xmlutil.NameString(attr.Name) +
						" on " + xmlutil.NameString(p.schema.tag),
				}
			}
			p.obj.collect(attr)
			continue
		}
		v, err := f.fromWire(attr.Value, f.describe())
		if err != nil {
			return err
		}
		p.obj.setRaw(f, v)
	}
	p.state = parserContent
	return nil
}

func (p *Parser) content(ev Event) (Result, error) {
	switch {
	case p.child != nil:
		return Result{}, p.feedChild(ev)
	case p.ct != nil:
		return Result{}, p.feedChildText(ev)
	case p.tagField != nil:
		return Result{}, p.feedChildTag(ev)
	case p.skipDepth > 0:
		p.feedSkip(ev)
		return Result{}, nil
	case p.collectDepth > 0:
		p.feedCollect(ev)
		return Result{}, nil
	}

	switch ev.Kind {
	case EventStartElement:
		return Result{}, p.openChild(ev)
	case EventText:
		return Result{}, p.ownText(ev.Text)
	case EventEndElement:
		return p.finish()
	}
	return Result{}, &FormatError{Msg: "unknown event kind"}
}

func (p *Parser) openChild(ev Event) error {
	f := p.schema.childFor(ev.Name)
	if f == nil {
		if p.schema.collector != nil {
			p.collectDepth = 1
			p.obj.collect(startToken(ev))
			return nil
		}
		if p.schema.childPolicy == UnknownChildFail {
			return &FormatError{
				Msg: "unexpected child " + xmlutil.NameString(ev.Name) +
					" in " + xmlutil.NameString(p.schema.tag),
			}
		}
		p.skipDepth = 1
		return nil
	}

	switch fd := f.(type) {
	case *ChildTextField:
		for _, attr := range ev.Attr {
			if xmlutil.IsNamespaceDecl(attr) {
				continue
			}
			if fd.attrPolicy == UnknownAttrFail {
				return &FormatError{
					Msg: "unexpected attribute " + xmlutil.NameString(attr.Name) +
						" on " + xmlutil.NameString(fd.tag),
				}
			}
		}
		p.ct = fd
		p.ctBuf.Reset()
		return nil
	case *ChildTagField:
		for _, attr := range ev.Attr {
			if xmlutil.IsNamespaceDecl(attr) {
				continue
			}
			if fd.attrPolicy == UnknownAttrFail {
				return &FormatError{
					Msg: "unexpected attribute " + xmlutil.NameString(attr.Name) +
						" on " + xmlutil.NameString(ev.Name),
				}
			}
		}
		p.tagField = fd
		p.tagName = ev.Name
		return nil
	default:
		var reg *Registry
		switch fd := f.(type) {
		case *ChildField:
			reg = fd.registry
		case *ChildListField:
			reg = fd.registry
		case *ChildMapField:
			reg = fd.registry
		}
		p.child = NewParser(reg.Resolve(ev.Name))
		p.childField = f
		return p.feedChild(ev)
	}
}

func (p *Parser) feedChild(ev Event) error {
	res, err := p.child.Feed(ev)
	if err != nil {
		return err
	}
	if res.Done {
		p.obj.appendChild(p.childField, res.Object)
		p.child, p.childField = nil, nil
	}
	return nil
}

func (p *Parser) feedChildText(ev Event) error {
	if p.ctSkip > 0 {
		switch ev.Kind {
		case EventStartElement:
			p.ctSkip++
		case EventEndElement:
			p.ctSkip--
		}
		return nil
	}
	switch ev.Kind {
	case EventText:
		p.ctBuf.WriteString(ev.Text)
	case EventStartElement:
		if p.ct.childPolicy == UnknownChildFail {
			return &FormatError{
				Msg: "unexpected child " + xmlutil.NameString(ev.Name) +
					" in " + xmlutil.NameString(p.ct.tag),
			}
		}
		p.ctSkip = 1
	case EventEndElement:
		v, err := p.ct.fromWire(p.ctBuf.String(), p.ct.describe())
		if err != nil {
			return err
		}
		p.obj.setRaw(p.ct, v)
		p.ct = nil
	}
	return nil
}

func (p *Parser) feedChildTag(ev Event) error {
	if p.tagSkip > 0 {
		switch ev.Kind {
		case EventStartElement:
			p.tagSkip++
		case EventEndElement:
			p.tagSkip--
		}
		return nil
	}
	switch ev.Kind {
	case EventText:
		if strings.TrimSpace(ev.Text) != "" && p.tagField.textPolicy == UnknownTextFail {
			return &FormatError{
				Msg: "unexpected text in " + xmlutil.NameString(p.tagName),
			}
		}
	case EventStartElement:
		if p.tagField.childPolicy == UnknownChildFail {
			return &FormatError{
				Msg: "unexpected child " + xmlutil.NameString(ev.Name) +
					" in " + xmlutil.NameString(p.tagName),
			}
		}
		p.tagSkip = 1
	case EventEndElement:
		p.obj.setRaw(p.tagField, p.tagName)
		p.tagField = nil
	}
	return nil
}

func (p *Parser) feedSkip(ev Event) {
	switch ev.Kind {
	case EventStartElement:
		p.skipDepth++
	case EventEndElement:
		p.skipDepth--
	}
}

func (p *Parser) feedCollect(ev Event) {
	switch ev.Kind {
	case EventStartElement:
		p.collectDepth++
		p.obj.collect(startToken(ev))
	case EventEndElement:
		p.collectDepth--
		p.obj.collect(xml.EndElement{Name: ev.Name})
	case EventText:
		p.obj.collect(xml.CharData(ev.Text))
	}
}

func (p *Parser) ownText(s string) error {
	if p.schema.text != nil {
		p.textBuf.WriteString(s)
		p.sawText = true
		return nil
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if p.schema.collector != nil {
		p.obj.collect(xml.CharData(s))
		return nil
	}
	if p.schema.textPolicy == UnknownTextFail {
		return &FormatError{
			Msg: "unexpected text in " + xmlutil.NameString(p.schema.tag),
		}
	}
	return nil
}

func (p *Parser) finish() (Result, error) {
	if p.sawText {
		v, err := p.schema.text.fromWire(p.textBuf.String(), p.schema.text.describe())
		if err != nil {
			return Result{}, err
		}
		p.obj.setRaw(p.schema.text, v)
	}
	if err := p.obj.checkRequired(); err != nil {
		return Result{}, err
	}
	p.state = parserComplete
	return Result{Done: true, Object: p.obj}, nil
}

func startToken(ev Event) xml.StartElement {
	attr := make([]xml.Attr, len(ev.Attr))
	copy(attr, ev.Attr)
	return xml.StartElement{Name: ev.Name, Attr: attr}
}
