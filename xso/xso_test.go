package xso

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/varka/xmpp/xmlutil"
)

// feedString tokenizes the document and feeds every event to p, returning
// the first completed result or error.
func feedString(t *testing.T, p *Parser, doc string) (Result, error) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			t.Fatalf("document ended before the parser completed: %q", doc)
		}
		assert.NoError(t, err)
		var res Result
		switch tk := tok.(type) {
		case xml.StartElement:
			st := tk.Copy()
			res, err = p.Feed(StartElementEvent(st.Name, st.Attr...))
		case xml.EndElement:
			res, err = p.Feed(EndElementEvent(tk.Name))
		case xml.CharData:
			res, err = p.Feed(TextEvent(string(tk)))
		default:
			continue
		}
		if err != nil || res.Done {
			return res, err
		}
	}
}

func TestParseMessage(t *testing.T) {
	ck := assert.New(t)

	id := Attr("id", WithType(Integer{}), Required())
	body := ChildText("{x}body")
	msg := MustSchema("message", "{x}msg", []Field{id, body})

	res, err := feedString(t, NewParser(msg), `<msg xmlns="x" id="42"><body>hi</body></msg>`)
	ck.NoError(err)
	ck.True(res.Done)
	ck.Equal(int64(42), res.Object.Get(id))
	ck.Equal("hi", res.Object.Get(body))
	ck.Equal("x", res.Object.NamespaceDecls().Namespace(""))
}

func TestParseRequiredAttrMissing(t *testing.T) {
	ck := assert.New(t)

	id := Attr("id", Required())
	msg := MustSchema("message", "{x}msg", []Field{id})

	_, err := feedString(t, NewParser(msg), `<msg xmlns="x"></msg>`)
	ck.Error(err)
	miss, ok := err.(*MissingDataError)
	if ck.True(ok) {
		ck.Equal("message", miss.Schema)
		ck.Contains(miss.Field, "id")
	}
}

func TestParseText(t *testing.T) {
	ck := assert.New(t)

	txt := Text(WithType(Integer{}))
	el := MustSchema("count", "{x}count", []Field{txt})

	res, err := feedString(t, NewParser(el), `<count xmlns="x">17</count>`)
	ck.NoError(err)
	ck.Equal(int64(17), res.Object.Get(txt))
	ck.True(res.Object.Has(txt))
}

func TestParseTextSplitAcrossEvents(t *testing.T) {
	ck := assert.New(t)

	txt := Text()
	el := MustSchema("note", "{x}note", []Field{txt})

	p := NewParser(el)
	_, err := p.Feed(StartElementEvent(xmlutil.XMLName("note", "x")))
	ck.NoError(err)
	_, err = p.Feed(TextEvent("hel"))
	ck.NoError(err)
	_, err = p.Feed(TextEvent("lo"))
	ck.NoError(err)
	res, err := p.Feed(EndElementEvent(xmlutil.XMLName("note", "x")))
	ck.NoError(err)
	ck.True(res.Done)
	ck.Equal("hello", res.Object.Get(txt))
}

func TestParseChildList(t *testing.T) {
	ck := assert.New(t)

	name := Attr("name")
	item := MustSchema("item", "{x}item", []Field{name})
	items := ChildList([]*Schema{item})
	list := MustSchema("list", "{x}list", []Field{items})

	res, err := feedString(t, NewParser(list),
		`<list xmlns="x"><item name="a"/><item name="b"/></list>`)
	ck.NoError(err)
	got := *res.Object.Children(items)
	if ck.Len(got, 2) {
		ck.Equal("a", got[0].Get(name))
		ck.Equal("b", got[1].Get(name))
	}
}

func TestParseChildMap(t *testing.T) {
	ck := assert.New(t)

	variant := Attr("var")
	feature := MustSchema("feature", "{x}feature", []Field{variant})
	features := ChildMap([]*Schema{feature}, KeyByAttr(variant))
	host := MustSchema("host", "{x}host", []Field{features})

	res, err := feedString(t, NewParser(host),
		`<host xmlns="x"><feature var="p"/><feature var="q"/><feature var="p"/></host>`)
	ck.NoError(err)
	m := res.Object.ChildMap(features)
	ck.Len(m["p"], 2)
	ck.Len(m["q"], 1)
}

func TestParseChildOverwrites(t *testing.T) {
	ck := assert.New(t)

	v := Attr("v")
	inner := MustSchema("inner", "{x}inner", []Field{v})
	one := Child([]*Schema{inner})
	outer := MustSchema("outer", "{x}outer", []Field{one})

	res, err := feedString(t, NewParser(outer),
		`<outer xmlns="x"><inner v="1"/><inner v="2"/></outer>`)
	ck.NoError(err)
	ck.Equal("2", res.Object.Get(one).(*Object).Get(v))
}

func TestParseChildTag(t *testing.T) {
	ck := assert.New(t)

	show := ChildTag([]interface{}{"{x}away", "{x}dnd"})
	pres := MustSchema("presence", "{x}presence", []Field{show})

	res, err := feedString(t, NewParser(pres), `<presence xmlns="x"><dnd/></presence>`)
	ck.NoError(err)
	ck.Equal(xmlutil.XMLName("dnd", "x"), res.Object.Get(show))
}

func TestParseUnknownChildFail(t *testing.T) {
	ck := assert.New(t)

	el := MustSchema("strict", "{x}strict", nil)
	_, err := feedString(t, NewParser(el), `<strict xmlns="x"><bogus/></strict>`)
	ck.Error(err)
	ck.IsType(&FormatError{}, err)
}

func TestParseUnknownChildDropped(t *testing.T) {
	ck := assert.New(t)

	txt := ChildText("{x}keep")
	el := MustSchema("loose", "{x}loose", []Field{txt},
		WithUnknownChildPolicy(UnknownChildDrop))

	res, err := feedString(t, NewParser(el),
		`<loose xmlns="x"><bogus><deep/></bogus><keep>v</keep></loose>`)
	ck.NoError(err)
	ck.Equal("v", res.Object.Get(txt))
}

func TestParseUnknownAttr(t *testing.T) {
	ck := assert.New(t)

	strict := MustSchema("strict", "{x}strict", nil)
	_, err := feedString(t, NewParser(strict), `<strict xmlns="x" bogus="1"/>`)
	ck.Error(err)

	loose := MustSchema("loose", "{x}loose", nil,
		WithUnknownAttrPolicy(UnknownAttrDrop))
	res, err := feedString(t, NewParser(loose), `<loose xmlns="x" bogus="1"/>`)
	ck.NoError(err)
	ck.True(res.Done)
}

func TestParseCollector(t *testing.T) {
	ck := assert.New(t)

	caught := Collector()
	el := MustSchema("open", "{x}open", []Field{caught},
		WithUnknownChildPolicy(UnknownChildDrop))

	res, err := feedString(t, NewParser(el),
		`<open xmlns="x"><extra a="1">inner</extra></open>`)
	ck.NoError(err)
	toks := *res.Object.Collected(caught)
	if ck.Len(toks, 3) {
		st, ok := toks[0].(xml.StartElement)
		if ck.True(ok) {
			ck.Equal("extra", st.Name.Local)
		}
		ck.Equal(xml.CharData("inner"), toks[1])
		ck.IsType(xml.EndElement{}, toks[2])
	}
}

func TestParseCollectorOverridesFailPolicies(t *testing.T) {
	ck := assert.New(t)

	// Default policies are fail; a declared Collector captures stray
	// content before the policies are consulted.
	caught := Collector()
	el := MustSchema("open", "{x}open", []Field{caught})

	res, err := feedString(t, NewParser(el), `<open xmlns="x">stray</open>`)
	ck.NoError(err)
	toks := *res.Object.Collected(caught)
	if ck.Len(toks, 1) {
		ck.Equal(xml.CharData("stray"), toks[0])
	}

	caught2 := Collector()
	el2 := MustSchema("open2", "{x}open2", []Field{caught2})

	res, err = feedString(t, NewParser(el2), `<open2 xmlns="x"><unknown/></open2>`)
	ck.NoError(err)
	toks = *res.Object.Collected(caught2)
	if ck.Len(toks, 2) {
		st, ok := toks[0].(xml.StartElement)
		if ck.True(ok) {
			ck.Equal("unknown", st.Name.Local)
		}
	}
}

func TestParseValidatorFromRecv(t *testing.T) {
	ck := assert.New(t)

	kind := Attr("type", WithValidator(
		RestrictToSet{"get", "set"}, ValidateFromRecv))
	iq := MustSchema("iq", "{x}iq", []Field{kind})

	_, err := feedString(t, NewParser(iq), `<iq xmlns="x" type="bogus"/>`)
	ck.Error(err)
	verr, ok := err.(*ValidationError)
	if ck.True(ok) {
		ck.Equal("bogus", verr.Value)
	}

	res, err := feedString(t, NewParser(iq), `<iq xmlns="x" type="get"/>`)
	ck.NoError(err)
	ck.Equal("get", res.Object.Get(kind))
}

func TestSetValidation(t *testing.T) {
	ck := assert.New(t)

	kind := Attr("type", WithValidator(
		RestrictToSet{"get", "set"}, ValidateAlways))
	iq := MustSchema("iq", "{x}iq", []Field{kind})

	o := iq.New()
	ck.Error(o.Set(kind, "bogus"))
	ck.NoError(o.Set(kind, "set"))
	ck.Equal("set", o.Get(kind))
	o.Unset(kind)
	ck.False(o.Has(kind))
}

func TestDefaultValue(t *testing.T) {
	ck := assert.New(t)

	prio := Attr("priority", WithType(Integer{}), WithDefault(int64(0)))
	pres := MustSchema("presence", "{x}presence", []Field{prio})

	o := pres.New()
	ck.Equal(int64(0), o.Get(prio))
	ck.False(o.Has(prio))
	ck.NoError(o.Set(prio, 5))
	ck.Equal(int64(5), o.Get(prio))
}

func TestDeclarationErrors(t *testing.T) {
	ck := assert.New(t)

	_, err := NewSchema("dup", "{x}el", []Field{
		Attr("a"), Attr("a"),
	})
	ck.Error(err)
	ck.IsType(&DeclarationError{}, err)

	_, err = NewSchema("twotext", "{x}el", []Field{Text(), Text()})
	ck.Error(err)

	sub := MustSchema("sub", "{x}sub", nil)
	_, err = NewSchema("overlap", "{x}el", []Field{
		Child([]*Schema{sub}),
		ChildList([]*Schema{sub}),
	})
	ck.Error(err)
	derr, ok := err.(*DeclarationError)
	if ck.True(ok) {
		ck.Contains(derr.Msg, "{x}sub")
	}

	_, err = NewSchema("badtag", "{x", nil)
	ck.Error(err)
}

func TestLateRegistration(t *testing.T) {
	ck := assert.New(t)

	payload := Child(nil)
	iq := MustSchema("iq", "{x}iq", []Field{payload})

	ping := MustSchema("ping", "{p}ping", nil)
	ck.NoError(payload.Register(ping))

	res, err := feedString(t, NewParser(iq),
		`<iq xmlns="x"><ping xmlns="p"/></iq>`)
	ck.NoError(err)
	sub := res.Object.Get(payload).(*Object)
	ck.Equal(ping, sub.Schema())

	// conflicting tag rejected against every owner
	other := MustSchema("ping2", "{p}ping", nil)
	ck.Error(payload.Register(other))
}

func TestSchemaInheritance(t *testing.T) {
	ck := assert.New(t)

	from := Attr("from")
	base := MustSchema("stanza", "{x}stanza", []Field{from},
		WithUnknownAttrPolicy(UnknownAttrDrop))

	body := ChildText("{x}body")
	msg := MustSchema("message", "{x}message", []Field{body}, WithBase(base))

	res, err := feedString(t, NewParser(msg),
		`<message xmlns="x" from="a@b" seen="1"><body>hi</body></message>`)
	ck.NoError(err)
	ck.Equal("a@b", res.Object.Get(from))
	ck.Equal("hi", res.Object.Get(body))
}

func TestSharedDescriptorRebindRejected(t *testing.T) {
	ck := assert.New(t)

	from := Attr("from")
	MustSchema("a", "{x}a", []Field{from})

	// same slot in a second schema is fine
	_, err := NewSchema("b", "{x}b", []Field{from})
	ck.NoError(err)

	// a different slot is not
	_, err = NewSchema("c", "{x}c", []Field{Attr("id"), from})
	ck.Error(err)
}

func TestEncodeRoundTrip(t *testing.T) {
	ck := assert.New(t)

	id := Attr("id", WithType(Integer{}))
	body := ChildText("{x}body")
	show := ChildTag([]interface{}{"{x}away", "{x}dnd"})
	msg := MustSchema("message", "{x}msg", []Field{id, body, show})

	o := msg.New()
	ck.NoError(o.Set(id, 7))
	ck.NoError(o.Set(body, "hello"))
	ck.NoError(o.Set(show, "{x}away"))

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	ck.NoError(o.Encode(enc))
	ck.NoError(enc.Flush())

	res, err := feedString(t, NewParser(msg), buf.String())
	ck.NoError(err)
	ck.Equal(int64(7), res.Object.Get(id))
	ck.Equal("hello", res.Object.Get(body))
	ck.Equal(xmlutil.XMLName("away", "x"), res.Object.Get(show))
}

func TestEncodeRequiredMissing(t *testing.T) {
	ck := assert.New(t)

	id := Attr("id", Required())
	msg := MustSchema("message", "{x}msg", []Field{id})

	_, err := msg.New().Tokens()
	ck.Error(err)
	ck.IsType(&MissingDataError{}, err)
}

func TestDriverDispatch(t *testing.T) {
	ck := assert.New(t)

	a := MustSchema("a", "{x}a", nil)
	b := MustSchema("b", "{x}b", nil)
	reg := MustRegistry(a, b)

	var seen []*Object
	var errs []error
	d := NewDriver(reg,
		func(o *Object) { seen = append(seen, o) },
		func(err error) { errs = append(errs, err) })

	dec := xml.NewDecoder(strings.NewReader(
		`<root><a xmlns="x"/><bogus><nested/></bogus><b xmlns="x"/></root>`))
	// consume the synthetic wrapper element
	_, err := dec.Token()
	ck.NoError(err)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		ck.NoError(err)
		switch tk := tok.(type) {
		case xml.StartElement:
			st := tk.Copy()
			ck.NoError(d.Feed(StartElementEvent(st.Name, st.Attr...)))
		case xml.EndElement:
			if tk.Name.Local == "root" {
				continue
			}
			ck.NoError(d.Feed(EndElementEvent(tk.Name)))
		case xml.CharData:
			ck.NoError(d.Feed(TextEvent(string(tk))))
		}
	}

	if ck.Len(seen, 2) {
		ck.Equal(a, seen[0].Schema())
		ck.Equal(b, seen[1].Schema())
	}
	if ck.Len(errs, 1) {
		ck.IsType(&UnknownTopLevelTagError{}, errs[0])
	}
}

func TestDriverRecoversFromParseError(t *testing.T) {
	ck := assert.New(t)

	id := Attr("id", Required())
	a := MustSchema("a", "{x}a", []Field{id})
	reg := MustRegistry(a)

	var seen []*Object
	var errs []error
	d := NewDriver(reg,
		func(o *Object) { seen = append(seen, o) },
		func(err error) { errs = append(errs, err) })

	n := xmlutil.XMLName("a", "x")
	ck.NoError(d.Feed(StartElementEvent(n)))
	err := d.Feed(EndElementEvent(n))
	ck.Error(err)
	ck.IsType(&MissingDataError{}, err)

	ck.NoError(d.Feed(StartElementEvent(n, xml.Attr{
		Name: xml.Name{Local: "id"}, Value: "ok",
	})))
	ck.NoError(d.Feed(EndElementEvent(n)))

	ck.Len(seen, 1)
	ck.Empty(errs)
}

func TestDriveDecoder(t *testing.T) {
	ck := assert.New(t)

	body := ChildText("{x}body")
	msg := MustSchema("message", "{x}message", []Field{body})
	reg := MustRegistry(msg)

	var seen []*Object
	d := NewDriver(reg, func(o *Object) { seen = append(seen, o) }, nil)

	dec := xml.NewDecoder(strings.NewReader(
		`<message xmlns="x"><body>one</body></message>` +
			`<message xmlns="x"><body>two</body></message>`))
	ck.NoError(d.DriveDecoder(context.Background(), dec))
	if ck.Len(seen, 2) {
		ck.Equal("one", seen[0].Get(body))
		ck.Equal("two", seen[1].Get(body))
	}
}
