package stanza

import (
	"encoding/xml"

	"github.com/varka/xmpp/stanzaerr"
	"github.com/varka/xmpp/xso"
)

// Conditions enumerates the defined stanza error conditions of RFC 6120
// section 8.3.3.
var Conditions = []string{
	"bad-request",
	"conflict",
	"feature-not-implemented",
	"forbidden",
	"gone",
	"internal-server-error",
	"item-not-found",
	"jid-malformed",
	"not-acceptable",
	"not-allowed",
	"not-authorized",
	"policy-violation",
	"recipient-unavailable",
	"redirect",
	"registration-required",
	"remote-server-not-found",
	"remote-server-timeout",
	"resource-constraint",
	"service-unavailable",
	"subscription-required",
	"undefined-condition",
	"unexpected-request",
}

func conditionTags() []interface{} {
	tags := make([]interface{}, len(Conditions))
	for i, c := range Conditions {
		tags[i] = xml.Name{Space: stanzaerr.NSStanzas, Local: c}
	}
	return tags
}

var (
	fErrType = xso.Attr("type", xso.Required(), xso.WithValidator(
		xso.RestrictToSet{"auth", "cancel", "continue", "modify", "wait"},
		xso.ValidateAlways))
	fErrBy = xso.Attr("by")
	// defined conditions may carry text (gone, redirect) which is dropped
	fErrCond = xso.ChildTag(conditionTags(), xso.Required(),
		xso.WithTextPolicy(xso.UnknownTextDrop),
		xso.WithAttrPolicy(xso.UnknownAttrDrop))
	fErrText = xso.ChildText("{"+stanzaerr.NSStanzas+"}text",
		xso.WithAttrPolicy(xso.UnknownAttrDrop))
)

// errorSchema parses the stanza error child. Application-specific
// condition elements outside the stanzas namespace are dropped.
var errorSchema = xso.MustSchema("error", "{"+NSClient+"}error",
	[]xso.Field{fErrType, fErrBy, fErrCond, fErrText},
	xso.WithUnknownChildPolicy(xso.UnknownChildDrop))

// ErrorSchema returns the schema for the stanza error child element.
func ErrorSchema() *xso.Schema { return errorSchema }

// ErrorFromObject converts a parsed error element to a stanzaerr.Error.
func ErrorFromObject(o *xso.Object) (*stanzaerr.Error, error) {
	e := &stanzaerr.Error{}
	if err := e.Type.UnmarshalText([]byte(o.Get(fErrType).(string))); err != nil {
		return nil, err
	}
	if o.Has(fErrBy) {
		e.By = o.Get(fErrBy).(string)
	}
	e.Condition = o.Get(fErrCond).(xml.Name).Local
	if o.Has(fErrText) {
		e.Text = o.Get(fErrText).(string)
	}
	return e, nil
}

// ErrorObject converts a stanzaerr.Error to an error element record.
func ErrorObject(e *stanzaerr.Error) (*xso.Object, error) {
	o := errorSchema.New()
	if err := o.Set(fErrType, e.Type.String()); err != nil {
		return nil, err
	}
	if e.By != "" {
		if err := o.Set(fErrBy, e.By); err != nil {
			return nil, err
		}
	}
	if err := o.Set(fErrCond, xml.Name{
		Space: stanzaerr.NSStanzas, Local: e.Condition,
	}); err != nil {
		return nil, err
	}
	if e.Text != "" {
		if err := o.Set(fErrText, e.Text); err != nil {
			return nil, err
		}
	}
	return o, nil
}
