package stanzaerr

// Option is an Error option function
type Option func(*Error)

func WithText(text string) Option { return func(e *Error) { e.Text = text } }
func WithType(t Type) Option      { return func(e *Error) { e.Type = t } }
func WithBy(by string) Option     { return func(e *Error) { e.By = by } }
