package jid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		input   string
		want    JID
		wantErr string
	}{
		{input: "romeo@montague.example", want: JID{Local: "romeo", Domain: "montague.example"}},
		{
			input: "romeo@montague.example/garden",
			want:  JID{Local: "romeo", Domain: "montague.example", Resource: "garden"},
		},
		{input: "montague.example", want: JID{Domain: "montague.example"}},
		{
			input: "montague.example/balcony",
			want:  JID{Domain: "montague.example", Resource: "balcony"},
		},
		{
			// resourceparts may contain @ and /
			input: "juliet@capulet.example/balcony/west@wing",
			want:  JID{Local: "juliet", Domain: "capulet.example", Resource: "balcony/west@wing"},
		},
		{
			// an @ after the first / belongs to the resourcepart
			input: "capulet.example/nurse@home",
			want:  JID{Domain: "capulet.example", Resource: "nurse@home"},
		},
		{input: "@capulet.example", wantErr: `empty localpart in jid "@capulet.example"`},
		{input: "juliet@capulet.example/", wantErr: `empty resourcepart in jid "juliet@capulet.example/"`},
		{input: "", wantErr: `empty domainpart in jid ""`},
		{input: "juliet@", wantErr: `empty domainpart in jid "juliet@"`},
	} {
		t.Run(tc.input, func(t *testing.T) {
			ck := assert.New(t)
			got, err := Parse(tc.input)
			if tc.wantErr != "" {
				ck.EqualError(err, tc.wantErr)
				return
			}
			ck.NoError(err)
			ck.Equal(tc.want, got)
			ck.Equal(tc.input, got.String())
		})
	}
}

func TestBare(t *testing.T) {
	ck := assert.New(t)
	full := MustParse("romeo@montague.example/garden")
	ck.False(full.IsBare())
	bare := full.Bare()
	ck.True(bare.IsBare())
	ck.Equal("romeo@montague.example", bare.String())
	ck.False(bare.IsDomain())
	ck.True(MustParse("montague.example").IsDomain())
}

func TestWithResource(t *testing.T) {
	ck := assert.New(t)
	j, err := MustParse("romeo@montague.example").WithResource("orchard")
	ck.NoError(err)
	ck.Equal("romeo@montague.example/orchard", j.String())
	_, err = j.WithResource("")
	ck.EqualError(err, "resourcepart must not be empty")
}

func TestMustParsePanics(t *testing.T) {
	assert.Panics(t, func() { MustParse("@") })
}
