package webdav

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIfHeader(t *testing.T) {
	asserts := assert.New(t)

	testCases := []struct {
		desc  string
		input string
		want  ifHeader
		ok    bool
	}{{
		"bad: empty",
		``,
		ifHeader{},
		false,
	}, {
		"bad: no parens",
		`foobar`,
		ifHeader{},
		false,
	}, {
		"bad: empty list #1",
		`()`,
		ifHeader{},
		false,
	}, {
		"bad: no list after resource #1",
		`<foo>`,
		ifHeader{},
		false,
	}, {
		"bad: no list after resource #2",
		`<foo> <bar> (a)`,
		ifHeader{},
		false,
	}, {
		"bad: unterminated angle",
		`(<foo)`,
		ifHeader{},
		false,
	}, {
		"bad: unterminated list",
		`(a`,
		ifHeader{},
		false,
	}, {
		"bad: Not without condition",
		`(Not)`,
		ifHeader{},
		false,
	}, {
		"good: one list with a Token",
		`(a)`,
		ifHeader{lists: []ifList{{
			conditions: []Condition{{Token: `a`}},
		}}},
		true,
	}, {
		"good: token and etag then etag",
		`(<urn:uuid:181d4fae-7d8c-11d0-a765-00a0c91e6bf2>["I am an ETag"])(["I am another ETag"])`,
		ifHeader{lists: []ifList{{
			conditions: []Condition{{
				Token: `urn:uuid:181d4fae-7d8c-11d0-a765-00a0c91e6bf2`,
			}, {
				ETag: `"I am an ETag"`,
			}},
		}, {
			conditions: []Condition{{
				ETag: `"I am another ETag"`,
			}},
		}}},
		true,
	}, {
		"good: Not applies to the following condition",
		`(Not <urn:uuid:181d4fae-7d8c-11d0-a765-00a0c91e6bf2><urn:uuid:58f202ac-22cf-11d1-b12d-002035b29092>)`,
		ifHeader{lists: []ifList{{
			conditions: []Condition{{
				Not:   true,
				Token: `urn:uuid:181d4fae-7d8c-11d0-a765-00a0c91e6bf2`,
			}, {
				Token: `urn:uuid:58f202ac-22cf-11d1-b12d-002035b29092`,
			}},
		}}},
		true,
	}, {
		"good: tagged list with weak etag",
		`</resource1>(<urn:uuid:181d4fae-7d8c-11d0-a765-00a0c91e6bf2>[W/"A weak ETag"]) (["strong ETag"])`,
		ifHeader{lists: []ifList{{
			resourceTag: `/resource1`,
			conditions: []Condition{{
				Token: `urn:uuid:181d4fae-7d8c-11d0-a765-00a0c91e6bf2`,
			}, {
				ETag: `"A weak ETag"`,
			}},
		}, {
			resourceTag: `/resource1`,
			conditions: []Condition{{
				ETag: `"strong ETag"`,
			}},
		}}},
		true,
	}, {
		"good: two tags",
		`<http://www.example.com/specs/> (<urn:uuid:1>) <http://www.example.com/other> (Not [etag])`,
		ifHeader{lists: []ifList{{
			resourceTag: `http://www.example.com/specs/`,
			conditions:  []Condition{{Token: `urn:uuid:1`}},
		}, {
			resourceTag: `http://www.example.com/other`,
			conditions:  []Condition{{Not: true, ETag: `etag`}},
		}}},
		true,
	}}

	for _, tc := range testCases {
		got, ok := parseIfHeader(tc.input)
		asserts.Equal(tc.ok, ok, tc.desc)
		if tc.ok {
			asserts.Equal(tc.want, got, tc.desc)
		}
	}
}

func TestLex(t *testing.T) {
	asserts := assert.New(t)

	tokenType, tokenStr, remaining := lex("  Not <a>")
	asserts.Equal(notTokenType, tokenType)
	asserts.Empty(tokenStr)
	asserts.Equal(" <a>", remaining)

	tokenType, tokenStr, remaining = lex(" <a>)")
	asserts.Equal(angleTokenType, tokenType)
	asserts.Equal("a", tokenStr)
	asserts.Equal(")", remaining)

	tokenType, _, _ = lex("   ")
	asserts.Equal(eofTokenType, tokenType)

	tokenType, _, _ = lex("[never closed")
	asserts.Equal(errTokenType, tokenType)
}
