package assert

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"
)

func TestParsePattern(t *testing.T) {
	tests := []struct {
		in      string
		regex   bool
		wantErr string
	}{
		{in: "/RelaX/", regex: true},
		{in: "/relax/i", regex: true},
		{in: "RelaX - relational algebra calculator"},
		{in: "1'a''d'100"},
		{in: "/", regex: false},
		{in: "", wantErr: "must not be empty"},
		{in: "   ", wantErr: "must not be empty"},
		{in: "//", wantErr: "empty regular expression"},
		{in: "/x/g", wantErr: "unsupported flag"},
		{in: "/(/", wantErr: "missing closing )"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			p, err := ParsePattern(tt.in)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.regex, p.IsRegex())
			require.Equal(t, tt.in, p.String())
		})
	}
}

func TestPattern_Title(t *testing.T) {
	title := "RelaX - relational algebra calculator"
	require.True(t, MustPattern("/RelaX/").MatchWhole(title))
	require.False(t, MustPattern("/relax/").MatchWhole(title))
	require.True(t, MustPattern("/relax/i").MatchWhole(title))
	require.True(t, MustPattern(title).MatchWhole("  RelaX -  relational algebra calculator "))
	require.False(t, MustPattern("RelaX").MatchWhole(title), "a literal title must match in full")
}

func TestPattern_Text(t *testing.T) {
	body := "R.a R.d S.b\n1'a''d'100\n4'd''f'200\n5'd''b'200"
	for _, s := range []string{"1'a''d'100", "4'd''f'200", "5'd''b'200"} {
		require.True(t, MustPattern(s).MatchWithin(body), s)
	}
	require.False(t, MustPattern("6'e''f'300").MatchWithin(body))
	require.True(t, MustPattern(`/\d'd''f'\d+/`).MatchWithin(body))
}

func TestPattern_YAML(t *testing.T) {
	var doc struct {
		Title Pattern `yaml:"title"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("title: /RelaX/\n"), &doc))
	require.True(t, doc.Title.IsRegex())

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	require.Equal(t, "title: /RelaX/\n", string(out))

	err = yaml.Unmarshal([]byte("title: \"\"\n"), &doc)
	require.ErrorContains(t, err, "line 1")

	err = yaml.Unmarshal([]byte("title: [a]\n"), &doc)
	require.ErrorContains(t, err, "must be a string")
}

func TestPattern_LiteralContainsItself(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[a-zA-Z0-9' ]{1,30}`).Draw(t, "s")
		if browserBlank(s) {
			t.Skip("blank")
		}
		if s[0] == '/' {
			t.Skip("regex form")
		}
		p, err := ParsePattern(s)
		if err != nil {
			t.Fatalf("literal %q rejected: %v", s, err)
		}
		prefix := rapid.StringMatching(`[a-z ]{0,10}`).Draw(t, "prefix")
		if !p.MatchWithin(prefix + s + prefix) {
			t.Fatalf("%q not found within padded text", s)
		}
		if !p.MatchWhole(s) {
			t.Fatalf("%q does not equal itself", s)
		}
	})
}

func TestPattern_RegexRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-zA-Z]{1,12}`).Draw(t, "word")
		p, err := ParsePattern("/" + regexp.QuoteMeta(word) + "/i")
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		if !p.MatchWithin("xx " + word + " yy") {
			t.Fatalf("regex %s failed on its own word", p)
		}
	})
}

func browserBlank(s string) bool {
	for _, r := range s {
		if r != ' ' {
			return false
		}
	}
	return true
}
