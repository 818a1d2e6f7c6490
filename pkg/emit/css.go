package emit

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/scan"
)

var (
	urlToken   = regexp.MustCompile(`url\(\s*(?:"([^"]*)"|'([^']*)'|([^)'"\s]*))\s*\)`)
	importRule = regexp.MustCompile(`@import\s*(?:url\(\s*)?(?:"([^"]*)"|'([^']*)'|([^)'"\s;]+))\s*\)?[^;]*;\s*`)
)

func firstGroup(sub [][]byte) string {
	for _, g := range sub[1:] {
		if len(g) > 0 {
			return string(g)
		}
	}
	return ""
}

// renderCSS concatenates the style modules of a chunk. url() references to
// bundled modules are rewritten to their public URL, @imports of bundled
// modules are dropped, and any remaining @imports are hoisted to the top
// where CSS requires them.
func renderCSS(g *deps.Graph, ids []string) []byte {
	var hoisted, body bytes.Buffer
	for _, id := range ids {
		m, _ := g.Module(id)
		if m.Err != nil {
			body.WriteString("/* " + m.ID + ": " + sanitizeComment(m.Err.Error()) + " */\n")
			continue
		}

		urls := make(map[string]string)
		bundled := make(map[string]bool)
		for _, imp := range m.Imports {
			if imp.Err != nil {
				continue
			}
			t := g.Modules[imp.Resolved]
			if t.Kind == scan.KindStyle {
				bundled[imp.Specifier] = true
				continue
			}
			if !t.Failed() {
				urls[imp.Specifier] = string(t.Output)
			}
		}

		css := importRule.ReplaceAllFunc(m.Output, func(rule []byte) []byte {
			spec := firstGroup(importRule.FindSubmatch(rule))
			if !bundled[spec] {
				hoisted.Write(bytes.TrimSpace(rule))
				hoisted.WriteByte('\n')
			}
			return nil
		})
		css = urlToken.ReplaceAllFunc(css, func(tok []byte) []byte {
			spec := firstGroup(urlToken.FindSubmatch(tok))
			if u, ok := urls[spec]; ok {
				return []byte(`url("` + strings.ReplaceAll(u, `"`, `\"`) + `")`)
			}
			return tok
		})

		body.Write(bytes.TrimRight(css, "\n"))
		body.WriteByte('\n')
	}
	return append(hoisted.Bytes(), body.Bytes()...)
}

func sanitizeComment(s string) string {
	return strings.ReplaceAll(s, "*/", "* /")
}
