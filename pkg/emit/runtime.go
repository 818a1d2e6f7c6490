package emit

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/towerpack/pkg/deps"
	"github.com/matzehuels/towerpack/pkg/scan"
)

// runtime is prepended to every entry chunk. It installs itself once per
// page on the shared queue, runs every define batch pushed before or after
// it, and exposes start. A chunk loaded by start as a dependency of another
// entry registers its modules but does not run its own entry.
const runtime = `(function () {
  var queue = self.__towerpack__ = self.__towerpack__ || [];
  if (queue.start) return;
  var defs = {}, cache = {};
  function define(id, deps, fn) {
    if (!defs[id]) defs[id] = { deps: deps, fn: fn };
  }
  function load(id) {
    if (cache[id]) return cache[id].exports;
    var def = defs[id];
    if (!def) throw new Error("towerpack: module " + id + " is not loaded");
    var module = cache[id] = { id: id, exports: {} };
    def.fn.call(module.exports, module, module.exports, function (spec) {
      if (!Object.prototype.hasOwnProperty.call(def.deps, spec)) {
        throw new Error("Cannot find module '" + spec + "' from " + id);
      }
      var target = def.deps[spec];
      return target === null ? {} : load(target);
    });
    return module.exports;
  }
  for (var i = 0; i < queue.length; i++) queue[i](define);
  queue.push = function (batch) { batch(define); return 0; };
  queue.start = function (files, main) {
    var script = typeof document !== "undefined" ? document.currentScript : null;
    var dependency = !!(script && script.hasAttribute("data-towerpack-dep"));
    var pending = 1;
    function done() {
      if (--pending === 0 && !dependency) load(main);
    }
    if (typeof document !== "undefined") {
      files.forEach(function (src) {
        if (document.querySelector('script[src="' + src + '"]')) return;
        pending++;
        var s = document.createElement("script");
        s.src = src;
        s.async = false;
        s.setAttribute("data-towerpack-dep", "");
        s.onload = done;
        s.onerror = function () {
          console.error("towerpack: failed to load " + src);
          done();
        };
        document.head.appendChild(s);
      });
    }
    done();
  };
})();
`

// writeDefines renders the modules of a JS chunk as one define batch.
func writeDefines(buf *bytes.Buffer, g *deps.Graph, ids []string) {
	buf.WriteString("(self.__towerpack__ = self.__towerpack__ || []).push(function (define) {\n")
	for _, id := range ids {
		m, _ := g.Module(id)
		fmt.Fprintf(buf, "define(%s, %s, function (module, exports, require) {\n", quote(m.ID), depMap(g, m))
		buf.Write(moduleBody(m))
		buf.WriteString("\n});\n")
	}
	buf.WriteString("});\n")
}

// depMap renders {specifier: targetID|null} in import order. Style targets
// map to null since their content lives in a css chunk; unresolved imports
// are omitted so that requiring them throws.
func depMap(g *deps.Graph, m *deps.Module) string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, imp := range m.Imports {
		if imp.Err != nil {
			continue
		}
		t := g.Modules[imp.Resolved]
		if !first {
			buf.WriteString(", ")
		}
		first = false
		buf.WriteString(quote(imp.Specifier))
		buf.WriteString(": ")
		if t.Kind == scan.KindStyle {
			buf.WriteString("null")
		} else {
			buf.WriteString(quote(t.ID))
		}
	}
	buf.WriteByte('}')
	return buf.String()
}

// moduleBody returns the CommonJS body of m.
func moduleBody(m *deps.Module) []byte {
	if m.Err != nil {
		return []byte("throw new Error(" + quote(m.Err.Error()) + ");")
	}
	switch {
	case m.CommonJS:
		return bytes.TrimRight(m.Output, "\n")
	case m.Kind == scan.KindJSON:
		return []byte("module.exports = " + string(bytes.TrimSpace(m.Output)) + ";")
	default:
		return []byte("module.exports = " + quote(string(m.Output)) + ";")
	}
}

func writeStart(buf *bytes.Buffer, files []string, main string) {
	if files == nil {
		files = []string{}
	}
	list, _ := json.Marshal(files)
	fmt.Fprintf(buf, "self.__towerpack__.start(%s, %s);\n", list, quote(main))
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
