package shellcache

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"text/template"
)

//go:embed sw.js.tmpl
var scriptSource string

var scriptTemplate = template.Must(template.New("sw.js").Funcs(template.FuncMap{
	"json": func(v any) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}).Parse(scriptSource))

type scriptData struct {
	Manifest
	CachePrefix string
	HomeKey     string
	SkipWaiting string
	Immediate   bool
}

// RenderScript renders the browser worker for m under policy.
func RenderScript(m Manifest, policy TakeoverPolicy) ([]byte, error) {
	var buf bytes.Buffer
	err := scriptTemplate.Execute(&buf, scriptData{
		Manifest:    m,
		CachePrefix: CachePrefix,
		HomeKey:     HomeKey,
		SkipWaiting: MessageSkipWaiting,
		Immediate:   policy == Immediate,
	})
	if err != nil {
		return nil, fmt.Errorf("render worker script: %w", err)
	}
	return buf.Bytes(), nil
}

// ParsePolicy maps "immediate" to Immediate; anything else is UserGated.
func ParsePolicy(s string) TakeoverPolicy {
	if s == "immediate" {
		return Immediate
	}
	return UserGated
}
