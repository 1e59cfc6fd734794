// Package render 把页面模板渲染成字节，便于整页缓存
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"strings"
	"time"
)

//go:embed templates
var embedded embed.FS

// Renderer 页面名形如 posts/index
type Renderer struct {
	pages map[string]*template.Template
}

// New 使用内置模板
func New(mediaURL func(string) string) (*Renderer, error) {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	return NewFromFS(sub, mediaURL)
}

// NewFromDir 从磁盘目录加载，目录结构与内置模板一致
func NewFromDir(dir string, mediaURL func(string) string) (*Renderer, error) {
	return NewFromFS(os.DirFS(dir), mediaURL)
}

func NewFromFS(fsys fs.FS, mediaURL func(string) string) (*Renderer, error) {
	funcs := template.FuncMap{
		"media": mediaURL,
		"date": func(t time.Time) string {
			return t.Format("02.01.2006 15:04")
		},
		"truncate": func(s string, n int) string {
			r := []rune(s)
			if len(r) <= n {
				return s
			}
			return string(r[:n]) + "…"
		},
		"deref": func(v *uint) uint {
			if v == nil {
				return 0
			}
			return *v
		},
		"linebreaks": func(s string) template.HTML {
			lines := strings.Split(template.HTMLEscapeString(s), "\n")
			return template.HTML(strings.Join(lines, "<br>"))
		},
	}

	shared := []string{"layout/base.html"}
	includes, err := fs.Glob(fsys, "includes/*.html")
	if err != nil {
		return nil, err
	}
	shared = append(shared, includes...)

	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, dir := range []string{"posts", "users", "core"} {
		files, err := fs.Glob(fsys, dir+"/*.html")
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			t, err := template.New(path.Base(f)).Funcs(funcs).ParseFS(fsys, append(append([]string{}, shared...), f)...)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", f, err)
			}
			r.pages[strings.TrimSuffix(f, ".html")] = t
		}
	}
	return r, nil
}

// Render 执行 base 布局
func (r *Renderer) Render(name string, data any) ([]byte, error) {
	t, ok := r.pages[name]
	if !ok {
		return nil, fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// Has 测试用
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}
