package dialog

import (
	"embed"
	"io"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
)

// ViewName is the template name of the dialog.
const ViewName = "login_dialog"

//go:embed views
var viewsFS embed.FS

// GetViewsFS returns the dialog templates rooted at the views directory.
func GetViewsFS() fs.FS {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		return viewsFS
	}
	return sub
}

// NewViewEngine returns a django engine serving the embedded templates with
// TemplateFuncs as globals. Pass it to the fiber adapter as the views engine.
func NewViewEngine() *django.Engine {
	engine := django.NewFileSystem(http.FS(GetViewsFS()), ".html")
	engine.AddFuncMap(TemplateFuncs())
	return engine
}

// RenderView writes the dialog for v using engine.
func RenderView(w io.Writer, engine *django.Engine, v View) error {
	return engine.Render(w, ViewName, v.ToViewContext())
}
