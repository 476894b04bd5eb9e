package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/cwlviz/internal/config"
	"github.com/me/cwlviz/internal/logging"
	"github.com/me/cwlviz/internal/render"
	"github.com/me/cwlviz/internal/store"
	"github.com/me/cwlviz/pkg/model"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := logging.Discard()
	st, err := store.NewSQLiteStore(":memory:", logger)
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	r := chi.NewRouter()
	r.Route("/ui", New(st, render.New(logger), config.Default().Render, logger).RegisterRoutes)
	return r
}

func readTestdata(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "testdata", rel))
	require.NoError(t, err)
	return string(data)
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestGraphList_Empty(t *testing.T) {
	w := get(testRouter(t), "/ui/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "No graphs yet.")
}

func TestGraphCreate_Form(t *testing.T) {
	w := get(testRouter(t), "/ui/new")
	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `<textarea name="cwl"`)
	assert.Contains(t, body, `<option value="LR" selected>LR</option>`)
}

func TestGraphLifecycle(t *testing.T) {
	h := testRouter(t)
	form := url.Values{"cwl": {readTestdata(t, "packed/packed.cwl")}, "rankdir": {"tb"}}

	w := postForm(h, "/ui/new", form)
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	location := w.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/ui/graphs/g_"), location)

	// Same content and options redirect to the stored graph.
	w = postForm(h, "/ui/new", form)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, location, w.Header().Get("Location"))

	w = get(h, location)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<dd>TB</dd>")
	assert.Contains(t, body, "<code>main/first</code>")
	assert.Contains(t, body, "input_0_0 -&gt; step_0_1")

	w = get(h, "/ui/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), location)
	assert.Contains(t, w.Body.String(), "1-1 of 1")

	w = postForm(h, location+"/delete", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/ui/", w.Header().Get("Location"))

	assert.Equal(t, http.StatusNotFound, get(h, location).Code)
	assert.Equal(t, http.StatusNotFound, postForm(h, location+"/delete", nil).Code)
}

func TestGraphCreate_ShowsWarnings(t *testing.T) {
	h := testRouter(t)
	w := postForm(h, "/ui/new", url.Values{"cwl": {readTestdata(t, "workflows/file-literals.cwl")}})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())

	w = get(h, w.Header().Get("Location"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "[WARNING_ARROW] source_num is None for file-based source")
}

func TestGraphCreate_ValidationErrors(t *testing.T) {
	src := `cwlVersion: v1.2
class: Workflow
inputs:
  x: File
outputs:
  y:
    type: File
    outputSource: s/out
steps:
  s:
    run:
      class: CommandLineTool
      inputs: {in: File}
      outputs: {out: File}
    in: {in: ghost}
    out: [out]
`
	w := postForm(testRouter(t), "/ui/new", url.Values{"cwl": {src}, "validate": {"1"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<code>steps.s.in.in.source</code>")
	// The submitted document is kept in the form.
	assert.Contains(t, body, "outputSource: s/out")
	assert.Contains(t, body, `name="validate" value="1" checked`)
}

func TestGraphCreate_BadInput(t *testing.T) {
	h := testRouter(t)

	w := postForm(h, "/ui/new", url.Values{"cwl": {"class: Workflow"}, "rankdir": {"UP"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Unsupported direction")

	w = postForm(h, "/ui/new", url.Values{"cwl": {"   "}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "empty document")
}

func TestBuildPagination(t *testing.T) {
	p := buildPagination(model.ListOptions{Limit: 25, Offset: 25, Name: "x"}, 60)
	assert.Equal(t, pagination{
		Total: 60, From: 26, To: 50, Prev: 0, Next: 50,
		HasPrev: true, HasNext: true, NameArg: "x",
	}, p)

	p = buildPagination(model.ListOptions{Limit: 25}, 0)
	assert.Equal(t, 0, p.From)
	assert.Equal(t, 0, p.To)
	assert.False(t, p.HasPrev)
	assert.False(t, p.HasNext)
}
