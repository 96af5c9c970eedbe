package router

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name string
		data any
		err  error
		want OutcomeKind
	}{
		{"success", "data", nil, OutcomeSuccess},
		{"redirect", nil, Redirect("/login"), OutcomeRedirect},
		{"wrapped redirect", nil, fmt.Errorf("auth: %w", Redirect("/login")), OutcomeRedirect},
		{"not found", nil, NotFound(), OutcomeNotFound},
		{"wrapped not found", nil, fmt.Errorf("post: %w", NotFound()), OutcomeNotFound},
		{"failure", nil, boom, OutcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Classify(tt.data, tt.err)
			assert.Equal(t, tt.want, out.Kind)
			switch tt.want {
			case OutcomeSuccess:
				assert.Equal(t, tt.data, out.Data)
			case OutcomeRedirect:
				require.NotNil(t, out.Redirect)
				assert.Equal(t, "/login", out.Redirect.To)
			case OutcomeNotFound:
				assert.NotNil(t, out.NotFound)
			case OutcomeFailure:
				assert.ErrorIs(t, out.Err, boom)
			}
		})
	}
}

func TestRedirectErrorCode(t *testing.T) {
	assert.Equal(t, http.StatusTemporaryRedirect, Redirect("/a").Code())
	assert.Equal(t, http.StatusMovedPermanently, (&RedirectError{To: "/a", StatusCode: 301}).Code())
	assert.Equal(t, "redirect to https://example.com", (&RedirectError{To: "/a", Href: "https://example.com"}).Error())
}

func TestLoadErrorUnwrap(t *testing.T) {
	boom := errors.New("boom")
	err := &LoadError{Code: CodeLoader, RouteID: "/posts", Err: boom}

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "LOADER /posts: boom", err.Error())
}

func TestSafeCall(t *testing.T) {
	_, err := safeCall(func() (any, error) { panic("kaboom") })
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)

	_, err = safeCall(func() (any, error) { panic(Redirect("/elsewhere")) })
	re, ok := IsRedirect(err)
	require.True(t, ok)
	assert.Equal(t, "/elsewhere", re.To)

	_, err = safeCall(func() (any, error) { panic(NotFound()) })
	_, ok = IsNotFound(err)
	assert.True(t, ok)

	v, err := safeCall(func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
