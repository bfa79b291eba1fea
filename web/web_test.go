package web

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	for _, name := range []string{AccountPage, ContactPage, "app.js", "style.css"} {
		data, err := fs.ReadFile(Static(), name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, data, name)
	}
}
