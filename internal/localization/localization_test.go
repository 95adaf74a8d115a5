package localization_test

import (
	"testing"
	"testing/fstest"

	"crimewatch/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalizer_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"l/en.json":    {Data: []byte(`{"hello":"Hello %s","bye":"Bye"}`)},
		"l/ta.json":    {Data: []byte(`{"hello":"வணக்கம் %s"}`)},
		"l/readme.txt": {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizer(fsys, "l")
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"en", "ta"}, l.Languages())
	assert.Equal(t, "வணக்கம் Priya", l.Format("ta", "hello", "Priya"))
	assert.Equal(t, "Bye", l.GetString("ta", "bye"))
	assert.Equal(t, "Bye", l.GetString("fr", "bye"))
	assert.Equal(t, "missing", l.GetString("en", "missing"))
}

func TestLocalizer_BadJSON(t *testing.T) {
	fsys := fstest.MapFS{"l/en.json": {Data: []byte(`{`)}}
	_, err := localization.NewLocalizer(fsys, "l")
	assert.Error(t, err)
}

func TestDefault_HasEnglishKeys(t *testing.T) {
	l := localization.Default()
	for _, key := range []string{"start", "alert_new", "alert_status", "alerts_empty", "not_authorized"} {
		assert.NotEqual(t, key, l.GetString("en", key), key)
	}
	// keys missing in Tamil fall back to English
	assert.Equal(t, l.GetString("en", "usage_resolve"), l.GetString("ta", "usage_resolve"))
}

func TestLocalizer_Match(t *testing.T) {
	fsys := fstest.MapFS{
		"l/en.json": {Data: []byte(`{}`)},
		"l/ta.json": {Data: []byte(`{}`)},
	}
	l, err := localization.NewLocalizer(fsys, "l")
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "ta"}, l.Languages())
	assert.Equal(t, "ta", l.Match("ta"))
	assert.Equal(t, "ta", l.Match("TA-in"))
	assert.Equal(t, "en", l.Match("fr"))
	assert.Equal(t, "en", l.Match(""))
}
