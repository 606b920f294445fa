package testutils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	testing.TB
	errors []string
}

func (r *recordingT) Helper() {}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestJSONAsserter_Defaults(t *testing.T) {
	ja := NewJSONAsserter(t)

	assert.True(t, ja.options.IgnoreExtraKeys)
	assert.True(t, ja.options.AllowPresencePlaceholder)
	assert.Empty(t, ja.options.IgnoredFields)
}

func TestJSONAsserter_Equal(t *testing.T) {
	actual := `{"device":"IoT Frisbee #1","rssi":-42,"ts":"2026-01-02T03:04:05Z","extra":true}`

	tests := []struct {
		name     string
		expected string
		opts     []Option
		want     bool
	}{
		{name: "extra keys ignored", expected: `{"device":"IoT Frisbee #1","rssi":-42}`, want: true},
		{name: "presence placeholder", expected: `{"device":"IoT Frisbee #1","ts":"<<PRESENCE>>"}`, want: true},
		{name: "value mismatch", expected: `{"rssi":-50}`, want: false},
		{name: "missing key", expected: `{"battery":80}`, want: false},
		{
			name:     "strict keys",
			expected: `{"device":"IoT Frisbee #1","rssi":-42,"ts":"<<PRESENCE>>"}`,
			opts:     []Option{WithIgnoreExtraKeys(false)},
			want:     false,
		},
		{
			name:     "ignored field",
			expected: `{"device":"IoT Frisbee #1","rssi":-42,"ts":"later","extra":true}`,
			opts:     []Option{WithIgnoredFields("ts"), WithIgnoreExtraKeys(false)},
			want:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ja := NewJSONAsserter(t).WithOptions(tt.opts...)
			assert.Equal(t, tt.want, ja.Equal(actual, tt.expected))
		})
	}
}

func TestJSONAsserter_AssertReportsDiff(t *testing.T) {
	rec := &recordingT{TB: t}
	NewJSONAsserter(rec).Assert(`{"rssi":-42}`, `{"rssi":-41}`)

	assert.Len(t, rec.errors, 1)
	assert.Contains(t, rec.errors[0], "JSON assertion failed")
}

func TestJSONAsserter_InvalidJSON(t *testing.T) {
	rec := &recordingT{TB: t}
	NewJSONAsserter(rec).Assert(`not json`, `{}`)

	assert.Len(t, rec.errors, 1)
	assert.Contains(t, rec.errors[0], "invalid actual JSON")
}

func TestTextAsserter(t *testing.T) {
	t.Run("trailing whitespace and outer space ignored by default", func(t *testing.T) {
		rec := &recordingT{TB: t}
		NewTextAsserter(rec).Assert("\n-45 (Excellent)   \n-90 (Very low)\n", "-45 (Excellent)\n-90 (Very low)")
		assert.Empty(t, rec.errors)
	})

	t.Run("difference produces unified diff", func(t *testing.T) {
		rec := &recordingT{TB: t}
		NewTextAsserter(rec).Assert("-45 (Good)", "-45 (Excellent)")
		assert.Len(t, rec.errors, 1)
		assert.Contains(t, rec.errors[0], "--- expected")
		assert.Contains(t, rec.errors[0], "+++ actual")
	})

	t.Run("empty lines", func(t *testing.T) {
		rec := &recordingT{TB: t}
		NewTextAsserter(rec).WithOptions(WithIgnoreEmptyLines(true)).Assert("a\n\nb", "a\nb")
		assert.Empty(t, rec.errors)
	})
}
