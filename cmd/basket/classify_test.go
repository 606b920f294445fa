package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/srg/basket/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintClassification(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	require.NoError(t, printClassification(&out, []int{-90, -75, -55, -40, 0}))

	testutils.NewTextAsserter(t).Assert(out.String(), `
RSSI  IN BASKET  BAND
-90   no         Very low
-75   no         Low
-55   no         Very good
-40   yes        Excellent
0     no         No signal
`)
}

func TestParseReadings(t *testing.T) {
	t.Run("from arguments", func(t *testing.T) {
		readings, err := parseReadings([]string{"-90", " -40 "}, strings.NewReader("-1\n"))
		require.NoError(t, err)
		assert.Equal(t, []int{-90, -40}, readings, "arguments MUST win over stdin")
	})

	t.Run("from stdin", func(t *testing.T) {
		readings, err := parseReadings(nil, strings.NewReader("-90\n\n-55\n"))
		require.NoError(t, err)
		assert.Equal(t, []int{-90, -55}, readings)
	})

	t.Run("not a number", func(t *testing.T) {
		_, err := parseReadings([]string{"-90", "loud"}, nil)
		assert.ErrorIs(t, err, ErrInvalidReading)
		assert.Contains(t, err.Error(), `"loud"`)
	})

	t.Run("nothing given", func(t *testing.T) {
		_, err := parseReadings(nil, strings.NewReader(""))
		assert.ErrorIs(t, err, ErrInvalidReading)
	})
}

func TestClassifyCommand(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	classifyCmd.SetOut(&out)
	t.Cleanup(func() { classifyCmd.SetOut(nil) })

	require.NoError(t, classifyCmd.RunE(classifyCmd, []string{"-42"}))
	assert.Contains(t, out.String(), "-42   yes        Excellent")
}
