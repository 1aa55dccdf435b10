package console_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/aretw0/foreman/pkg/command"
	"github.com/aretw0/foreman/pkg/console"
	"github.com/aretw0/foreman/pkg/ports"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_PrefixesEachLine(t *testing.T) {
	var buf bytes.Buffer
	c := console.NewWriter(&buf, "build", console.WithProfile(termenv.Ascii))

	c.Print("one\ntwo\n")
	c.Clear()

	assert.Equal(t, "[build] one\n[build] two\n", buf.String())
	assert.Equal(t, "build", c.Title())
}

func TestWriter_Untitled(t *testing.T) {
	var buf bytes.Buffer
	c := console.NewWriter(&buf, "", console.WithProfile(termenv.Ascii))

	c.Print("[build] FROM alpine")
	assert.Equal(t, "[build] FROM alpine\n", buf.String())
}

func TestWriterFactory(t *testing.T) {
	var buf bytes.Buffer
	factory := console.WriterFactory(&buf, console.WithProfile(termenv.Ascii))

	c := factory(command.Configuration{Name: "test", Type: command.TypeCustom})
	c.Print("ok")

	assert.Equal(t, "test", c.Title())
	assert.Equal(t, "[test] ok\n", buf.String())
}

func TestContainer(t *testing.T) {
	var shown []string
	c := console.NewContainer(func(p ports.Console) { shown = append(shown, p.Title()) })

	a := console.Discard{Name: "a"}
	b := console.Discard{Name: "b"}
	c.Add(a)
	c.Add(b)
	assert.Nil(t, c.Active())

	c.Show(b)
	require.Len(t, c.Consoles(), 2)
	assert.Equal(t, "b", c.Active().Title())
	assert.Equal(t, []string{"b"}, shown)
}

func TestTermNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := console.NewTermNotifier(&buf, termenv.WithProfile(termenv.Ascii))

	n.Info("current machine changed to m1")
	n.Warning("no current machine")
	n.Error("boom")

	assert.Equal(t, "info current machine changed to m1\nwarn no current machine\nerror boom\n", buf.String())
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	n := console.NewLogNotifier(logger)

	n.Warning("no current machine")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), `msg="no current machine"`)
}
