package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ConsoleWriter renders zerolog's JSON events as short, colored lines
type ConsoleWriter struct {
	Out     io.Writer
	NoColor bool

	buffer strings.Builder
	lock   sync.Mutex
}

func NewConsoleWriter() *ConsoleWriter {
	return &ConsoleWriter{Out: os.Stderr}
}

func debugEnabled() bool {
	return os.Getenv("BUILDSYS_DEBUG") != ""
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()
	switch evt["level"] {
	case "fatal":
		fallthrough
	case "error":
		w.buffer.WriteString("[red]")
	case "warn":
		w.buffer.WriteString("[yellow]")
	case "debug":
		fallthrough
	case "trace":
		w.buffer.WriteString("[blue]")
	default:
		w.buffer.WriteString("[green]")
	}

	task, ok := evt["task"].(string)
	if ok {
		w.buffer.WriteString(task + ": ")
	}

	if evt["level"] == "error" {
		w.buffer.WriteString("Error: ")
	}

	msg, _ := evt["message"].(string)

	path, ok := evt["path"].(string)
	if ok {
		// simplify the path
		relPath, err := filepath.Rel(".", path)
		if err == nil {
			msg = strings.ReplaceAll(msg, path, relPath)
		}
	}

	if _, ok := evt["command"]; ok {
		msg = "> " + msg
	}

	w.buffer.WriteString(msg)

	errorDetails, ok := evt["error"]
	if ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(fmt.Sprint(errorDetails))
	}

	if debugEnabled() {
		names := make([]string, 0, len(evt))
		for name := range evt {
			names = append(names, name)
		}
		sort.Strings(names)

		w.buffer.WriteString("\n")
		for _, name := range names {
			w.buffer.WriteString(fmt.Sprintf("  %s: %+v\n", name, evt[name]))
		}
	}

	w.buffer.WriteString("[reset]\n")

	colors := colorstring.Colorize{
		Colors:  colorstring.DefaultColors,
		Disable: w.NoColor,
		Reset:   true,
	}
	_, err = io.WriteString(w.Out, colors.Color(w.buffer.String()))
	if err != nil {
		return 0, err
	}

	return len(p), nil
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, debugEnabled())
	}
}
