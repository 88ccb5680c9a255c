package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/squeeze/pkg/squeeze/dispatch"
	"github.com/jamesainslie/squeeze/pkg/squeeze/ledger"
	"github.com/jamesainslie/squeeze/pkg/squeeze/runner"
	"github.com/jamesainslie/squeeze/pkg/squeeze/types"
)

func sampleSummary() *runner.Summary {
	return &runner.Summary{
		RunID:     "5f0c6b8e-0000-4000-8000-000000000001",
		Root:      "/photos",
		StartedAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Elapsed:   90 * time.Second,
		Classes: []runner.ClassSummary{
			{
				Class: types.Image, Scanned: 10, Known: 7, Pending: 3,
				Result: dispatch.Result{Class: types.Image, Units: 3, BytesBefore: 3 << 20, BytesAfter: 2 << 20, BytesSaved: 1 << 20, BytesReclaimed: 1 << 20},
			},
			{
				Class: types.Video, Scanned: 1, Known: 0, Pending: 1,
				Result: dispatch.Result{Class: types.Video, Units: 1, BytesBefore: 5000000, BytesAfter: 3000000, BytesSaved: 2000000, BytesReclaimed: 2000000},
			},
		},
		Warnings: []string{"image: ignored 1 malformed manifest lines"},
	}
}

func sampleLedger() *ledger.Report {
	big := types.ReductionRecord{Identity: types.Identity{Name: "clip.mp4", Size: 3000000, Hash: "ab"}, BytesSaved: 2000000}
	return &ledger.Report{
		Dir: "/photos/.optim",
		Classes: []ledger.Summary{
			{Class: types.Image, Files: 3, BytesSaved: 1 << 20},
			{Class: types.Video, Files: 1, BytesSaved: 2000000, Largest: big},
		},
		Total: ledger.Summary{Files: 4, BytesSaved: 1<<20 + 2000000, Largest: big},
	}
}

func render(t *testing.T, name string, r *Report) string {
	t.Helper()
	f, err := Get(name)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Format(&buf, r))
	return buf.String()
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"csv", "json", "plain", "pretty", "table", "template", "yaml"}, Available())

	_, err := Get("xml")
	assert.ErrorContains(t, err, "unknown formatter")

	reg := NewRegistry()
	reg.Register("plain", func() Formatter { return &PlainFormatter{} })
	assert.Equal(t, []string{"plain"}, reg.Available())
}

func TestPlainFormatter_Run(t *testing.T) {
	t.Parallel()

	out := render(t, "plain", RunReport(sampleSummary()))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)

	assert.True(t, strings.HasPrefix(lines[0], "CLASS"))
	assert.Contains(t, lines[1], "image")
	assert.Contains(t, lines[1], "1.0 MiB")
	assert.Contains(t, lines[2], "video")
	assert.True(t, strings.HasPrefix(lines[3], "total"))
	assert.Equal(t, "warning: image: ignored 1 malformed manifest lines", lines[4])
}

func TestPlainFormatter_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, render(t, "plain", &Report{}))
}

func TestCSVFormatter_Ledger(t *testing.T) {
	t.Parallel()

	out := render(t, "csv", LedgerReport(sampleLedger()))
	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"CLASS", "FILES", "SAVED", "LARGEST"}, records[0])
	assert.Equal(t, "-", records[1][3])
	assert.Contains(t, records[2][3], "clip.mp4")
}

func TestTableFormatter(t *testing.T) {
	t.Parallel()

	out := render(t, "table", RunReport(sampleSummary()))
	assert.Contains(t, out, "CLASS")
	assert.Contains(t, out, "image")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "╭")
	assert.Contains(t, out, "warning:")
}

func TestPrettyFormatter(t *testing.T) {
	t.Parallel()

	t.Run("run", func(t *testing.T) {
		t.Parallel()
		out := render(t, "pretty", RunReport(sampleSummary()))
		assert.Contains(t, out, "/photos")
		assert.Contains(t, out, "5f0c6b8e")
		assert.Contains(t, out, "1m 30s")
		assert.Contains(t, out, "Warnings:")
		assert.Contains(t, out, "video")
	})

	t.Run("dry run", func(t *testing.T) {
		t.Parallel()
		s := sampleSummary()
		s.DryRun = true
		assert.Contains(t, render(t, "pretty", RunReport(s)), "Dry run")
	})

	t.Run("ledger", func(t *testing.T) {
		t.Parallel()
		out := render(t, "pretty", LedgerReport(sampleLedger()))
		assert.Contains(t, out, "Reduction ledger")
		assert.Contains(t, out, "clip.mp4")
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Contains(t, render(t, "pretty", &Report{}), "Nothing to report")
	})
}

func TestJSONFormatter(t *testing.T) {
	t.Parallel()

	out := render(t, "json", RunReport(sampleSummary()))

	var doc struct {
		Run struct {
			RunID   string `json:"run_id"`
			Elapsed string `json:"elapsed"`
			Classes []struct {
				Class   string `json:"class"`
				Pending int    `json:"pending"`
			} `json:"classes"`
			Total struct {
				Units      int   `json:"units"`
				BytesSaved int64 `json:"bytes_saved"`
			} `json:"total"`
		} `json:"run"`
		Ledger json.RawMessage `json:"ledger"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "1m30s", doc.Run.Elapsed)
	require.Len(t, doc.Run.Classes, 2)
	assert.Equal(t, "image", doc.Run.Classes[0].Class)
	assert.Equal(t, 4, doc.Run.Total.Units)
	assert.Equal(t, int64(1<<20+2000000), doc.Run.Total.BytesSaved)
	assert.Nil(t, doc.Ledger)
}

func TestYAMLFormatter(t *testing.T) {
	t.Parallel()

	out := render(t, "yaml", LedgerReport(sampleLedger()))

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.NotContains(t, doc, "run")

	l, ok := doc["ledger"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/photos/.optim", l["dir"])
	assert.Contains(t, out, "class: video")
}

func TestTemplateFormatter(t *testing.T) {
	t.Parallel()

	t.Run("default template", func(t *testing.T) {
		t.Parallel()
		out := render(t, "template", RunReport(sampleSummary()))
		assert.Equal(t, "image\t3\t1.0 MiB\nvideo\t1\t1.9 MiB\n", out)
	})

	t.Run("ledger", func(t *testing.T) {
		t.Parallel()
		out := render(t, "template", LedgerReport(sampleLedger()))
		assert.Contains(t, out, "video\t1\t1.9 MiB\n")
	})

	t.Run("custom template with functions", func(t *testing.T) {
		t.Parallel()
		f := NewTemplateFormatter(`{{.Run.RunID}} {{date .Run.StartedAt "2006-01-02"}} {{comma .Run.Total.Units}} {{bytes .Run.Total.BytesSaved}}`)
		var buf bytes.Buffer
		require.NoError(t, f.Format(&buf, RunReport(sampleSummary())))
		assert.Equal(t, "5f0c6b8e-0000-4000-8000-000000000001 2026-10-01 4 2.9 MiB", buf.String())
	})

	t.Run("parse error", func(t *testing.T) {
		t.Parallel()
		f := NewTemplateFormatter("{{.Run")
		var buf bytes.Buffer
		assert.Error(t, f.Format(&buf, RunReport(sampleSummary())))
	})

	t.Run("set template recompiles", func(t *testing.T) {
		t.Parallel()
		f := NewTemplateFormatter("a")
		var buf bytes.Buffer
		require.NoError(t, f.Format(&buf, RunReport(sampleSummary())))
		f.SetTemplate("b")
		require.NoError(t, f.Format(&buf, RunReport(sampleSummary())))
		assert.Equal(t, "ab", buf.String())
	})
}
