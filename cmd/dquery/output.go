package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/AvengeMedia/dankquery/internal/engine"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/log"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

type record = fieldmap.Record

type batch struct {
	typeName string
	records  []record
}

// readRecords groups the lines of a JSON lines file by record type, keeping
// first-seen type order. Without typeName every line must carry _type.
func readRecords(path, typeName string) ([]batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var batches []batch
	pos := map[string]int{}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}

		name := typeName
		if t, ok := rec[fieldmap.TypeField].(string); ok {
			if name == "" {
				name = t
			}
			delete(rec, fieldmap.TypeField)
		}
		if name == "" {
			return nil, fmt.Errorf("%s:%d: no record type, use --type or a %s field", path, line, fieldmap.TypeField)
		}

		i, ok := pos[name]
		if !ok {
			i = len(batches)
			pos[name] = i
			batches = append(batches, batch{typeName: name})
		}
		batches[i].records = append(batches[i].records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return batches, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printHits(res *engine.Response) {
	log.Infof("found %d %s records in %s", res.Total, res.Type, res.Took)
	for i, hit := range res.Hits {
		log.Infof("%d. %s (score: %.4f) %s", i+1, hit.ID, hit.Score, formatRecord(hit.Record))
	}
	if n := len(res.Hits); n > 0 && len(res.Hits[n-1].Sort) > 0 {
		log.Debugf("next page: --after %s", strings.Join(res.Hits[n-1].Sort, " --after "))
	}
}

func formatRecord(r record) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, r[k]))
	}
	return strings.Join(parts, " ")
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	keyStyle    = cellStyle.Foreground(lipgloss.Color("192"))
)

func renderMapping(info *engine.TypeInfo) string {
	rows := make([][]string, 0, len(info.Fields))
	for _, f := range info.Fields {
		kind := f.Kind
		if f.Collection {
			kind = "[]" + kind
		}
		flags := []string{}
		if f.CaseSensitive {
			flags = append(flags, "case")
		}
		if f.Numeric {
			flags = append(flags, "numeric")
		}
		if f.NativeSort {
			flags = append(flags, "native_sort")
		}
		rows = append(rows, []string{
			f.Property,
			f.Field,
			f.Role,
			kind,
			f.Store,
			f.Index,
			f.TermVector,
			f.Analyzer,
			f.Converter,
			strconv.FormatFloat(f.Boost, 'g', -1, 64),
			strings.Join(flags, ","),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PROPERTY", "FIELD", "ROLE", "KIND", "STORE", "INDEX", "VECTORS", "ANALYZER", "CONVERTER", "BOOST", "FLAGS").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(info.Fields) && info.Fields[row].Role == "key":
				return keyStyle
			}
			return cellStyle
		})

	title := titleStyle.Render(fmt.Sprintf("%s (version %s, %s)", info.Name, info.Version, short(info.Fingerprint)))
	if ix := info.Indexed; ix != nil {
		title += fmt.Sprintf("\nindexed with version %s, %s at %s", ix.Version, short(ix.Fingerprint), ix.UpdatedAt.Format(time.RFC3339))
	}
	return title + "\n" + t.String()
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
