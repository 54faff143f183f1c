package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/okian/hpde-analytics/internal/domain/model"
)

const noDataLine = "# No data available\n"

// Flatten turns a nested record into dotted keys. Lists are kept as their
// JSON encoding; empty lists and nulls become empty strings.
func Flatten(rec map[string]any) map[string]string {
	out := make(map[string]string, len(rec))
	flattenInto(out, "", rec)
	return out
}

func flattenInto(out map[string]string, prefix string, obj map[string]any) {
	for k, v := range obj {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flattenInto(out, key, t)
		case []any:
			if len(t) == 0 {
				out[key] = ""
				continue
			}
			b, err := json.Marshal(t)
			if err != nil {
				out[key] = fmt.Sprint(t)
				continue
			}
			out[key] = string(b)
		default:
			out[key] = scalar(t)
		}
	}
}

func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// WriteCSV writes records with a sorted union of flattened keys as header.
// An empty slice produces a single comment line.
func WriteCSV(w io.Writer, records []model.RawRecord) error {
	if len(records) == 0 {
		_, err := io.WriteString(w, noDataLine)
		return err
	}

	rows := make([]map[string]string, len(records))
	seen := make(map[string]struct{})
	for i, r := range records {
		rows[i] = Flatten(r)
		for k := range rows[i] {
			seen[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(seen))
	for k := range seen {
		header = append(header, k)
	}
	sort.Strings(header)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	line := make([]string, len(header))
	for _, row := range rows {
		for i, h := range header {
			line[i] = row[h]
		}
		if err := cw.Write(line); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
