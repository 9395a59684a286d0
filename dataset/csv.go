// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/gorse-io/lab/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ReadLines splits each line of a scanner into fields. Quoted fields may contain the
// separator and line breaks, and a doubled quote inside quotes is a literal quote. The
// handler receives the line number and fields and stops the scan by returning false.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) (bool, error)) error {
	lineCount := 0
	fields := make([]string, 0)
	builder := strings.Builder{}
	quoted := false
	delimiter := []rune(sep)
	if len(delimiter) == 0 {
		return errors.NotValidf("empty separator")
	}
	for sc.Scan() {
		line := []rune(sc.Text())
		if quoted {
			builder.WriteString("\r\n")
		}
		for i := 0; i < len(line); i++ {
			switch {
			case !quoted && hasPrefix(line[i:], delimiter):
				fields = append(fields, builder.String())
				builder.Reset()
				i += len(delimiter) - 1
			case line[i] == '"' && quoted:
				if i+1 < len(line) && line[i+1] == '"' {
					i++
					builder.WriteRune('"')
				} else {
					quoted = false
				}
			case line[i] == '"':
				quoted = true
			default:
				builder.WriteRune(line[i])
			}
		}
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			next, err := handler(lineCount, fields)
			if err != nil {
				return errors.Trace(err)
			} else if !next {
				return nil
			}
			fields = []string{}
		}
		lineCount++
	}
	return errors.Trace(sc.Err())
}

// LoadSamples loads samples from a delimited file. The first field of each line is the
// user, the second the item and the third the rating; remaining fields are context
// features. Context columns are named by the header if present.
func LoadSamples(path, sep string, header bool) (*Samples, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	var samples *Samples
	ids := make([]string, 0)
	err = ReadLines(bufio.NewScanner(file), sep, func(lineNumber int, fields []string) (bool, error) {
		if len(fields) < 3 {
			return false, errors.NotValidf("line %d with %d fields", lineNumber+1, len(fields))
		}
		if samples == nil {
			names := []string{"user", "item"}
			for i := 3; i < len(fields); i++ {
				names = append(names, "context"+strconv.Itoa(i-2))
			}
			if header {
				names = append(names[:0], fields[0], fields[1])
				names = append(names, fields[3:]...)
			}
			samples = NewSamples(names, 0, 1)
			if header {
				return true, nil
			}
		}
		rating, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 32)
		if err != nil {
			return false, errors.Annotatef(err, "line %d", lineNumber+1)
		}
		ids = append(ids[:0], fields[0], fields[1])
		ids = append(ids, fields[3:]...)
		if err = samples.Add(ids, float32(rating)); err != nil {
			return false, errors.Annotatef(err, "line %d", lineNumber+1)
		}
		return true, nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	if samples == nil {
		return nil, errors.NotValidf("empty file %s", path)
	}
	log.Logger().Info("load samples",
		zap.String("path", path),
		zap.Int("n_users", samples.CountUsers()),
		zap.Int("n_items", samples.CountItems()),
		zap.Int("n_samples", samples.Count()))
	return samples, nil
}

func hasPrefix(line, prefix []rune) bool {
	if len(line) < len(prefix) {
		return false
	}
	for i := range prefix {
		if line[i] != prefix[i] {
			return false
		}
	}
	return true
}
