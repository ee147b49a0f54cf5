package ml

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LabelCodec maps the classifier's class indices to category names and
// back. It is immutable once built.
type LabelCodec struct {
	classes []string
	index   map[string]int
}

// NewLabelCodec builds a codec from the ordered class list, index i holding
// label classes[i]. Empty and duplicate labels are rejected.
func NewLabelCodec(classes []string) (*LabelCodec, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("label codec needs at least one class")
	}

	c := &LabelCodec{
		classes: make([]string, len(classes)),
		index:   make(map[string]int, len(classes)),
	}
	for i, label := range classes {
		label = strings.TrimSpace(label)
		if label == "" {
			return nil, fmt.Errorf("label codec: class %d is empty", i)
		}
		if prev, dup := c.index[label]; dup {
			return nil, fmt.Errorf("label codec: duplicate class %q at %d and %d", label, prev, i)
		}
		c.classes[i] = label
		c.index[label] = i
	}
	return c, nil
}

// Decode returns the label for a class index.
func (c *LabelCodec) Decode(i int) (string, error) {
	if i < 0 || i >= len(c.classes) {
		return "", &CodecRangeError{Index: i, Size: len(c.classes)}
	}
	return c.classes[i], nil
}

// Encode returns the class index for a label.
func (c *LabelCodec) Encode(label string) (int, error) {
	i, ok := c.index[label]
	if !ok {
		return 0, fmt.Errorf("label codec: unknown label %q", label)
	}
	return i, nil
}

// Classes returns a copy of the ordered labels.
func (c *LabelCodec) Classes() []string {
	out := make([]string, len(c.classes))
	copy(out, c.classes)
	return out
}

// Len is the number of classes.
func (c *LabelCodec) Len() int { return len(c.classes) }

type codecFile struct {
	Classes []string `json:"classes" yaml:"classes"`
}

// LoadLabelCodec reads a codec from .json, .yaml/.yml or .txt. Pickled
// encoders are loaded through the Python helper, see LoadPickledCodec.
func LoadLabelCodec(path string) (*LabelCodec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, unavailable("label codec", path, err)
	}

	var classes []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		classes, err = parseJSONClasses(data)
	case ".yaml", ".yml":
		var f codecFile
		err = yaml.Unmarshal(data, &f)
		classes = f.Classes
	case ".txt", "":
		classes = parseLines(data)
	default:
		return nil, unavailable("label codec", path, fmt.Errorf("unsupported format %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, unavailable("label codec", path, err)
	}

	codec, err := NewLabelCodec(classes)
	if err != nil {
		return nil, unavailable("label codec", path, err)
	}
	return codec, nil
}

func parseJSONClasses(data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var classes []string
		err := json.Unmarshal(trimmed, &classes)
		return classes, err
	}
	var f codecFile
	err := json.Unmarshal(trimmed, &f)
	return f.Classes, err
}

func parseLines(data []byte) []string {
	var classes []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			classes = append(classes, line)
		}
	}
	return classes
}
