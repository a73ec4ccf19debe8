package output

import (
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter outputs data as YAML.
type YAMLFormatter struct{}

// Format formats data as YAML with two-space indentation.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}
