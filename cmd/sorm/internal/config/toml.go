package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml"
)

const maxLineWidth = 80

func parseToml(r io.Reader, strict bool, cfg *Config) error {
	tree, err := toml.LoadReader(r)
	if err != nil {
		return err
	}

	validKeys := map[string]struct{}{}
	for _, option := range cfg.options() {
		key, ok := option.getTomlKey()
		if !ok {
			continue
		}
		validKeys[key] = struct{}{}
		value := tree.Get(key)
		if value == nil {
			// not found
			continue
		}
		if err := option.setValue(value); err != nil {
			return err
		}
	}

	if cfg.Strict || strict {
		for _, key := range tree.Keys() {
			if _, ok := validKeys[key]; !ok {
				return fmt.Errorf("invalid config: unexpected entry specified in toml file %q", key)
			}
		}
	}

	return nil
}

// MarshalTOML writes every file option with its usage as a comment.
func (cfg *Config) MarshalTOML() ([]byte, error) {
	tree, err := toml.TreeFromMap(map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	for _, option := range cfg.options() {
		key, ok := option.getTomlKey()
		if !ok {
			continue
		}

		value, err := option.marshalTOML()
		if err != nil {
			return nil, err
		}

		// Wrap comments at 80 characters. go-toml does not put a space after
		// the # of continuation lines, so we add one.
		comment := strings.ReplaceAll(wordWrap(option.Usage, maxLineWidth-2), "\n", "\n ")
		tree.SetWithComment(key, comment, false, value)
	}

	return tree.Marshal()
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	line := 0
	for i, word := range words {
		if i > 0 {
			if line+1+len(word) > width {
				b.WriteByte('\n')
				line = 0
			} else {
				b.WriteByte(' ')
				line++
			}
		}
		b.WriteString(word)
		line += len(word)
	}
	return b.String()
}
